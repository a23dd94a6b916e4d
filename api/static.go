package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// dashboardRoot is served when present in the working directory; the
// server is fully usable without it through the JSON API alone.
const dashboardRoot = "web/dashboard"

func (s *Server) registerStatic() {
	if s == nil || s.router == nil {
		return
	}

	handler := func(c *gin.Context) {
		reqPath := c.Request.URL.Path
		if reqPath == "/api" || strings.HasPrefix(reqPath, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		rootAbs, err := filepath.Abs(dashboardRoot)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}

		full, ok := resolveDashboardPath(rootAbs, reqPath)
		if !ok {
			c.Status(http.StatusForbidden)
			return
		}
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			c.File(full)
			return
		}
		// Unknown paths fall back to the index so client-side routes work.
		c.File(filepath.Join(rootAbs, "index.html"))
	}

	s.router.GET("/*filepath", handler)
	s.router.HEAD("/*filepath", handler)
}

// resolveDashboardPath maps a request path to a file under rootAbs,
// rejecting anything that would escape it.
func resolveDashboardPath(rootAbs, reqPath string) (string, bool) {
	rel := strings.TrimPrefix(reqPath, "/")
	if rel == "" {
		return filepath.Join(rootAbs, "index.html"), true
	}

	full, err := filepath.Abs(filepath.Join(rootAbs, filepath.Clean(rel)))
	if err != nil {
		return "", false
	}
	if full != rootAbs && !strings.HasPrefix(full, rootAbs+string(os.PathSeparator)) {
		return "", false
	}
	return full, true
}
