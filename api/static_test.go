package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// setupDashboard creates a throwaway dashboard root and makes it the
// working directory for the test.
func setupDashboard(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	root := filepath.Join(dir, dashboardRoot)
	if err := os.MkdirAll(filepath.Join(root, "assets"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	index := "<html><title>Prompt Arena</title><body>dashboard</body></html>"
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte(index), 0o644); err != nil {
		t.Fatalf("WriteFile index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "assets", "app.js"), []byte(`console.log("arena")`), 0o644); err != nil {
		t.Fatalf("WriteFile asset: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})
}

func newStaticRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	s := &Server{router: r}
	s.registerStatic()
	return r
}

func TestStaticHandler_ServesIndex(t *testing.T) {
	setupDashboard(t)
	r := newStaticRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "<title>Prompt Arena</title>") {
		t.Fatalf("body: expected index content, got %q", rec.Body.String())
	}
}

func TestStaticHandler_ServesAsset(t *testing.T) {
	setupDashboard(t)
	r := newStaticRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/assets/app.js", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "arena") {
		t.Fatalf("body: expected asset content, got %q", rec.Body.String())
	}
}

func TestStaticHandler_FallsBackToIndex(t *testing.T) {
	setupDashboard(t)
	r := newStaticRouter(t)

	// Client-side routes are unknown to the filesystem.
	req := httptest.NewRequest(http.MethodGet, "/runs/run-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "<title>Prompt Arena</title>") {
		t.Fatalf("body: expected index fallback, got %q", rec.Body.String())
	}
}

func TestStaticHandler_RejectsTraversal(t *testing.T) {
	setupDashboard(t)
	r := newStaticRouter(t)

	paths := []string{
		"/../secrets.txt",
		"/..%2f..%2fsecrets.txt",
		"/%2e%2e/%2e%2e/secrets.txt",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("path %q: got %d want %d", path, rec.Code, http.StatusForbidden)
		}
	}
}

func TestStaticHandler_UnknownAPIPathIsJSON(t *testing.T) {
	setupDashboard(t)
	r := newStaticRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusNotFound)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Fatalf("body: expected JSON error, got %q", rec.Body.String())
	}
}

func TestResolveDashboardPath(t *testing.T) {
	rootAbs, err := filepath.Abs(t.TempDir())
	if err != nil {
		t.Fatalf("Abs: %v", err)
	}

	tests := []struct {
		reqPath string
		want    string
		ok      bool
	}{
		{"", filepath.Join(rootAbs, "index.html"), true},
		{"/", filepath.Join(rootAbs, "index.html"), true},
		{"/index.html", filepath.Join(rootAbs, "index.html"), true},
		{"/assets/app.js", filepath.Join(rootAbs, "assets", "app.js"), true},
		{"/assets/../index.html", filepath.Join(rootAbs, "index.html"), true},
		{"/../escape.txt", "", false},
		{"/../../escape.txt", "", false},
	}
	for _, tt := range tests {
		got, ok := resolveDashboardPath(rootAbs, tt.reqPath)
		if ok != tt.ok {
			t.Fatalf("resolveDashboardPath(%q): ok=%v want %v", tt.reqPath, ok, tt.ok)
		}
		if tt.ok && got != tt.want {
			t.Fatalf("resolveDashboardPath(%q): got %q want %q", tt.reqPath, got, tt.want)
		}
	}
}
