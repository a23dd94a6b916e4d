package api

import (
	"os"
	"strings"
)

// registerRoutes mounts the /api surface. Auth is optional: routes are
// open for localhost use unless PROMPTARENA_API_KEY is set, in which
// case every /api request must carry the key as a bearer token.
func (s *Server) registerRoutes() {
	if s == nil || s.router == nil {
		return
	}

	api := s.router.Group("/api")
	if key := strings.TrimSpace(os.Getenv("PROMPTARENA_API_KEY")); key != "" {
		api.Use(bearerAuthMiddleware(key))
	}

	api.GET("/health", s.handleHealth)

	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.GET("/runs/:id/results", s.handleGetRunResults)

	api.GET("/history/:prompt", s.handleGetPromptHistory)

	api.POST("/ingest", s.handleIngest)
}
