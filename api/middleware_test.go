package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/promptarena/promptarena/internal/config"
)

func newCORSRouter(t *testing.T, origins string) *gin.Engine {
	t.Helper()
	t.Setenv("PROMPTARENA_CORS_ORIGINS", origins)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(corsMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func doOriginRequest(r *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSMiddleware_Disabled(t *testing.T) {
	r := newCORSRouter(t, "")

	w := doOriginRequest(r, http.MethodGet, "https://app.example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin: got %q want empty when CORS is not configured", got)
	}
}

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	r := newCORSRouter(t, "https://app.example.com, https://ci.example.com")

	w := doOriginRequest(r, http.MethodGet, "https://app.example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow-origin: got %q want %q", got, "https://app.example.com")
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Fatalf("vary: got %q want %q", got, "Origin")
	}

	w = doOriginRequest(r, http.MethodGet, "https://evil.example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin: got %q want empty for an unlisted origin", got)
	}
}

func TestCORSMiddleware_Wildcard(t *testing.T) {
	r := newCORSRouter(t, "*")

	w := doOriginRequest(r, http.MethodGet, "https://anywhere.example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin: got %q want %q", got, "*")
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	r := newCORSRouter(t, "https://app.example.com")

	w := doOriginRequest(r, http.MethodOptions, "https://app.example.com")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET,POST,OPTIONS" {
		t.Fatalf("allow-methods: got %q want %q", got, "GET,POST,OPTIONS")
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Fatalf("allow-headers: got %q want %q", got, "Content-Type, Authorization")
	}
}

func TestBearerAuth_RequiredWhenKeySet(t *testing.T) {
	t.Setenv("PROMPTARENA_API_KEY", "sekrit")
	gin.SetMode(gin.TestMode)
	s := &Server{router: gin.New(), store: &fakeStore{}, config: &config.Config{}}
	s.registerRoutes()

	send := func(authorization string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	if w := send(""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no header status: got %d want %d", w.Code, http.StatusUnauthorized)
	}
	if w := send("Bearer nope"); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key status: got %d want %d", w.Code, http.StatusUnauthorized)
	}
	if w := send("Bearer sekrit"); w.Code != http.StatusOK {
		t.Fatalf("bearer key status: got %d want %d", w.Code, http.StatusOK)
	}
	if w := send("sekrit"); w.Code != http.StatusOK {
		t.Fatalf("bare key status: got %d want %d", w.Code, http.StatusOK)
	}
}

func TestBearerAuth_SkipsPreflight(t *testing.T) {
	t.Setenv("PROMPTARENA_API_KEY", "sekrit")
	gin.SetMode(gin.TestMode)
	s := &Server{router: gin.New(), store: &fakeStore{}, config: &config.Config{}}
	s.registerRoutes()

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Fatalf("preflight status: got %d, preflight must not require auth", w.Code)
	}
}
