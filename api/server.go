// Package api serves stored run history and accepts analytics ingest
// batches over HTTP. It backs the `promptarena serve` command.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/promptarena/promptarena/internal/config"
	"github.com/promptarena/promptarena/internal/store"
)

const shutdownGrace = 5 * time.Second

type Server struct {
	router *gin.Engine
	store  store.Store
	config *config.Config
}

// NewServer wires middleware, routes, and the static dashboard onto a
// fresh gin engine. st may be nil; store-backed endpoints then respond
// with a server error.
func NewServer(cfg *config.Config, st store.Store) *Server {
	s := &Server{
		router: gin.New(),
		store:  st,
		config: cfg,
	}
	s.registerMiddleware()
	s.registerRoutes()
	s.registerStatic()
	return s
}

// Run serves on addr until ctx is canceled, then shuts the listener
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = "127.0.0.1:7411"
	}

	srv := &http.Server{Addr: addr, Handler: s.router}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Handler exposes the underlying router, mainly for tests.
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
}
