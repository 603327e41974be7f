// Package api exposes the read path and generation trigger over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openwater-labs/aquanet/internal/domain"
	"github.com/openwater-labs/aquanet/internal/sim"
	"github.com/openwater-labs/aquanet/internal/store"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, loader *store.Loader, orch *sim.Orchestrator, records domain.CacheStore, version string) *Server {
	handler := NewHandler(loader, orch, records, version)
	router := chi.NewRouter()

	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	router.Get("/scenarios", handler.ListScenarios)
	router.Route("/scenarios/{scenario}", func(r chi.Router) {
		r.Get("/configs", handler.ListConfigs)
		r.Get("/leaks/{name}", handler.GetLeakData)
		r.Get("/sensorfaults/{name}", handler.GetSensorfaultData)
		r.Get("/data", handler.GetData)
	})

	router.Post("/generate", handler.Generate)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
