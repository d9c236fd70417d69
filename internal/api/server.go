package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/dispatch-engine/internal/config"
)

// Server wraps the router in an http.Server.
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates an API server for h.
func NewServer(cfg config.ServerConfig, h *Handlers) *Server {
	return &Server{config: cfg, handler: SetupRoutes(h, cfg.AllowedOrigins)}
}

// ListenAndServe starts the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:    s.config.Addr(),
		Handler: s.handler,
		// Immediate sends pace at one message per 500ms, so writes can take a while.
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       120 * time.Second,
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

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
