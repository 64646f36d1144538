// internal/core/server/http.go

// Package server provides HTTP server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/averko/feedmill/internal/core/api"
	"github.com/averko/feedmill/internal/core/auth"
	"github.com/averko/feedmill/internal/core/config"
)

// HTTPServer manages the feed API server lifecycle.
type HTTPServer struct {
	server *http.Server
	config *config.APIConfig
}

// NewHTTPServer creates the server with the authenticated router mounted.
func NewHTTPServer(cfg *config.APIConfig, service *api.Service, authenticator *auth.Authenticator) (*HTTPServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator cannot be nil")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      service.Router(authenticator),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}
	return &HTTPServer{server: srv, config: cfg}, nil
}

// Start serves HTTP requests. Blocks until Shutdown is called; a clean
// shutdown returns nil rather than http.ErrServerClosed.
func (s *HTTPServer) Start(ctx context.Context) error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server with a 30-second timeout, then
// forces close.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed, forced close: %w", err)
	}
	return nil
}
