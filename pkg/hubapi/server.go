// Package hubapi is the HTTP surface from spec.md §6: the declaration
// submit endpoint and the lookup/export/digest/health GETs, wired to
// pkg/ingress.Ingress as the service layer. Grounded on the teacher's
// pkg/api package (router.go, response.go, server.go, config.go).
package hubapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/iscc/iscc-hub/internal/logger"
	"github.com/iscc/iscc-hub/pkg/eventstore"
	"github.com/iscc/iscc-hub/pkg/ingress"
)

// Server is the HTTP server exposing the declaration submit endpoint and
// the lookup/health endpoints, with graceful shutdown.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates a Server in a stopped state. Call Start to begin
// serving requests.
func NewServer(config Config, ig *ingress.Ingress, store eventstore.Store) *Server {
	config.applyDefaults()

	router := NewRouter(ig, store, config.MaxEventsPageSize)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{server: server, config: config}
}

// Start serves requests until ctx is cancelled, then drains in-flight
// requests and returns.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("hubapi server listening", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("hubapi server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("hubapi server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("hubapi server shutdown error: %w", err)
			logger.Error("hubapi server shutdown error", "error", err)
		} else {
			logger.Info("hubapi server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
