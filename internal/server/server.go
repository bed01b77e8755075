// Package server exposes the import pipeline and the library over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/matsen/publications/internal/config"
	"github.com/matsen/publications/internal/importer"
	"github.com/matsen/publications/internal/logging"
	"github.com/matsen/publications/internal/pubtype"
	"github.com/matsen/publications/internal/reference"
)

// Library is the storage the server reads from and imports into.
// *storage.DB satisfies it.
type Library interface {
	importer.Lookup
	importer.Saver
	Registry() (*pubtype.Registry, error)
	ListAll(limit int) ([]reference.Publication, error)
	ListByImport(importID string) ([]reference.Publication, error)
	Search(query string, limit int) ([]reference.Publication, error)
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Library Library
	Logger  *slog.Logger
	// Legacy selects single-entry duplicate reporting for every import.
	Legacy bool
}

// Server is the admin HTTP server.
type Server struct {
	cfg     config.ServerConfig
	lib     Library
	logger  *slog.Logger
	legacy  bool
	limiter *rate.Limiter
	handler http.Handler
}

const shutdownTimeout = 10 * time.Second

// New builds a server. A zero RateLimit disables throttling; an empty
// password hash disables authentication.
func New(cfg config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		lib:    deps.Library,
		logger: logger,
		legacy: deps.Legacy,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("POST /import", s.requireAuth(s.rateLimit(http.HandlerFunc(s.handleImport))))
	mux.Handle("GET /publications", s.requireAuth(http.HandlerFunc(s.handlePublications)))
	mux.Handle("GET /types", s.requireAuth(http.HandlerFunc(s.handleTypes)))

	s.handler = logging.CombinedMiddleware(logger, mux)
	return s
}

// Handler returns the root handler with request IDs and logging attached.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.AdminPassword == "" {
		logging.SecurityEvent(ctx, s.logger, "auth_disabled", "server",
			"note", "set server.admin_password_hash with pubs hash-password")
	}
	s.logger.Info("server_startup", "addr", s.cfg.Addr, "rate_limit", s.cfg.RateLimit)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		s.logger.Info("server_shutdown")
		return nil
	}
}
