// Package server provides HTTP server setup and handlers
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"parkadmin/internal/action"
	"parkadmin/internal/config"
	"parkadmin/internal/gateway"
	"parkadmin/internal/realtime"
	"parkadmin/internal/repository"
	"parkadmin/internal/session"
	"parkadmin/internal/templates"
	"parkadmin/internal/tickets"
)

// Deps are the collaborators a Server is built from. Realtime may be nil
// when live notifications are disabled
type Deps struct {
	Repos     *repository.Repositories
	Sessions  *session.Store
	Templates *templates.Manager
	Backend   *gateway.Client
	Gate      *action.Gate
	Realtime  *realtime.Manager
	Hub       *realtime.Hub
	Logger    *slog.Logger
}

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	deps       Deps
	logger     *slog.Logger
	validate   *validator.Validate
	classifier tickets.Classifier
	now        func() time.Time
	router     *chi.Mux
	http       *http.Server

	loginLimiter *limiter

	mu     sync.Mutex
	states map[string]*sessionState
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		config:       cfg,
		deps:         deps,
		logger:       deps.Logger,
		validate:     validator.New(),
		classifier:   tickets.Classifier{LegacyOverlap: cfg.Tickets.LegacyOverlap},
		now:          time.Now,
		router:       chi.NewRouter(),
		loginLimiter: newLimiter(rate.Every(6*time.Second), 5),
		states:       make(map[string]*sessionState),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         cfg.Address(),
		Handler:      otelhttp.NewHandler(s.router, "parkadmin"),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", "addr", s.config.Address(), "debug", s.config.Debug)
		serverErrors <- s.http.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		s.logger.Info("shutting down")

		// Give outstanding requests a deadline for completion
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("graceful shutdown failed", "error", err)
			if err := s.http.Close(); err != nil {
				return fmt.Errorf("failed to close server: %w", err)
			}
		}

		s.logger.Info("server shutdown complete")
	}

	return nil
}

// setupMiddleware configures global middleware
func (s *Server) setupMiddleware() {
	// Real IP detection (important for logging behind proxies)
	s.router.Use(middleware.RealIP)

	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)

	// Panic recovery
	s.router.Use(middleware.Recoverer)

	// Security headers
	s.router.Use(s.securityHeaders)
}

// securityHeaders adds security-related headers to all responses
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// The SockJS client is loaded from jsDelivr; images come from the
		// backend's object storage
		csp := "default-src 'self'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"script-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; " +
			"connect-src 'self' ws: wss:; " +
			"img-src * data:; " +
			"font-src 'self'"
		w.Header().Set("Content-Security-Policy", csp)
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		next.ServeHTTP(w, r)
	})
}

// Handler returns the instrumented root handler (useful for testing)
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Close stops per-session background work
func (s *Server) Close() {
	if s.deps.Realtime != nil {
		s.deps.Realtime.Close()
	}
}
