// Package web provides the HTTP facade over the validation service.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/csvgate/internal/config"
	"github.com/JonMunkholm/csvgate/internal/logging"
	"github.com/JonMunkholm/csvgate/internal/metrics"
	"github.com/JonMunkholm/csvgate/internal/report"
	"github.com/JonMunkholm/csvgate/internal/runstore"
	"github.com/JonMunkholm/csvgate/internal/validate"
	webmw "github.com/JonMunkholm/csvgate/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RunHistory lists recorded runs. *runstore.Store satisfies it.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]runstore.Run, error)
	Get(ctx context.Context, id uuid.UUID) (*runstore.Run, *report.Report, error)
}

// Server is the HTTP server for the validation service.
type Server struct {
	service *validate.Service
	runs    RunHistory
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithRunHistory enables the /api/runs routes.
func WithRunHistory(h RunHistory) Option {
	return func(s *Server) { s.runs = h }
}

// NewServer creates a new Server instance.
func NewServer(service *validate.Service, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/staged", s.handleStaged)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(webmw.APIKeyAuth(&s.cfg.Security))

		r.Post("/validate", s.handleValidate)

		r.Route("/api", func(r chi.Router) {
			r.Get("/status", s.handleStatus)
			r.Get("/reports/{name}", s.handleGetReport)
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetRun)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown waits for in-flight validations, then stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if status := s.service.Limiter().Status(); status.Active > 0 {
		logging.FromContext(ctx).Info("waiting for validations to complete", "active", status.Active)
		if err := s.service.Limiter().WaitForDrain(ctx); err != nil {
			logging.FromContext(ctx).Warn("validations did not complete in time", "error", err)
		}
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// retryAfter is sent with 503 responses when every run slot is busy.
var retryAfter = 5 * time.Second
