// Package api exposes the analysis service over HTTP: a streaming analyze
// endpoint, a quick single-region path, the advisory chat, and report
// history lookups.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foodguardai/foodguard/internal/agent"
	"github.com/foodguardai/foodguard/internal/report"
	"github.com/foodguardai/foodguard/internal/store"
	"github.com/foodguardai/foodguard/internal/stream"
)

// Analyzer runs food-security analyses.
type Analyzer interface {
	Stream(ctx context.Context, req agent.AnalysisRequest) agent.StepStream
	Quick(ctx context.Context, region string) (*report.Report, error)
}

// Chatter answers follow-up questions about a report.
type Chatter func(ctx context.Context, req agent.ChatRequest) (string, error)

// Config holds API server configuration.
type Config struct {
	Listen       string
	Token        string
	ChatDeadline time.Duration
}

// Server represents the HTTP API server.
type Server struct {
	config    Config
	runs      *store.RunStore
	analyzer  Analyzer
	chat      Chatter
	encoder   *stream.Encoder
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance.
func New(config Config, runs *store.RunStore, analyzer Analyzer, chat Chatter, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		runs:      runs,
		analyzer:  analyzer,
		chat:      chat,
		encoder:   stream.NewEncoder(logger),
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // the analyze endpoint is a long-lived stream
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated
	r.Get("/healthz", s.handleHealthz)

	// Protected
	r.Group(func(r chi.Router) {
		r.Use(s.bearerAuth)
		r.Post("/v1/analyze", s.handleAnalyze)
		r.Get("/v1/analyze", s.handleQuickAnalyze)
		r.Post("/v1/chat", s.handleChat)
		r.Get("/v1/reports", s.handleListReports)
		r.Get("/v1/reports/{run_id}", s.handleGetReport)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
