// Package server provides the HTTP API for nasab.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/nasab/internal/catalog"
	"github.com/hyperjump/nasab/internal/config"
	"github.com/hyperjump/nasab/internal/metrics"
	"github.com/hyperjump/nasab/internal/session"
)

// Server is the HTTP server for the nasab API.
type Server struct {
	sessions *session.Manager
	catalog  *catalog.Store
	metrics  *metrics.Recorder
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. store may be nil,
// in which case the text endpoints report the catalog as unavailable.
func NewServer(
	sessions *session.Manager,
	store *catalog.Store,
	rec *metrics.Recorder,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		sessions: sessions,
		catalog:  store,
		metrics:  rec,
		config:   cfg,
		logger:   logger,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/patterns", s.handlePatterns)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", s.handleCloseSession)
			r.Get("/search", s.handleSearch)
			r.Get("/export", s.handleExport)
		})

		r.Get("/texts", s.handleTexts)

		r.Post("/ranges/compress", s.handleCompress)
		r.Get("/ranges/decompress", s.handleDecompress)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server and closes every session.
func (s *Server) Stop(ctx context.Context) error {
	defer s.sessions.CloseAll()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
