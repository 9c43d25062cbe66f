package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-signin/internal/config"
	"github.com/kozaktomas/face-signin/internal/photostore"
	"github.com/kozaktomas/face-signin/internal/registry"
	"github.com/kozaktomas/face-signin/internal/web/handlers"
	"github.com/kozaktomas/face-signin/internal/web/middleware"
)

// Service is what the HTTP API needs from signin.Service.
type Service interface {
	handlers.SignInService
	handlers.ClientRemover
}

// Deps are the collaborators the HTTP API needs.
type Deps struct {
	Service   Service
	Directory registry.Directory
	Tasks     registry.Tasks
	Photos    photostore.Store
	Tokens    middleware.TokenValidator
	Ping      handlers.Pinger     // optional database check for /health
	Gatherer  prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Logger    *logrus.Logger
}

// Server represents the web server
type Server struct {
	cfg        config.WebConfig
	deps       Deps
	router     *chi.Mux
	httpServer *http.Server
	log        *logrus.Logger
}

// NewServer creates a new web server
func NewServer(cfg config.WebConfig, deps Deps) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}

	r := chi.NewRouter()
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: r,
		log:    deps.Logger,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(time.Minute))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
