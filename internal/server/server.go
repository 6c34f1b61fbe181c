package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/pet-gateway/internal/anonymizer"
	"github.com/raaihank/pet-gateway/internal/config"
	"github.com/raaihank/pet-gateway/internal/contextstore"
	"github.com/raaihank/pet-gateway/internal/logger"
	"github.com/raaihank/pet-gateway/internal/metrics"
	"github.com/raaihank/pet-gateway/internal/privacy"
	"github.com/raaihank/pet-gateway/internal/ratelimit"
	"github.com/raaihank/pet-gateway/internal/websocket"
)

// Version is the gateway version reported by /version
var Version = "1.0.0"

// ContextRecorder stores the objects of successful requests
type ContextRecorder interface {
	Record(ctx context.Context, objects []anonymizer.ObjectData) (*contextstore.RecordResult, error)
}

// Options carries the optional collaborators of a Server
type Options struct {
	Recorder ContextRecorder
	Limiter  *ratelimit.Limiter
	Metrics  *metrics.Metrics
	Hub      *websocket.Hub
	Screen   *privacy.Detector
}

// Server exposes the anonymizer over HTTP
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	anonymizer *anonymizer.Anonymizer
	recorder   ContextRecorder
	limiter    *ratelimit.Limiter
	metrics    *metrics.Metrics
	hub        *websocket.Hub
	screen     *privacy.Detector
	router     *mux.Router
	server     *http.Server

	// background tracks best-effort context recording
	background sync.WaitGroup
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger, anon *anonymizer.Anonymizer, opts Options) *Server {
	s := &Server{
		config:     cfg,
		logger:     log.WithComponent("server"),
		anonymizer: anon,
		recorder:   opts.Recorder,
		limiter:    opts.Limiter,
		metrics:    opts.Metrics,
		hub:        opts.Hub,
		screen:     opts.Screen,
		router:     mux.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	if s.metrics != nil && s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, s.metrics.Handler()).Methods(http.MethodGet)
	}

	if s.hub != nil && s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.hub.HandleWebSocket).Methods(http.MethodGet)
	}

	api := s.router.NewRoute().Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/attributes", s.handleAttributes).Methods(http.MethodPost)
	api.HandleFunc("/objects", s.handleObjects).Methods(http.MethodPost)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting PET gateway",
		zap.Int("port", s.config.Server.Port),
		zap.String("engine_url", s.config.Engine.URL),
		zap.Bool("cache_enabled", s.config.Cache.Enabled),
		zap.Bool("context_enabled", s.config.Context.Enabled),
		zap.String("version", Version),
	)

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server and waits for background work
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping PET gateway")
	err := s.server.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Context recording still in progress at shutdown")
	}

	return err
}

// VersionResponse reports the running version
type VersionResponse struct {
	Version string `json:"version"`
	Major   int    `json:"major"`
	Minor   int    `json:"minor"`
}

func newVersionResponse(version string) VersionResponse {
	resp := VersionResponse{Version: version}
	parts := strings.SplitN(strings.TrimPrefix(version, "v"), ".", 3)
	if len(parts) > 0 {
		resp.Major, _ = strconv.Atoi(parts[0])
	}
	if len(parts) > 1 {
		resp.Minor, _ = strconv.Atoi(parts[1])
	}
	return resp
}
