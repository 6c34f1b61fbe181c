package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/pet-gateway/internal/anonymizer"
	"github.com/raaihank/pet-gateway/internal/config"
	"github.com/raaihank/pet-gateway/internal/contextstore"
	"github.com/raaihank/pet-gateway/internal/engine"
	"github.com/raaihank/pet-gateway/internal/logger"
	"github.com/raaihank/pet-gateway/internal/metrics"
	"github.com/raaihank/pet-gateway/internal/privacy"
	"github.com/raaihank/pet-gateway/internal/ratelimit"
	"github.com/raaihank/pet-gateway/internal/server"
	"github.com/raaihank/pet-gateway/internal/websocket"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
		healthURL   = flag.String("health-url", "http://localhost:8080/health", "Health endpoint used by -health-check")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("PET-Gateway %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck(*healthURL)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	server.Version = version
	log.Info("Starting PET-Gateway",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	svc, err := initializeServices(cfg, log, m)
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer svc.cleanup()

	anonOptions := anonymizer.Options{
		ConflictPolicy: anonymizer.ConflictPolicy(cfg.Compiler.HierarchyConflicts),
	}
	if svc.store != nil && cfg.Context.AugmentKMap {
		anonOptions.ContextSource = svc.store
	}
	anon := anonymizer.New(m.InstrumentEngine(svc.engine), log.WithComponent("anonymizer").Logger, anonOptions)

	limiter := ratelimit.New(ratelimit.Config{
		Enabled:        cfg.RateLimit.Enabled,
		RequestsPerMin: cfg.RateLimit.RequestsPerMin,
		Burst:          cfg.RateLimit.Burst,
		TrustedProxies: cfg.RateLimit.TrustedProxies,
	})
	limiter.StartCleanupRoutine(ctx, 5*time.Minute)
	m.RegisterGaugeFunc("rate_limited_clients", "Clients currently tracked by the rate limiter.", func() float64 {
		return float64(limiter.Clients())
	})

	screen, err := privacy.New(privacy.Config{
		Enabled:   cfg.Privacy.Enabled,
		Detectors: cfg.Privacy.Detectors,
		Action:    privacy.Action(cfg.Privacy.Action),
	}, log.WithComponent("privacy").Logger)
	if err != nil {
		log.Fatal("Failed to initialize identifier screening", zap.Error(err))
	}

	opts := server.Options{
		Limiter: limiter,
		Metrics: m,
		Screen:  screen,
	}
	if svc.store != nil {
		opts.Recorder = svc.store
	}

	if cfg.WebSocket.Enabled {
		hub := websocket.NewHub(&websocket.HubConfig{
			BroadcastJobs:        cfg.WebSocket.Events.BroadcastJobs,
			BroadcastConnections: cfg.WebSocket.Events.BroadcastConnections,
			ReadBufferSize:       cfg.WebSocket.ReadBufferSize,
			WriteBufferSize:      cfg.WebSocket.WriteBufferSize,
			AllowedOrigins:       cfg.WebSocket.AllowedOrigins,
			Username:             cfg.WebSocket.Username,
			Password:             cfg.WebSocket.Password,
		}, log.WithComponent("websocket").Logger)
		go hub.Run(ctx)
		m.RegisterGaugeFunc("websocket_clients", "Connected job event subscribers.", func() float64 {
			return float64(hub.GetStats().ActiveConnections)
		})
		opts.Hub = hub
	}

	srv := server.New(cfg, log, anon, opts)

	// Log level and rate limits apply without a restart; everything else
	// needs one.
	config.Watch(func(updated *config.Config) {
		if err := log.SetLevel(updated.Logging.Level); err != nil {
			log.Warn("Ignoring invalid log level", zap.String("level", updated.Logging.Level), zap.Error(err))
		}
		limiter.Update(ratelimit.Config{
			Enabled:        updated.RateLimit.Enabled,
			RequestsPerMin: updated.RateLimit.RequestsPerMin,
			Burst:          updated.RateLimit.Burst,
			TrustedProxies: updated.RateLimit.TrustedProxies,
		})
		log.Info("Configuration reloaded",
			zap.String("log_level", log.Level()),
			zap.Bool("rate_limit_enabled", updated.RateLimit.Enabled),
			zap.Int("requests_per_min", updated.RateLimit.RequestsPerMin))
	}, func(err error) {
		log.Warn("Configuration reload rejected", zap.Error(err))
	})

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()

		if err := srv.Stop(stopCtx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// services holds the collaborators that own external connections
type services struct {
	engine anonymizer.Engine
	cache  *engine.CachedEngine
	store  *contextstore.Store
}

func (s *services) cleanup() {
	if s.cache != nil {
		s.cache.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

// initializeServices connects the engine, its optional outcome cache and the
// optional context store
func initializeServices(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*services, error) {
	svc := &services{}

	remote, err := engine.NewRemoteEngine(&engine.Config{
		URL:              cfg.Engine.URL,
		Timeout:          cfg.Engine.Timeout,
		MaxResponseBytes: cfg.Engine.MaxResponseBytes,
	}, log.WithComponent("engine").Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine client: %w", err)
	}
	svc.engine = remote

	if cfg.Cache.Enabled {
		cached, err := engine.NewCachedEngine(remote, &engine.CacheConfig{
			RedisURL:       cfg.Cache.RedisURL,
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DefaultTTL:     cfg.Cache.DefaultTTL,
			KeyPrefix:      cfg.Cache.KeyPrefix,
		}, log.WithComponent("cache").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize outcome cache: %w", err)
		}
		svc.cache = cached
		svc.engine = cached

		m.RegisterGaugeFunc("cache_hits", "Outcome cache hits since start.", func() float64 {
			return float64(cached.Stats().Hits)
		})
		m.RegisterGaugeFunc("cache_misses", "Outcome cache misses since start.", func() float64 {
			return float64(cached.Stats().Misses)
		})
		m.RegisterGaugeFunc("cache_errors", "Outcome cache Redis failures since start.", func() float64 {
			return float64(cached.Stats().Errors)
		})
	}

	if cfg.Context.Enabled {
		store, err := contextstore.NewStore(&contextstore.Config{
			DatabaseURL:     cfg.Context.DatabaseURL,
			MaxOpenConns:    cfg.Context.MaxOpenConns,
			MaxIdleConns:    cfg.Context.MaxIdleConns,
			ConnMaxLifetime: cfg.Context.ConnMaxLifetime,
			MaxRows:         cfg.Context.MaxRows,
			BatchSize:       cfg.Context.BatchSize,
		}, log.WithComponent("contextstore").Logger)
		if err != nil {
			if svc.cache != nil {
				svc.cache.Close()
			}
			return nil, fmt.Errorf("failed to initialize context store: %w", err)
		}
		svc.store = store
	}

	return svc, nil
}

// performHealthCheck performs a health check against the running server
func performHealthCheck(url string) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
