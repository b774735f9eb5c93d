package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kelseyhightower/envconfig"

	"momogateway/internal/common/cache"
	"momogateway/internal/common/middleware"
	natsclient "momogateway/internal/common/nats"
	"momogateway/internal/gateway"
	"momogateway/internal/gateway/api"
)

// Config holds service configuration
type Config struct {
	Port        int    `envconfig:"GATEWAY_PORT" default:"8090"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	APIKeys     []string `envconfig:"GATEWAY_API_KEYS"`
	CORSOrigins []string `envconfig:"GATEWAY_CORS_ORIGINS" default:"*"`

	RateLimit       int           `envconfig:"GATEWAY_RATE_LIMIT" default:"60"`
	RateLimitWindow time.Duration `envconfig:"GATEWAY_RATE_LIMIT_WINDOW" default:"1m"`
	IdempotencyTTL  time.Duration `envconfig:"GATEWAY_IDEMPOTENCY_TTL" default:"24h"`

	EventsEnabled bool `envconfig:"GATEWAY_EVENTS_ENABLED" default:"false"`

	Redis   cache.Config
	NATS    natsclient.Config
	Gateway gateway.Config
}

func main() {
	// Load configuration
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to process config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

	// Create context that listens for shutdown signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Build the gateway and bind adapters
	gw := gateway.New(cfg.Gateway, logger)

	// Optional event publishing
	var nc *natsclient.Client
	if cfg.EventsEnabled {
		var err error
		nc, err = natsclient.New(ctx, cfg.NATS, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()

		stream := natsclient.DefaultStreamConfig("MOMO", []string{"events.>"})
		if _, err := nc.EnsureStream(ctx, stream); err != nil {
			logger.Error("failed to ensure event stream", "error", err)
			os.Exit(1)
		}

		gw.SetPublisher(natsclient.NewPublisher(nc, logger))
	}

	// Create handlers
	gatewayHandler := api.NewHandler(gw)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(chimw.Compress(5))

	// Optional Redis-backed rate limiting and idempotency
	var apiMiddleware []func(http.Handler) http.Handler
	if cfg.Redis.Addr != "" {
		redisClient := cache.New(cfg.Redis)
		defer redisClient.Close()

		limiter := cache.NewRateLimiter(redisClient, cfg.RateLimit, cfg.RateLimitWindow)
		apiMiddleware = append(apiMiddleware,
			middleware.RateLimit(limiter, func(r *http.Request) string {
				return r.RemoteAddr
			}),
			middleware.Idempotency(cache.NewIdempotencyStore(redisClient), cfg.IdempotencyTTL),
		)
		logger.Info("redis features enabled", "addr", cfg.Redis.Addr)
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if nc != nil {
			if err := nc.HealthCheck(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Ready check
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	// API routes, key-protected when keys are configured
	r.Route("/api/v1", func(r chi.Router) {
		if len(cfg.APIKeys) > 0 {
			r.Use(middleware.APIKeyAuth(cfg.APIKeys))
		}
		r.Use(apiMiddleware...)
		r.Mount("/", gatewayHandler.Routes())
	})

	// Provider notification endpoints stay outside the API key boundary
	r.Route("/callbacks", func(r chi.Router) {
		r.Mount("/", gatewayHandler.CallbackRoutes())
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting payment gateway",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"simulation", cfg.Gateway.Simulation,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
