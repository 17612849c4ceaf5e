package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatekeeper/internal/api"
	"gatekeeper/internal/config"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo())
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Construct the adaptive rate limiter
	limiter := ratelimit.New(
		ratelimit.WithTiers(tiersFromConfig(cfg.RateLimit)),
		ratelimit.WithPolicy(ratelimit.NewAdaptivePolicy(
			cfg.RateLimit.AdaptiveStep,
			cfg.RateLimit.MinMultiplier,
			cfg.RateLimit.MaxMultiplier,
		)),
		ratelimit.WithLookback(cfg.RateLimit.Lookback),
		ratelimit.WithIdleHorizon(cfg.RateLimit.IdleHorizon),
		ratelimit.WithSweepProbability(cfg.RateLimit.SweepProbability),
	)

	// Wrap the limiter with instrumentation if metrics are enabled
	var decider ratelimit.Decider = limiter
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedLimiter(limiter)
		if err != nil {
			slog.Error("Failed to create instrumented limiter", "error", err)
			os.Exit(1)
		}
		decider = instrumented
	}

	// Initialize HTTP handlers and routes
	handlers := api.NewHandlers(decider, limiter)

	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	if cfg.RateLimit.Enabled {
		routeOpts = append(routeOpts, api.WithRateLimiter(ratelimit.Middleware(decider)))
	}

	router := api.SetupRoutes(handlers, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting gatekeeper service",
			"addr", server.Addr,
			"rate_limiting", cfg.RateLimit.Enabled,
			"metrics", cfg.Metrics.Enabled,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	slog.Info("Server exited")
}

// tiersFromConfig converts configured tier overrides into the limiter's tier
// table. An empty override list keeps the built-in defaults.
func tiersFromConfig(cfg models.RateLimitConfig) []ratelimit.Tier {
	if len(cfg.Tiers) == 0 {
		return nil
	}
	tiers := make([]ratelimit.Tier, 0, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		tiers = append(tiers, ratelimit.Tier{
			Name:        t.Name,
			MaxRequests: t.MaxRequests,
			BurstLimit:  t.BurstLimit,
			Window:      t.Window,
			Priority:    t.Priority,
		})
	}
	return tiers
}
