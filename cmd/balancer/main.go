// Command balancer is the reverse-proxy load balancer entry point.
//
// Usage:
//
//	balancer [-config path/to/balancer.yaml]
//
// The balancer supports zero-downtime hot-reload: edit balancer.yaml while
// the process is running and changes to rate-limit and auth settings take
// effect immediately — no restart needed. Shutdown is graceful: send SIGINT
// or SIGTERM and in-flight requests are given up to 10 seconds to complete.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golb/internal/admin"
	"golb/internal/backend"
	"golb/internal/config"
	"golb/internal/forward"
	"golb/internal/health"
	"golb/internal/ingress"
	"golb/internal/middleware"
	"golb/internal/registry"
	"golb/internal/strategy"
)

// Version information — set at build time via -ldflags.
//
//	-X main.version=$(git describe --tags --always)
//	-X main.commit=$(git rev-parse --short HEAD)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/balancer.yaml", "path to balancer.yaml")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, v, err := config.Load(*configPath)
	if err != nil {
		slog.Warn("could not load config file, using defaults", "path", *configPath, "error", err)
		cfg = config.Default()
		v = nil
	}

	reg, mon, eng, metrics := build(cfg)
	reg.Reconcile()
	mon.Start()

	forwardHandler := ingress.New(eng)

	// The atomicHandler lets the rate-limit/auth wrapping around the
	// forwarding path be swapped at runtime without restarting the server.
	var current atomic.Value
	buildChain := func(c config.Config) http.Handler {
		var h http.Handler = forwardHandler
		if c.Auth.Enabled {
			h = middleware.JWTAuth(c.Auth.Secret, c.Auth.Exclude)(h)
		}
		if c.RateLimit.Enabled {
			h = middleware.RateLimiter(c.RateLimit.RPS, c.RateLimit.Burst)(h)
		}
		return middleware.Logger(h)
	}
	current.Store(buildChain(cfg))

	atomicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current.Load().(http.Handler).ServeHTTP(w, r)
	})

	if v != nil {
		config.Watch(v, func(newCfg config.Config) {
			current.Store(buildChain(newCfg))
			slog.Info("hot-reload applied",
				"rate_limit", newCfg.RateLimit.Enabled,
				"auth", newCfg.Auth.Enabled,
			)
		})
	}

	view := admin.NewView(reg, cfg.Strategy)
	adminSrv := admin.New(view, metrics, cfg.AdminListenAddr)
	adminSrv.Start()

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      atomicHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("balancer listening",
			"addr", cfg.ListenAddr,
			"admin_addr", cfg.AdminListenAddr,
			"strategy", cfg.Strategy,
			"discovery", cfg.Discovery.Strategy,
			"version", version,
			"commit", commit,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down balancer")
	mon.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := adminSrv.Stop(ctx); err != nil {
		slog.Error("admin server forced shutdown", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("balancer stopped")
}

// build wires a Config into the registry, health monitor, forwarding engine,
// and metrics set that make up one running balancer.
func build(cfg config.Config) (*registry.Registry, *health.Monitor, *forward.Engine, *admin.Metrics) {
	var src backend.Source
	if cfg.Discovery.Strategy == "file" {
		src = backend.NewFileSource(cfg.Discovery.FilePath)
	} else {
		src = backend.NewStaticSource(cfg.Servers)
	}

	seed := registry.SeedConfig{
		InitialLatencyMs:       cfg.InitialLatency,
		WindowHorizon:          cfg.Slowness.WindowHorizon(),
		WindowCapacity:         cfg.Slowness.WindowSize,
		CooldownSeconds:        cfg.Slowness.Cooldown(),
		SlowThresholdMs:        cfg.Slowness.ThresholdMs,
		SlownessWindowSize:     cfg.Slowness.WindowSize,
		SlownessThresholdRatio: cfg.Slowness.ThresholdRatio,
	}
	reg := registry.New(src, seed)

	metrics := admin.NewMetrics()

	mon := health.New(reg, health.Config{
		Interval:             cfg.HealthCheck.Interval(),
		Timeout:              cfg.HealthCheck.Timeout(),
		CooldownSeconds:      cfg.Slowness.Cooldown(),
		BackoffAfterFailures: 5,
	}, metrics)

	strat := strategy.New(cfg.Strategy)
	eng := forward.New(reg, strat, forward.Config{RequestTimeout: cfg.RequestTimeoutDuration()}, metrics)

	return reg, mon, eng, metrics
}
