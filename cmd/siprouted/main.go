package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/siprouted/siprouted/internal/api"
	"github.com/siprouted/siprouted/internal/cache"
	"github.com/siprouted/siprouted/internal/config"
	"github.com/siprouted/siprouted/internal/consul"
	"github.com/siprouted/siprouted/internal/database"
	"github.com/siprouted/siprouted/internal/metrics"
	"github.com/siprouted/siprouted/internal/normalize"
	"github.com/siprouted/siprouted/internal/routing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("starting siprouted",
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
	)

	// Consul is optional. When configured it provides service registration
	// and may override the database DSN from the KV store.
	var discovery *consul.Service
	if cfg.ConsulURI != "" {
		discovery, err = consul.Connect(cfg.ConsulURI, logger)
		if err != nil {
			slog.Error("failed to connect to consul", "error", err)
			os.Exit(1)
		}
		dsn, err := discovery.DatabaseURL()
		if err != nil {
			slog.Error("failed to read database url from consul", "error", err)
			os.Exit(1)
		}
		if dsn != "" {
			cfg.DatabaseURL = dsn
		}
	}

	// Open database and run migrations.
	db, err := database.Open(cfg.DatabaseURL, cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := database.NewRepositories(db)

	// Redis is optional. When configured, domain lookups on the routing
	// path are served from the cache.
	if cfg.RedisAddress != "" {
		cacheClient, err := cache.New(cache.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer cacheClient.Close()
		repos.Domains = cache.NewDomains(repos.Domains, cacheClient, logger)
		slog.Info("domain cache enabled", "redis_address", cfg.RedisAddress)
	}

	index := normalize.NewPrefixIndex(repos.Rules, logger)
	normalizer := normalize.NewNormalizer(index)
	matcher := routing.NewMatcher(repos, normalizer, logger)

	// Metrics registry: routing counters plus scrape-time entity gauges.
	registry := prometheus.NewRegistry()
	rm := metrics.NewRoutingMetrics(registry)
	registry.MustRegister(metrics.NewCollector(map[string]metrics.EntityCounter{
		"tenants":        repos.Tenants,
		"domains":        repos.Domains,
		"ipbx":           repos.IPBX,
		"carriers":       repos.Carriers,
		"carrier_trunks": repos.CarrierTrunks,
		"dids":           repos.DIDs,
	}, time.Now()))
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	var jwtSecret []byte
	if cfg.JWTSecret != "" {
		jwtSecret, err = hex.DecodeString(cfg.JWTSecret)
		if err != nil {
			slog.Error("failed to decode jwt secret", "error", err)
			os.Exit(1)
		}
	}

	apiServer := api.NewServer(cfg, repos, matcher, index, rm, metricsHandler, jwtSecret, logger)
	defer apiServer.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      apiServer,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Register with Consul only after the HTTP server is up so the health
	// check passes on the first poll.
	if discovery != nil {
		if err := discovery.Register(cfg.AdvertiseHost, cfg.AdvertisePort); err != nil {
			slog.Error("failed to register with consul", "error", err)
			os.Exit(1)
		}
		defer discovery.Deregister()
	}

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down server")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("siprouted stopped")
}
