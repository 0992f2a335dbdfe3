package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pulsestream/pulsestream/internal/config"
	"github.com/pulsestream/pulsestream/internal/httpapi"
	"github.com/pulsestream/pulsestream/internal/ingest"
	"github.com/pulsestream/pulsestream/internal/query"
	"github.com/pulsestream/pulsestream/internal/queue"
	"github.com/pulsestream/pulsestream/internal/ratelimiter"
	"github.com/pulsestream/pulsestream/internal/store"
	"github.com/pulsestream/pulsestream/internal/tenantauth"
	"github.com/pulsestream/pulsestream/internal/validate"
)

func main() {
	// Configure structured logging
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "pulsestream").Logger()

	cfg := config.Load()

	// Pretty logging for local dev (only when explicitly set to "dev")
	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	ctx := context.Background()

	pool, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("failed to parse REDIS_URL")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if cfg.Env != "dev" && cfg.SessionSigningSecret == "dev-secret-change-in-production" {
		log.Fatal().Msg("FATAL: cannot start outside dev mode with the default SESSION_SIGNING_SECRET; " +
			"set it to a secure random value (e.g., openssl rand -base64 32)")
	}

	registry := tenantauth.NewRegistry(pool, rdb, 30*time.Second)
	invalidationCtx, stopInvalidation := context.WithCancel(ctx)
	defer stopInvalidation()
	go registry.WatchInvalidations(invalidationCtx)

	limiter := ratelimiter.New(rdb, cfg.RateLimiterFailOpen)
	enqueuer := queue.NewRedis(rdb)

	validateCfg := validate.Config{
		ClockSkewTolerance: cfg.ClockSkewTolerance,
		RetentionHorizon:   cfg.RetentionHorizon,
		MaxPayloadSize:     cfg.MaxPayloadSize,
	}
	coordinator := &ingest.Coordinator{
		Store:       pool,
		Limiter:     limiter,
		Enqueuer:    enqueuer,
		ValidateCfg: validateCfg,
	}

	srv := &httpapi.Server{
		Store:            pool,
		Coordinator:      coordinator,
		BatchCoordinator: &ingest.BatchCoordinator{Coordinator: coordinator, MaxBatchSize: cfg.MaxBatchSize},
		Query:            &query.Service{Store: pool},
		TenantAuth:       registry,
		MaxBatchSize:     cfg.MaxBatchSize,
		RequestDeadline:  cfg.RequestDeadline,
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
