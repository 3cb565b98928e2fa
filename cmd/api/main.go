package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shipa-backend/config"
	"shipa-backend/docs/api"
	"shipa-backend/internal/adapter/gateway/paystack"
	"shipa-backend/internal/adapter/messaging/kafka"
	"shipa-backend/internal/adapter/storage/memory"
	pgStorage "shipa-backend/internal/adapter/storage/postgres"
	redisStorage "shipa-backend/internal/adapter/storage/redis"
	"shipa-backend/internal/app"
	"shipa-backend/internal/core/ports"
	"shipa-backend/pkg/logger"
	"shipa-backend/pkg/metrics"
)

type eventPublisher interface {
	ports.EventPublisher
	Close() error
}

func main() {
	cfgPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Store.Driver).
		Msg("Starting Shipa backend")

	ctx := context.Background()
	infra := app.Infra{
		Metrics:     metrics.New(),
		OpenAPISpec: api.OpenAPI,
	}

	switch cfg.Store.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		infra.Repos = app.MemoryRepositories(memory.New())
	default:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		infra.Repos = app.PostgresRepositories(pool)
		infra.HealthCheckers = append(infra.HealthCheckers, pgStorage.NewHealthCheck(pool))
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	infra.Redis = rdb
	infra.HealthCheckers = append(infra.HealthCheckers, redisStorage.NewHealthCheck(rdb))

	if cfg.Paystack.SecretKey == "" {
		log.Warn().Msg("Paystack secret key not set, checkout and webhooks will fail")
	}
	infra.Gateway = paystack.NewClient(nil, cfg.Paystack, logger.Component(log, "paystack"))

	var events eventPublisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled() {
		events = kafka.NewPublisher(kafka.NewWriter(cfg.Kafka), cfg.Kafka, logger.Component(log, "kafka"))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.OrderTopic).Msg("Publishing order events to Kafka")
	}
	defer func() {
		if err := events.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close event publisher")
		}
	}()
	infra.Events = events

	router := app.NewRouter(cfg, infra, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}
