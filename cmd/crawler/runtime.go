package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/phuslu/log"
	"github.com/redis/go-redis/v9"

	"github.com/opencruit/crawler/internal/config"
	"github.com/opencruit/crawler/internal/db"
	"github.com/opencruit/crawler/internal/handlers"
	"github.com/opencruit/crawler/internal/hh"
	"github.com/opencruit/crawler/internal/ingest"
	"github.com/opencruit/crawler/internal/queue"
	"github.com/opencruit/crawler/internal/sources"
	"github.com/opencruit/crawler/internal/telemetry"
)

// runtime holds the wired process dependencies. Everything is built once
// here and passed by reference; no package-level shared state.
type runtime struct {
	cfg      *config.Config
	logger   log.Logger
	store    *db.DB
	redis    *redis.Client
	queue    *queue.Client
	hhClient *hh.Client
	pipeline *ingest.Pipeline
	health   *telemetry.Recorder
	handlers *handlers.Handlers
	catalog  *sources.Catalog
}

func newLogger() log.Logger {
	return log.Logger{
		Level:      log.InfoLevel,
		TimeFormat: time.RFC3339,
		Writer:     &log.IOWriter{Writer: os.Stderr},
	}
}

// newRuntime connects to Postgres and Redis and wires the full handler
// stack. Callers must defer rt.close().
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger()

	store, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	queueClient := queue.NewClient(rdb, queue.StagePolicies)

	hhClient := hh.NewClient(hh.Options{
		UserAgent:               cfg.HHUserAgent,
		AccessToken:             cfg.HHAccessToken,
		MinDelay:                cfg.HHMinDelay,
		MaxDelay:                cfg.HHMaxDelay,
		Timeout:                 cfg.HHTimeout,
		MaxRetries:              cfg.HHMaxRetries,
		CircuitFailureThreshold: cfg.HHCircuitFailureThreshold,
		CircuitOpen:             cfg.HHCircuitOpen,
	})

	pipeline := ingest.NewPipeline(store, logger)
	health := telemetry.NewRecorder(store, logger)
	catalog := sources.Default()

	h := handlers.New(store, queueClient, hhClient, pipeline, catalog, health, handlers.Options{
		MaxHydrateBacklog: int64(cfg.HHHydrateMaxBacklog),
		Logger:            logger,
	})

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		redis:    rdb,
		queue:    queueClient,
		hhClient: hhClient,
		pipeline: pipeline,
		health:   health,
		handlers: h,
		catalog:  catalog,
	}, nil
}

// close releases connections, queue side first, database last.
func (rt *runtime) close() {
	if err := rt.redis.Close(); err != nil {
		rt.logger.Warn().Err(err).Msg("failed to close redis connection")
	}
	rt.store.Close()
}
