package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/judge"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/queue"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/worker"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/config"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/elasticsearch/bootstrapper"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/elasticsearch/client"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/relational"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/sink"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.RedisAddress == "" {
		logger.Fatal("Analysis worker requires a configured redis address")
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.ElasticsearchAddresses})
	if err != nil {
		logger.Error("Failed to create elasticsearch client", zap.Error(err))
	}

	bs := bootstrapper.NewBootstrapper(es, logger)
	err = bs.BootstrapElasticsearch()
	if err != nil {
		logger.Error("Failed to bootstrap elasticsearch", zap.Error(err))
	}

	ac := client.NewAnalyticsClientImpl(es, client.Async)
	mirror := openMirror(cfg, logger)
	eventSink := sink.NewAnalyticalEventSink(ac, mirror, logger)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
	})
	jobQueue := queue.NewRedisJobQueue(redisClient, logger)
	judgeClient := judge.NewHTTPClient(cfg.JudgeBaseURL, judge.DefaultRetryPolicy(), logger)

	pool := worker.NewPool(
		jobQueue,
		judgeClient,
		eventSink,
		cfg.WorkerConcurrency,
		cfg.WorkerJobsPerMinute,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.Info(
		"Starting analysis worker pool",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Int("jobs_per_minute", cfg.WorkerJobsPerMinute),
	)
	pool.Run(ctx)
	logger.Info("Analysis worker pool stopped")
}

func openMirror(cfg *config.Config, logger *zap.Logger) relational.EventStore {
	if cfg.RelationalDriver == "" {
		return nil
	}
	db, err := relational.OpenDatabase(cfg.RelationalDriver, cfg.RelationalDSN)
	if err != nil {
		logger.Error("Failed to open relational mirror, continuing without it", zap.Error(err))
		return nil
	}
	store, err := relational.NewGormEventStore(db, logger)
	if err != nil {
		logger.Error("Failed to migrate relational mirror, continuing without it", zap.Error(err))
		return nil
	}
	return store
}
