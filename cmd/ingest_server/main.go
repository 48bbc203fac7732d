package main

import (
	"context"
	"log"
	"net/http"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/dispatcher"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/queue"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/config"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/elasticsearch/bootstrapper"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/elasticsearch/client"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/relational"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/sink"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/translator"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/ingest_server/router"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/signal/engine"
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
	eventTranslator := translator.NewTranslator(logger)

	var jobQueue queue.JobQueue
	if cfg.RedisAddress != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
		})
		jobQueue = queue.NewRedisJobQueue(redisClient, logger)
	}
	analysisDispatcher := dispatcher.NewDispatcher(jobQueue, cfg.SampleRate, logger)
	detectionEngine := engine.NewDetectionEngine(eventSink, analysisDispatcher, logger)

	r := router.CreateRouter(context.Background(), eventTranslator, eventSink, detectionEngine, logger)
	logger.Info("Starting ingest server", zap.String("address", cfg.IngestServerAddress))
	if err := http.ListenAndServe(cfg.IngestServerAddress, r); err != nil {
		logger.Fatal("Failed to serve: %v", zap.Error(err))
	}
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
