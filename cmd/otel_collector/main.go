package main

import (
	"log"
	"net"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/config"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/elasticsearch/bootstrapper"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/elasticsearch/client"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/relational"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/write_buffer"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/sink"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/translator"
	traceServer "github.com/NikushaDevashvili/observa-api-sub002/internal/otel_server/trace/server"
	"github.com/elastic/go-elasticsearch/v8"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"
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

	listener, err := net.Listen("tcp", cfg.OTLPServerAddress)
	if err != nil {
		logger.Fatal("Failed to listen: %v", zap.Error(err))
	}

	ac := client.NewAnalyticsClientImpl(es, client.Async)
	mirror := openMirror(cfg, logger)
	eventSink := sink.NewAnalyticalEventSink(ac, mirror, logger)
	eventTranslator := translator.NewTranslator(logger)
	eventBuffer := write_buffer.NewEventWriteBufferImpl(eventSink, logger)

	srv := grpc.NewServer()
	traceServiceServer := traceServer.NewTraceServiceServerImpl(
		logger,
		eventTranslator,
		eventBuffer,
	)
	protoTrace.RegisterTraceServiceServer(srv, traceServiceServer)
	logger.Info("gRPC service started, listening for OpenTelemetry traces...")

	if err := srv.Serve(listener); err != nil {
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
