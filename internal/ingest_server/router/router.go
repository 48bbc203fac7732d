package router

import (
	"context"
	"net/http"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/sink"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/translator"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/ingest_server/handler"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/signal/engine"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)
import "github.com/gorilla/mux"

func CreateRouter(
	ctx context.Context,
	eventTranslator *translator.Translator,
	eventSink sink.EventSink,
	detectionEngine *engine.DetectionEngine,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()

	r.Handle(
		"/v1/events", handler.EventBatchHandler(
			ctx,
			eventTranslator,
			eventSink,
			detectionEngine,
			logger,
		),
	).Methods("POST")

	r.Handle(
		"/v1/legacy", handler.LegacyBatchHandler(
			ctx,
			eventTranslator,
			eventSink,
			detectionEngine,
			logger,
		),
	).Methods("POST")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}
