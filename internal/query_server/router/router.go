package router

import (
	"context"
	"net/http"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/dispatcher"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/queue"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/query_server/handler"
	traceService "github.com/NikushaDevashvili/observa-api-sub002/internal/trace/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)
import "github.com/gorilla/mux"

func CreateRouter(
	ctx context.Context,
	traceQueryService traceService.TraceQueryService,
	jobQueue queue.JobQueue,
	analysisDispatcher *dispatcher.Dispatcher,
	logger *zap.Logger,
) http.Handler {
	r := mux.NewRouter()

	r.Handle(
		"/v1/traces/{traceId}", handler.TraceDetailHandler(
			ctx,
			traceQueryService,
			logger,
		),
	).Methods("GET")

	r.Handle(
		"/v1/traces", handler.TraceListHandler(
			ctx,
			traceQueryService,
			logger,
		),
	).Methods("GET")

	if jobQueue != nil {
		r.Handle(
			"/v1/analysis/queue/stats", handler.QueueStatsHandler(
				ctx,
				jobQueue,
				logger,
			),
		).Methods("GET")
	}

	r.Handle(
		"/v1/analysis/jobs", handler.AnalysisRequestHandler(
			ctx,
			analysisDispatcher,
			logger,
		),
	).Methods("POST")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}
