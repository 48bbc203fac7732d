package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/dispatcher"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/queue"
	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QueueStatsHandler creates a handler exposing analysis queue depths.
// @Summary Get analysis queue statistics.
// @Tags analysis
// @Produce json
// @Success 200 {object} QueueStatsResponseDTO "Queue depths and counters"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /v1/analysis/queue/stats [get]
func QueueStatsHandler(
	ctx context.Context,
	jobQueue queue.JobQueue,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := jobQueue.Stats(ctx)
		if err != nil {
			logger.Error("Error encountered when reading queue stats", zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}
		metrics.QueueDepth.WithLabelValues("waiting").Set(float64(stats.Waiting))
		metrics.QueueDepth.WithLabelValues("active").Set(float64(stats.Active))

		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(QueueStatsResponseDTO{
			Waiting:   stats.Waiting,
			Active:    stats.Active,
			Completed: stats.Completed,
			Failed:    stats.Failed,
		})
		if err != nil {
			logger.Error("Error encountered when encoding response", zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}
	}
}

// AnalysisRequestHandler creates a handler enqueueing an on-demand deep
// analysis of a trace. Both analysis layers run for explicit requests.
// @Summary Request deep analysis of a trace.
// @Tags analysis
// @Accept json
// @Produce json
// @Param request body AnalysisRequestDTO true "The trace to analyze"
// @Success 202 {object} AnalysisResponseDTO "Whether the job was enqueued"
// @Failure 400 {object} ErrorMessage "Invalid request payload"
// @Router /v1/analysis/jobs [post]
func AnalysisRequestHandler(
	ctx context.Context,
	analysisDispatcher *dispatcher.Dispatcher,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalysisRequestDTO
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			logger.Error("Error encountered when decoding request body", zap.Error(err))
			HttpError(w, "Invalid request payload", http.StatusBadRequest, logger)
			return
		}

		defer func(Body io.ReadCloser) {
			err := Body.Close()
			if err != nil {
				logger.Error("Error encountered when closing request body", zap.Error(err))
			}
		}(r.Body)

		if req.TenantID == "" || req.TraceID == "" {
			HttpError(w, "tenant_id and trace_id are required", http.StatusBadRequest, logger)
			return
		}

		spanID := req.SpanID
		if spanID == "" {
			// Explicit requests may target a whole trace; signals produced by
			// the analysis still need a distinct span identity.
			spanID = uuid.NewString()
		}
		source := eventmodel.CanonicalEvent{
			TenantID:  req.TenantID,
			ProjectID: req.ProjectID,
			TraceID:   req.TraceID,
			SpanID:    spanID,
		}
		attrs := eventmodel.Attributes{
			LLMCall: &eventmodel.LLMCallAttributes{
				Model:    req.Model,
				Query:    req.Query,
				Response: req.Response,
			},
		}
		enqueued := analysisDispatcher.DispatchExplicit(ctx, source, attrs)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		err = json.NewEncoder(w).Encode(AnalysisResponseDTO{Enqueued: enqueued})
		if err != nil {
			logger.Error("Error encountered when encoding response", zap.Error(err))
			return
		}
	}
}
