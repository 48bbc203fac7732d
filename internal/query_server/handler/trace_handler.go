package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/trace/reconstructor"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/trace/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TraceDetailHandler creates a handler returning the reconstructed span tree
// for a single trace.
// @Summary Get the reconstructed detail of one trace.
// @Tags traces
// @Produce json
// @Param traceId path string true "The trace id"
// @Param tenant_id query string true "The owning tenant"
// @Success 200 {object} model.TraceDetail "The reconstructed trace"
// @Failure 400 {object} ErrorMessage "Missing tenant"
// @Failure 404 {object} ErrorMessage "Trace not found"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /v1/traces/{traceId} [get]
func TraceDetailHandler(
	ctx context.Context,
	ts service.TraceQueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		traceID := mux.Vars(r)["traceId"]
		tenantID := r.URL.Query().Get("tenant_id")
		if tenantID == "" {
			HttpError(w, "tenant_id query parameter is required", http.StatusBadRequest, logger)
			return
		}

		detail, err := ts.GetTraceDetail(ctx, tenantID, traceID)
		if err != nil {
			if errors.Is(err, reconstructor.ErrTraceNotFound) {
				HttpError(w, "Trace not found", http.StatusNotFound, logger)
				return
			}
			logger.Error("Error encountered when getting trace detail", zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(detail)
		if err != nil {
			logger.Error("Error encountered when encoding response", zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}
	}
}

// TraceListHandler creates a handler listing recent trace ids for a tenant,
// optionally bounded by a start/end time window.
// @Summary List recent trace ids.
// @Tags traces
// @Produce json
// @Param tenant_id query string true "The owning tenant"
// @Param start query string false "RFC3339 window start"
// @Param end query string false "RFC3339 window end"
// @Success 200 {object} TraceListResponseDTO "The trace ids, newest first"
// @Failure 400 {object} ErrorMessage "Missing tenant or bad window"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /v1/traces [get]
func TraceListHandler(
	ctx context.Context,
	ts service.TraceQueryService,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.URL.Query().Get("tenant_id")
		if tenantID == "" {
			HttpError(w, "tenant_id query parameter is required", http.StatusBadRequest, logger)
			return
		}
		start, err := parseWindowBound(r.URL.Query().Get("start"))
		if err != nil {
			HttpError(w, "start is not a parseable RFC3339 instant", http.StatusBadRequest, logger)
			return
		}
		end, err := parseWindowBound(r.URL.Query().Get("end"))
		if err != nil {
			HttpError(w, "end is not a parseable RFC3339 instant", http.StatusBadRequest, logger)
			return
		}

		traceIDs, err := ts.ListTraceIDs(ctx, tenantID, start, end)
		if err != nil {
			logger.Error("Error encountered when listing traces", zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(TraceListResponseDTO{TraceIDs: traceIDs})
		if err != nil {
			logger.Error("Error encountered when encoding response", zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}
	}
}

func parseWindowBound(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	utc := parsed.UTC()
	return &utc, nil
}
