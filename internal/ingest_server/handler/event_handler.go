package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/sink"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/translator"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/metrics"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/signal/engine"
	"go.uber.org/zap"
)

// EventBatchHandler creates a handler ingesting canonical events. The body is
// newline-delimited JSON, one wire record per line. A record failing
// validation is rejected individually and reported in the response; it never
// fails the rest of the batch.
// @Summary Ingest a batch of canonical events.
// @Tags ingestion
// @Accept json
// @Produce json
// @Success 200 {object} IngestResponseDTO "Batch ingestion summary"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /v1/events [post]
func EventBatchHandler(
	ctx context.Context,
	eventTranslator *translator.Translator,
	eventSink sink.EventSink,
	detectionEngine *engine.DetectionEngine,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func(Body io.ReadCloser) {
			err := Body.Close()
			if err != nil {
				logger.Error("Error encountered when closing request body", zap.Error(err))
			}
		}(r.Body)

		decoder := json.NewDecoder(r.Body)
		var events []eventmodel.CanonicalEvent
		var recordErrors []RecordErrorDTO
		index := 0
		for {
			var record translator.WireEvent
			err := decoder.Decode(&record)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				// A syntax error poisons the rest of the stream.
				logger.Error("Error encountered when decoding event record", zap.Error(err))
				recordErrors = append(recordErrors, RecordErrorDTO{
					Index:  index,
					Field:  "body",
					Reason: "is not a parseable JSON record, remainder of batch dropped",
				})
				break
			}
			event, err := eventTranslator.TranslateWire(record)
			if err != nil {
				recordErrors = append(recordErrors, toRecordErrorDTO(index, err))
				index++
				continue
			}
			events = append(events, event)
			index++
		}

		writeBatch(ctx, w, events, recordErrors, eventSink, detectionEngine, logger)
	}
}

// LegacyBatchHandler creates a handler ingesting the flattened legacy trace
// shape. The body is a JSON array; each record expands to one or more
// canonical events.
// @Summary Ingest a batch of legacy trace records.
// @Tags ingestion
// @Accept json
// @Produce json
// @Success 200 {object} IngestResponseDTO "Batch ingestion summary"
// @Failure 400 {object} ErrorMessage "Invalid request payload"
// @Failure 500 {object} ErrorMessage "Internal server error"
// @Router /v1/legacy [post]
func LegacyBatchHandler(
	ctx context.Context,
	eventTranslator *translator.Translator,
	eventSink sink.EventSink,
	detectionEngine *engine.DetectionEngine,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var records []translator.LegacyTraceRecord
		err := json.NewDecoder(r.Body).Decode(&records)
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

		var events []eventmodel.CanonicalEvent
		var recordErrors []RecordErrorDTO
		for i, record := range records {
			translated, err := eventTranslator.TranslateLegacy(record)
			if err != nil {
				recordErrors = append(recordErrors, toRecordErrorDTO(i, err))
				continue
			}
			events = append(events, translated...)
		}

		writeBatch(ctx, w, events, recordErrors, eventSink, detectionEngine, logger)
	}
}

func writeBatch(
	ctx context.Context,
	w http.ResponseWriter,
	events []eventmodel.CanonicalEvent,
	recordErrors []RecordErrorDTO,
	eventSink sink.EventSink,
	detectionEngine *engine.DetectionEngine,
	logger *zap.Logger,
) {
	if len(events) > 0 {
		if err := eventSink.WriteEvents(ctx, events); err != nil {
			logger.Error("Error encountered when writing events", zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}
		metrics.EventsIngested.WithLabelValues("http").Add(float64(len(events)))
		// Detection runs in the request path. It never blocks on anything
		// slower than a queue push and swallows every internal error, so the
		// response cost is bounded and signals are durable before the caller
		// sees the ack.
		detectionEngine.Process(ctx, events)
	}
	metrics.EventsRejected.Add(float64(len(recordErrors)))

	response := IngestResponseDTO{
		Accepted: len(events),
		Rejected: len(recordErrors),
		Errors:   recordErrors,
	}
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		logger.Error("Error encountered when encoding response", zap.Error(err))
		HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
		return
	}
}

func toRecordErrorDTO(index int, err error) RecordErrorDTO {
	var validationErr *translator.ValidationError
	if errors.As(err, &validationErr) {
		return RecordErrorDTO{
			Index:  index,
			Field:  validationErr.Field,
			Reason: validationErr.Reason,
		}
	}
	return RecordErrorDTO{
		Index:  index,
		Field:  "record",
		Reason: err.Error(),
	}
}
