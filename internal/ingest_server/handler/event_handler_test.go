package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/translator"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/signal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingSink struct {
	written []eventmodel.CanonicalEvent
}

func (s *capturingSink) WriteEvents(_ context.Context, events []eventmodel.CanonicalEvent) error {
	s.written = append(s.written, events...)
	return nil
}

func newIngestHandler(sink *capturingSink) http.HandlerFunc {
	logger := zap.NewNop()
	eventTranslator := translator.NewTranslator(logger)
	detectionEngine := engine.NewDetectionEngine(sink, nil, logger)
	return EventBatchHandler(context.Background(), eventTranslator, sink, detectionEngine, logger)
}

func TestEventBatchHandler(t *testing.T) {
	t.Run("Accepts valid records and rejects invalid ones individually", func(t *testing.T) {
		body := strings.Join([]string{
			`{"tenant_id":"tenant-1","trace_id":"trace-1","span_id":"span-1","timestamp":"2025-03-14T12:00:00Z","event_type":"trace_start"}`,
			`{"tenant_id":"","trace_id":"trace-1","span_id":"span-2","timestamp":"2025-03-14T12:00:00Z","event_type":"trace_start"}`,
			`{"tenant_id":"tenant-1","trace_id":"trace-1","span_id":"span-3","timestamp":"2025-03-14T12:00:01Z","event_type":"trace_end"}`,
		}, "\n")
		sink := &capturingSink{}
		recorder := httptest.NewRecorder()

		newIngestHandler(sink).ServeHTTP(
			recorder,
			httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body)),
		)

		require.Equal(t, http.StatusOK, recorder.Code)
		var response IngestResponseDTO
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, 2, response.Accepted)
		assert.Equal(t, 1, response.Rejected)
		require.Len(t, response.Errors, 1)
		assert.Equal(t, "tenant_id", response.Errors[0].Field)
		assert.Equal(t, 1, response.Errors[0].Index)
		assert.Len(t, sink.written, 2)
	})

	t.Run("An empty body accepts nothing and writes nothing", func(t *testing.T) {
		sink := &capturingSink{}
		recorder := httptest.NewRecorder()

		newIngestHandler(sink).ServeHTTP(
			recorder,
			httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader("")),
		)

		require.Equal(t, http.StatusOK, recorder.Code)
		var response IngestResponseDTO
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, 0, response.Accepted)
		assert.Empty(t, sink.written)
	})

	t.Run("Detected signals are durable before the response is written", func(t *testing.T) {
		body := `{"tenant_id":"tenant-1","trace_id":"trace-1","span_id":"span-1",` +
			`"timestamp":"2025-03-14T12:00:00Z","event_type":"llm_call",` +
			`"attributes":"{\"model\":\"gpt-4o\",\"latency_ms\":6000}"}`
		sink := &capturingSink{}
		recorder := httptest.NewRecorder()

		newIngestHandler(sink).ServeHTTP(
			recorder,
			httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body)),
		)

		require.Equal(t, http.StatusOK, recorder.Code)
		var response IngestResponseDTO
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, 1, response.Accepted)
		require.Len(t, sink.written, 2)
		assert.Equal(t, eventmodel.LLMCall, sink.written[0].EventType)
		assert.Equal(t, eventmodel.Error, sink.written[1].EventType)
		assert.Equal(t, "span-1-signal-high_latency", sink.written[1].SpanID)
	})

	t.Run("A syntax error drops the remainder of the batch", func(t *testing.T) {
		body := strings.Join([]string{
			`{"tenant_id":"tenant-1","trace_id":"trace-1","span_id":"span-1","timestamp":"2025-03-14T12:00:00Z","event_type":"trace_start"}`,
			`{not json at all`,
			`{"tenant_id":"tenant-1","trace_id":"trace-1","span_id":"span-3","timestamp":"2025-03-14T12:00:01Z","event_type":"trace_end"}`,
		}, "\n")
		sink := &capturingSink{}
		recorder := httptest.NewRecorder()

		newIngestHandler(sink).ServeHTTP(
			recorder,
			httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body)),
		)

		require.Equal(t, http.StatusOK, recorder.Code)
		var response IngestResponseDTO
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, 1, response.Accepted)
		assert.Equal(t, 1, response.Rejected)
	})
}

func TestLegacyBatchHandler(t *testing.T) {
	t.Run("Expands legacy records into canonical events", func(t *testing.T) {
		body := `[{"tenant_id":"tenant-1","trace_id":"trace-1","span_id":"span-1",` +
			`"timestamp":"2025-03-14T12:00:00Z","model":"gpt-4o","query":"q","response":"r"}]`
		logger := zap.NewNop()
		sink := &capturingSink{}
		eventTranslator := translator.NewTranslator(logger)
		detectionEngine := engine.NewDetectionEngine(sink, nil, logger)
		handler := LegacyBatchHandler(context.Background(), eventTranslator, sink, detectionEngine, logger)
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(
			recorder,
			httptest.NewRequest(http.MethodPost, "/v1/legacy", strings.NewReader(body)),
		)

		require.Equal(t, http.StatusOK, recorder.Code)
		var response IngestResponseDTO
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, 2, response.Accepted)
		require.Len(t, sink.written, 2)
		assert.Equal(t, eventmodel.LLMCall, sink.written[0].EventType)
		assert.Equal(t, eventmodel.Output, sink.written[1].EventType)
	})
}
