package translator

import (
	"errors"
	"testing"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func validWireEvent() WireEvent {
	return WireEvent{
		TenantID:  "tenant-1",
		ProjectID: "project-1",
		TraceID:   "trace-1",
		SpanID:    "span-1",
		Timestamp: "2025-03-14T12:00:00.000Z",
		EventType: "llm_call",
	}
}

func TestTranslator_TranslateWire(t *testing.T) {
	translator := NewTranslator(zap.NewNop())

	t.Run("Translates a valid record", func(t *testing.T) {
		event, err := translator.TranslateWire(validWireEvent())
		require.NoError(t, err)
		assert.Equal(t, "tenant-1", event.TenantID)
		assert.Equal(t, model.LLMCall, event.EventType)
		assert.Equal(t, 2025, event.Timestamp.Year())
	})

	t.Run("Rejects a record with a missing identity field", func(t *testing.T) {
		for _, field := range []string{"tenant_id", "trace_id", "span_id"} {
			record := validWireEvent()
			switch field {
			case "tenant_id":
				record.TenantID = ""
			case "trace_id":
				record.TraceID = ""
			case "span_id":
				record.SpanID = ""
			}
			_, err := translator.TranslateWire(record)
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, field, validationErr.Field)
		}
	})

	t.Run("Rejects an unknown event type", func(t *testing.T) {
		record := validWireEvent()
		record.EventType = "telemetry_blob"
		_, err := translator.TranslateWire(record)
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "event_type", validationErr.Field)
	})

	t.Run("Rejects an unparseable timestamp", func(t *testing.T) {
		record := validWireEvent()
		record.Timestamp = "yesterday"
		_, err := translator.TranslateWire(record)
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "timestamp", validationErr.Field)
	})

	t.Run("Accepts RFC3339 without fractional seconds", func(t *testing.T) {
		record := validWireEvent()
		record.Timestamp = "2025-03-14T12:00:00Z"
		_, err := translator.TranslateWire(record)
		assert.NoError(t, err)
	})
}

func TestTranslator_TranslateLegacy(t *testing.T) {
	translator := NewTranslator(zap.NewNop())

	base := LegacyTraceRecord{
		TenantID:  "tenant-1",
		TraceID:   "trace-1",
		SpanID:    "span-1",
		Timestamp: "2025-03-14T12:00:00.000Z",
	}

	t.Run("A record with model and query becomes an llm_call", func(t *testing.T) {
		record := base
		record.Model = "gpt-4o"
		record.Query = "what is the refund policy"
		record.TotalTokens = 900

		events, err := translator.TranslateLegacy(record)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, model.LLMCall, events[0].EventType)

		attrs, err := model.DecodeAttributes(events[0])
		require.NoError(t, err)
		require.NotNil(t, attrs.LLMCall)
		assert.Equal(t, "gpt-4o", attrs.LLMCall.Model)
		assert.Equal(t, int64(900), attrs.LLMCall.TotalTokens)
	})

	t.Run("A record with a response additionally becomes an output", func(t *testing.T) {
		record := base
		record.Model = "gpt-4o"
		record.Query = "what is the refund policy"
		record.Response = "refunds take 30 days"

		events, err := translator.TranslateLegacy(record)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, model.LLMCall, events[0].EventType)
		assert.Equal(t, model.Output, events[1].EventType)
	})

	t.Run("A record with neither becomes a minimal trace_start", func(t *testing.T) {
		events, err := translator.TranslateLegacy(base)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, model.TraceStart, events[0].EventType)
	})

	t.Run("Identity validation applies to legacy records too", func(t *testing.T) {
		record := base
		record.TenantID = ""
		_, err := translator.TranslateLegacy(record)
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "tenant_id", validationErr.Field)
	})
}
