package reconstructor

import (
	"errors"
	"testing"
	"time"

	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func makeEvent(
	spanID string,
	parentSpanID string,
	eventType eventmodel.EventType,
	offset time.Duration,
	attributes string,
) eventmodel.CanonicalEvent {
	return eventmodel.CanonicalEvent{
		TenantID:       "tenant-1",
		ProjectID:      "project-1",
		TraceID:        "trace-1",
		SpanID:         spanID,
		ParentSpanID:   parentSpanID,
		Timestamp:      baseTime.Add(offset),
		EventType:      eventType,
		AttributesJSON: attributes,
	}
}

func TestReconstructorService_Reconstruct(t *testing.T) {
	rs := NewReconstructorService(zap.NewNop())

	t.Run("Returns ErrTraceNotFound when no events match the trace id", func(t *testing.T) {
		events := []eventmodel.CanonicalEvent{
			makeEvent("span-a", "", eventmodel.TraceStart, 0, ""),
		}
		_, err := rs.Reconstruct(events, "some-other-trace")
		assert.True(t, errors.Is(err, ErrTraceNotFound))
	})

	t.Run("Filters out events belonging to a different trace", func(t *testing.T) {
		leaked := makeEvent("span-x", "", eventmodel.TraceStart, 0, "")
		leaked.TraceID = "trace-2"
		events := []eventmodel.CanonicalEvent{
			makeEvent("span-a", "", eventmodel.TraceStart, 0, ""),
			leaked,
		}
		detail, err := rs.Reconstruct(events, "trace-1")
		require.NoError(t, err)
		assert.Equal(t, 1, detail.Summary.EventCount)
	})

	t.Run("Collapses events sharing the natural key into one observation", func(t *testing.T) {
		event := makeEvent("span-a", "", eventmodel.TraceStart, 0, "")
		detail, err := rs.Reconstruct(
			[]eventmodel.CanonicalEvent{event, event, event},
			"trace-1",
		)
		require.NoError(t, err)
		assert.Equal(t, 1, detail.Summary.EventCount)
		assert.Equal(t, 1, detail.Summary.SpanCount)
	})

	t.Run("Reconstruction is idempotent across replays", func(t *testing.T) {
		events := []eventmodel.CanonicalEvent{
			makeEvent("span-a", "", eventmodel.TraceStart, 0, ""),
			makeEvent("span-b", "span-a", eventmodel.ToolCall, 20*time.Millisecond,
				`{"name":"search","latency_ms":300}`),
		}
		replayed := append(append([]eventmodel.CanonicalEvent{}, events...), events...)

		first, err := rs.Reconstruct(events, "trace-1")
		require.NoError(t, err)
		second, err := rs.Reconstruct(replayed, "trace-1")
		require.NoError(t, err)

		assert.Equal(t, first.Summary.SpanCount, second.Summary.SpanCount)
		assert.Equal(t, first.Summary.EventCount, second.Summary.EventCount)
		assert.Equal(t, first.Summary.DurationMs, second.Summary.DurationMs)
	})

	t.Run("Promotes a root-level llm_call into its own span under the original span", func(t *testing.T) {
		events := []eventmodel.CanonicalEvent{
			makeEvent("span-a", "", eventmodel.TraceStart, 0, ""),
			makeEvent("span-a", "", eventmodel.LLMCall, 10*time.Millisecond,
				`{"model":"gpt-4o","latency_ms":1200,"total_tokens":900}`),
			makeEvent("span-b", "span-a", eventmodel.ToolCall, 20*time.Millisecond,
				`{"name":"search","latency_ms":300}`),
			makeEvent("span-a", "", eventmodel.TraceEnd, 1500*time.Millisecond, ""),
		}

		detail, err := rs.Reconstruct(events, "trace-1")
		require.NoError(t, err)

		require.Len(t, detail.Spans, 1)
		root := detail.Spans[0]
		assert.Equal(t, "span-a", root.ID)
		assert.Equal(t, "Trace", root.Name)
		require.Len(t, root.Children, 2)
		assert.Equal(t, 3, detail.Summary.SpanCount)

		promoted := detail.SpansByID["span-a-llm_call"]
		require.NotNil(t, promoted)
		assert.Equal(t, eventmodel.LLMCall, promoted.Type)
		assert.Equal(t, "span-a", promoted.ParentID)
		assert.Equal(t, "span-a", promoted.OriginalID)
		assert.Equal(t, "gpt-4o", promoted.Name)

		toolSpan := detail.SpansByID["span-b"]
		require.NotNil(t, toolSpan)
		assert.Equal(t, "search", toolSpan.Name)
		assert.Equal(t, 300.0, toolSpan.DurationMs)
	})

	t.Run("Prefers explicit latency over the wall-clock window", func(t *testing.T) {
		events := []eventmodel.CanonicalEvent{
			makeEvent("span-a", "", eventmodel.TraceStart, 0, ""),
			makeEvent("span-a", "", eventmodel.LLMCall, 10*time.Millisecond,
				`{"model":"gpt-4o","latency_ms":1200}`),
		}
		detail, err := rs.Reconstruct(events, "trace-1")
		require.NoError(t, err)

		promoted := detail.SpansByID["span-a-llm_call"]
		require.NotNil(t, promoted)
		assert.Equal(t, 1200.0, promoted.DurationMs)
	})

	t.Run("Root window covers a child's reported latency beyond its last event", func(t *testing.T) {
		events := []eventmodel.CanonicalEvent{
			makeEvent("span-a", "", eventmodel.TraceStart, 0, ""),
			makeEvent("span-a", "", eventmodel.LLMCall, 10*time.Millisecond,
				`{"model":"gpt-4o","latency_ms":5000}`),
		}
		detail, err := rs.Reconstruct(events, "trace-1")
		require.NoError(t, err)

		root := detail.Spans[0]
		assert.GreaterOrEqual(t, root.DurationMs, 5000.0)
	})

	t.Run("Demotes a span with a missing parent to root instead of dropping it", func(t *testing.T) {
		events := []eventmodel.CanonicalEvent{
			makeEvent("span-a", "", eventmodel.TraceStart, 0, ""),
			makeEvent("span-orphan", "never-seen", eventmodel.ToolCall, 5*time.Millisecond,
				`{"name":"lookup","latency_ms":50}`),
		}
		detail, err := rs.Reconstruct(events, "trace-1")
		require.NoError(t, err)

		require.Len(t, detail.Spans, 1)
		assert.Equal(t, 3, detail.Summary.SpanCount)
		assert.NotNil(t, detail.SpansByID["span-orphan"])
	})

	t.Run("Gathers multiple top-level spans under one synthesized root", func(t *testing.T) {
		events := []eventmodel.CanonicalEvent{
			makeEvent("span-a", "", eventmodel.TraceStart, 0, ""),
			makeEvent("span-b", "", eventmodel.TraceStart, 10*time.Millisecond, ""),
		}
		detail, err := rs.Reconstruct(events, "trace-1")
		require.NoError(t, err)

		require.Len(t, detail.Spans, 1)
		root := detail.Spans[0]
		assert.Equal(t, "trace-1", root.ID)
		assert.Equal(t, "Trace", root.Name)
		assert.Len(t, root.Children, 2)
	})

	t.Run("A parented span named after the trace never becomes the gathered root", func(t *testing.T) {
		events := []eventmodel.CanonicalEvent{
			makeEvent("span-a", "", eventmodel.TraceStart, 0, ""),
			makeEvent("span-b", "", eventmodel.TraceStart, 10*time.Millisecond, ""),
			makeEvent("trace-1", "span-a", eventmodel.ToolCall, 20*time.Millisecond,
				`{"name":"search","latency_ms":300}`),
		}
		detail, err := rs.Reconstruct(events, "trace-1")
		require.NoError(t, err)

		require.Len(t, detail.Spans, 1)
		root := detail.Spans[0]
		assert.Equal(t, "trace-1", root.ID)
		assert.Equal(t, "Trace", root.Name)
		assert.Empty(t, root.ParentID)
		require.Len(t, root.Children, 2)
		assert.Equal(t, 4, detail.Summary.SpanCount)

		spanA := detail.SpansByID["span-a"]
		require.NotNil(t, spanA)
		require.Len(t, spanA.Children, 1)
		assert.Equal(t, "search", spanA.Children[0].Name)
	})

	t.Run("Degrades a malformed attributes payload without aborting", func(t *testing.T) {
		events := []eventmodel.CanonicalEvent{
			makeEvent("span-a", "", eventmodel.TraceStart, 0, ""),
			makeEvent("span-b", "span-a", eventmodel.LLMCall, 10*time.Millisecond, `{not json`),
		}
		detail, err := rs.Reconstruct(events, "trace-1")
		require.NoError(t, err)

		assert.Equal(t, 1, detail.Summary.ParseErrors)
		assert.Equal(t, 2, detail.Summary.EventCount)
		require.NotNil(t, detail.SpansByID["span-b"])
		assert.Nil(t, detail.SpansByID["span-b"].LLMCall)
	})

	t.Run("Summarizes tokens, cost, models and errors across spans", func(t *testing.T) {
		events := []eventmodel.CanonicalEvent{
			makeEvent("span-a", "", eventmodel.TraceStart, 0, ""),
			makeEvent("span-b", "span-a", eventmodel.LLMCall, 10*time.Millisecond,
				`{"model":"gpt-4o","latency_ms":1200,"total_tokens":900,"cost_usd":0.5}`),
			makeEvent("span-c", "span-a", eventmodel.Error, 20*time.Millisecond,
				`{"type":"Timeout","message":"tool timed out"}`),
		}
		detail, err := rs.Reconstruct(events, "trace-1")
		require.NoError(t, err)

		assert.Equal(t, int64(900), detail.Summary.TotalTokens)
		assert.Equal(t, 0.5, detail.Summary.TotalCostUSD)
		assert.Equal(t, []string{"gpt-4o"}, detail.Summary.Models)
		assert.True(t, detail.Summary.HasErrors)
	})

	t.Run("Surfaces stored signal events in the signals list", func(t *testing.T) {
		events := []eventmodel.CanonicalEvent{
			makeEvent("span-a", "", eventmodel.TraceStart, 0, ""),
			makeEvent("span-a", "", eventmodel.Error, 30*time.Millisecond,
				`{"signal":{"name":"high_latency","type":"threshold","value":6000,"severity":"high"}}`),
		}
		detail, err := rs.Reconstruct(events, "trace-1")
		require.NoError(t, err)

		require.Len(t, detail.Signals, 1)
		assert.Equal(t, "high_latency", detail.Signals[0].Signal.Name)
		assert.Equal(t, "high", detail.Signals[0].Signal.Severity)
	})

	t.Run("Out-of-order arrival yields the same tree as ordered arrival", func(t *testing.T) {
		ordered := []eventmodel.CanonicalEvent{
			makeEvent("span-a", "", eventmodel.TraceStart, 0, ""),
			makeEvent("span-b", "span-a", eventmodel.ToolCall, 20*time.Millisecond,
				`{"name":"search","latency_ms":300}`),
			makeEvent("span-a", "", eventmodel.TraceEnd, 100*time.Millisecond, ""),
		}
		shuffled := []eventmodel.CanonicalEvent{ordered[2], ordered[1], ordered[0]}

		orderedDetail, err := rs.Reconstruct(ordered, "trace-1")
		require.NoError(t, err)
		shuffledDetail, err := rs.Reconstruct(shuffled, "trace-1")
		require.NoError(t, err)

		assert.Equal(t, orderedDetail.Summary.SpanCount, shuffledDetail.Summary.SpanCount)
		assert.Equal(t, orderedDetail.Summary.DurationMs, shuffledDetail.Summary.DurationMs)
		assert.Equal(t, orderedDetail.Spans[0].ID, shuffledDetail.Spans[0].ID)
	})
}
