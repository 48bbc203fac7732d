package model

import (
	"time"

	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
)

// Span is a derived tree node representing one logical operation within a
// trace. Spans are never persisted: they are recomputed from the canonical
// event set on every read.
type Span struct {
	ID             string               `json:"id"`
	OriginalID     string               `json:"original_id,omitempty"`
	ParentID       string               `json:"parent_id,omitempty"`
	Name           string               `json:"name"`
	Type           eventmodel.EventType `json:"type"`
	StartTime      time.Time            `json:"start_time"`
	EndTime        time.Time            `json:"end_time"`
	DurationMs     float64              `json:"duration_ms"`
	RelativeTimeMs float64              `json:"relative_time_ms"`
	Events         []SpanEvent          `json:"events"`
	Children       []*Span              `json:"children"`

	// Flattened detail blocks, one per observation type found in the span,
	// for O(1) field access by callers.
	LLMCall   *eventmodel.LLMCallAttributes   `json:"llm_call,omitempty"`
	ToolCall  *eventmodel.ToolCallAttributes  `json:"tool_call,omitempty"`
	Retrieval *eventmodel.RetrievalAttributes `json:"retrieval,omitempty"`
	Output    *eventmodel.OutputAttributes    `json:"output,omitempty"`
	Error     *eventmodel.ErrorAttributes     `json:"error,omitempty"`
	Feedback  *eventmodel.FeedbackAttributes  `json:"feedback,omitempty"`
}

// SpanEvent is one observation inside a span, ordered by timestamp.
type SpanEvent struct {
	EventType      eventmodel.EventType `json:"event_type"`
	Timestamp      time.Time            `json:"timestamp"`
	RelativeTimeMs float64              `json:"relative_time_ms"`
	Attributes     string               `json:"attributes,omitempty"`
}

// EffectiveEndTime returns the later of the span's recorded end time and its
// start time extended by the explicit duration. Latency reported on an
// observation can exceed the event timestamp window.
func (s *Span) EffectiveEndTime() time.Time {
	byDuration := s.StartTime.Add(time.Duration(s.DurationMs * float64(time.Millisecond)))
	if byDuration.After(s.EndTime) {
		return byDuration
	}
	return s.EndTime
}
