package model

import (
	"fmt"
	"time"
)

type EventType string

const (
	TraceStart EventType = "trace_start"
	TraceEnd   EventType = "trace_end"
	LLMCall    EventType = "llm_call"
	ToolCall   EventType = "tool_call"
	Retrieval  EventType = "retrieval"
	Output     EventType = "output"
	Error      EventType = "error"
	Feedback   EventType = "feedback"
)

// RichObservationTypes are the event types that describe a concrete operation
// rather than trace lifecycle markers. A root-level event of one of these
// types is promoted into its own span during reconstruction.
var RichObservationTypes = map[EventType]bool{
	LLMCall:   true,
	ToolCall:  true,
	Retrieval: true,
	Output:    true,
	Feedback:  true,
}

// CanonicalEvent is the single persisted record type. Events are immutable
// and append-only; all derived structures (spans, trees, insights) are
// recomputed from them at read time.
type CanonicalEvent struct {
	TenantID       string    `json:"tenant_id"`
	ProjectID      string    `json:"project_id"`
	Environment    string    `json:"environment"`
	TraceID        string    `json:"trace_id"`
	SpanID         string    `json:"span_id"`
	ParentSpanID   string    `json:"parent_span_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	EventType      EventType `json:"event_type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	AgentName      string    `json:"agent_name,omitempty"`
	Version        string    `json:"version,omitempty"`
	Route          string    `json:"route,omitempty"`
	// AttributesJSON holds the type-tagged payload as it travels on the wire
	// and in storage. Decode it with DecodeAttributes.
	AttributesJSON string `json:"attributes,omitempty"`
}

// NaturalKey returns the dedup key for an event. Two events sharing this key
// are the same observation and must collapse to one.
func (e *CanonicalEvent) NaturalKey() string {
	return fmt.Sprintf(
		"%s:%s:%s:%s",
		e.TraceID,
		e.SpanID,
		e.EventType,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
}

// IsRoot reports whether the event is a trace-root observation.
func (e *CanonicalEvent) IsRoot() bool {
	return e.ParentSpanID == ""
}
