package model

import (
	"fmt"
	"time"

	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type SignalType string

const (
	TypeThreshold SignalType = "threshold"
	TypeError     SignalType = "error"
	TypeLoop      SignalType = "loop"
	TypeSpike     SignalType = "spike"
	TypeMismatch  SignalType = "mismatch"
)

// Signal is a detected anomaly or finding. Signals are re-encoded as
// canonical events so they ride the same storage and query path as trace
// data.
type Signal struct {
	TenantID       string
	ProjectID      string
	Environment    string
	TraceID        string
	SpanID         string
	ParentSpanID   string
	ConversationID string
	SessionID      string
	UserID         string
	Name           string
	Type           SignalType
	Value          float64
	Severity       Severity
	Metadata       map[string]string
	Timestamp      time.Time
}

// ToCanonicalEvent re-encodes the signal as an error-typed canonical event
// carrying a signal sub-object. The event gets its own span identity, derived
// from the source span id and the signal name, parented under the source
// span: multiple findings on one event must map to distinct natural keys, and
// a signal must never share a key with the source event it annotates.
// Correlation keys are inherited from the source event so the signal is never
// misread downstream as a second trace root.
func (s Signal) ToCanonicalEvent() (eventmodel.CanonicalEvent, error) {
	attributes, err := eventmodel.EncodeAttributes(eventmodel.Attributes{
		Signal: &eventmodel.SignalAttributes{
			Name:     s.Name,
			Type:     string(s.Type),
			Value:    s.Value,
			Severity: string(s.Severity),
			Metadata: s.Metadata,
		},
	})
	if err != nil {
		return eventmodel.CanonicalEvent{}, fmt.Errorf("failed to encode signal attributes: %w", err)
	}
	return eventmodel.CanonicalEvent{
		TenantID:       s.TenantID,
		ProjectID:      s.ProjectID,
		Environment:    s.Environment,
		TraceID:        s.TraceID,
		SpanID:         fmt.Sprintf("%s-signal-%s", s.SpanID, s.Name),
		ParentSpanID:   s.SpanID,
		Timestamp:      s.Timestamp,
		EventType:      eventmodel.Error,
		ConversationID: s.ConversationID,
		SessionID:      s.SessionID,
		UserID:         s.UserID,
		AttributesJSON: attributes,
	}, nil
}
