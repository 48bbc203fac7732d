package translator

import (
	"fmt"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"go.uber.org/zap"
)

// ValidationError marks a single ingested record as rejected. It never aborts
// the rest of the batch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: field %s %s", e.Field, e.Reason)
}

// LegacyTraceRecord is the flattened, pre-canonical ingestion shape older
// SDKs emit: one row per model invocation with optional response data.
type LegacyTraceRecord struct {
	TenantID       string   `json:"tenant_id"`
	ProjectID      string   `json:"project_id"`
	Environment    string   `json:"environment"`
	TraceID        string   `json:"trace_id"`
	SpanID         string   `json:"span_id"`
	ParentSpanID   string   `json:"parent_span_id"`
	Timestamp      string   `json:"timestamp"`
	ConversationID string   `json:"conversation_id"`
	SessionID      string   `json:"session_id"`
	UserID         string   `json:"user_id"`
	AgentName      string   `json:"agent_name"`
	Model          string   `json:"model"`
	Provider       string   `json:"provider"`
	Query          string   `json:"query"`
	Response       string   `json:"response"`
	InputTokens    int64    `json:"input_tokens"`
	OutputTokens   int64    `json:"output_tokens"`
	TotalTokens    int64    `json:"total_tokens"`
	LatencyMs      float64  `json:"latency_ms"`
	CostUSD        *float64 `json:"cost_usd"`
}

// WireEvent is the canonical batch wire shape: one newline-delimited record
// per event, attributes JSON-encoded as a string in transit.
type WireEvent struct {
	TenantID       string `json:"tenant_id"`
	ProjectID      string `json:"project_id"`
	Environment    string `json:"environment"`
	TraceID        string `json:"trace_id"`
	SpanID         string `json:"span_id"`
	ParentSpanID   string `json:"parent_span_id"`
	Timestamp      string `json:"timestamp"`
	EventType      string `json:"event_type"`
	ConversationID string `json:"conversation_id"`
	SessionID      string `json:"session_id"`
	UserID         string `json:"user_id"`
	AgentName      string `json:"agent_name"`
	Version        string `json:"version"`
	Route          string `json:"route"`
	Attributes     string `json:"attributes"`
}

var knownEventTypes = map[model.EventType]bool{
	model.TraceStart: true,
	model.TraceEnd:   true,
	model.LLMCall:    true,
	model.ToolCall:   true,
	model.Retrieval:  true,
	model.Output:     true,
	model.Error:      true,
	model.Feedback:   true,
}

type Translator struct {
	logger *zap.Logger
}

func NewTranslator(logger *zap.Logger) *Translator {
	return &Translator{logger: logger}
}

// TranslateWire validates one canonical wire record and converts it into a
// canonical event. Only identity fields are hard requirements.
func (t *Translator) TranslateWire(record WireEvent) (model.CanonicalEvent, error) {
	timestamp, err := validateIdentity(
		record.TenantID, record.TraceID, record.SpanID, record.Timestamp,
	)
	if err != nil {
		return model.CanonicalEvent{}, err
	}
	eventType := model.EventType(record.EventType)
	if !knownEventTypes[eventType] {
		return model.CanonicalEvent{}, &ValidationError{Field: "event_type", Reason: "is not a known event type"}
	}
	return model.CanonicalEvent{
		TenantID:       record.TenantID,
		ProjectID:      record.ProjectID,
		Environment:    record.Environment,
		TraceID:        record.TraceID,
		SpanID:         record.SpanID,
		ParentSpanID:   record.ParentSpanID,
		Timestamp:      timestamp,
		EventType:      eventType,
		ConversationID: record.ConversationID,
		SessionID:      record.SessionID,
		UserID:         record.UserID,
		AgentName:      record.AgentName,
		Version:        record.Version,
		Route:          record.Route,
		AttributesJSON: record.Attributes,
	}, nil
}

// TranslateLegacy converts one legacy trace record into 1..N canonical
// events. A record with model and query becomes an llm_call, a record with a
// response additionally becomes an output, and a record with neither becomes
// a minimal trace_start so no trace is silently dropped. Missing optional
// fields never fail translation.
func (t *Translator) TranslateLegacy(record LegacyTraceRecord) ([]model.CanonicalEvent, error) {
	timestamp, err := validateIdentity(
		record.TenantID, record.TraceID, record.SpanID, record.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	base := model.CanonicalEvent{
		TenantID:       record.TenantID,
		ProjectID:      record.ProjectID,
		Environment:    record.Environment,
		TraceID:        record.TraceID,
		SpanID:         record.SpanID,
		ParentSpanID:   record.ParentSpanID,
		Timestamp:      timestamp,
		ConversationID: record.ConversationID,
		SessionID:      record.SessionID,
		UserID:         record.UserID,
		AgentName:      record.AgentName,
	}

	var events []model.CanonicalEvent
	if record.Model != "" && record.Query != "" {
		llmEvent := base
		llmEvent.EventType = model.LLMCall
		llmEvent.AttributesJSON = t.encodeOrEmpty(model.Attributes{
			LLMCall: &model.LLMCallAttributes{
				Model:        record.Model,
				Provider:     record.Provider,
				Query:        record.Query,
				Response:     record.Response,
				InputTokens:  record.InputTokens,
				OutputTokens: record.OutputTokens,
				TotalTokens:  record.TotalTokens,
				LatencyMs:    record.LatencyMs,
				CostUSD:      record.CostUSD,
			},
		})
		events = append(events, llmEvent)
	}
	if record.Response != "" {
		outputEvent := base
		outputEvent.EventType = model.Output
		outputEvent.AttributesJSON = t.encodeOrEmpty(model.Attributes{
			Output: &model.OutputAttributes{Response: record.Response},
		})
		events = append(events, outputEvent)
	}
	if len(events) == 0 {
		startEvent := base
		startEvent.EventType = model.TraceStart
		events = append(events, startEvent)
	}
	return events, nil
}

func (t *Translator) encodeOrEmpty(attrs model.Attributes) string {
	encoded, err := model.EncodeAttributes(attrs)
	if err != nil {
		t.logger.Error("Failed to encode translated attributes", zap.Error(err))
		return ""
	}
	return encoded
}

func validateIdentity(tenantID, traceID, spanID, timestamp string) (time.Time, error) {
	if tenantID == "" {
		return time.Time{}, &ValidationError{Field: "tenant_id", Reason: "is required"}
	}
	if traceID == "" {
		return time.Time{}, &ValidationError{Field: "trace_id", Reason: "is required"}
	}
	if spanID == "" {
		return time.Time{}, &ValidationError{Field: "span_id", Reason: "is required"}
	}
	parsed, err := parseTimestamp(timestamp)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "timestamp", Reason: "is not a parseable instant"}
	}
	return parsed, nil
}

func parseTimestamp(timestamp string) (time.Time, error) {
	if timestamp == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z0700"} {
		if parsed, err := time.Parse(layout, timestamp); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", timestamp)
}
