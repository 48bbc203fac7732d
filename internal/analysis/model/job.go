package model

import "time"

type Trigger string

const (
	TriggerHighSeveritySignal Trigger = "high_severity_signal"
	TriggerExplicitRequest    Trigger = "explicit_request"
	TriggerSampled            Trigger = "sampled"
	TriggerDatasetPromotion   Trigger = "dataset_promotion"
)

type Layer string

const (
	// Layer3 runs the cheap semantic checks: embeddings, clustering, drift,
	// duplicates.
	Layer3 Layer = "layer3"
	// Layer4 runs the expensive judge-model checks: faithfulness, context
	// relevance, quality, hallucination.
	Layer4 Layer = "layer4"
)

// AnalysisJob is a unit of deep-analysis work. The queue broker owns its
// lifecycle; only its outputs (signals) are durable. Delivery is
// at-least-once: the job id avoids accidental duplicate enqueue within the
// same millisecond-trace pairing but is not relied on for exactly-once
// semantics.
type AnalysisJob struct {
	ID             string    `json:"id"`
	TraceID        string    `json:"trace_id"`
	TenantID       string    `json:"tenant_id"`
	ProjectID      string    `json:"project_id"`
	Environment    string    `json:"environment,omitempty"`
	SpanID         string    `json:"span_id,omitempty"`
	ParentSpanID   string    `json:"parent_span_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	Trigger        Trigger   `json:"trigger"`
	Layers         []Layer   `json:"layers"`
	Severity       string    `json:"severity,omitempty"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
	Attempts       int       `json:"attempts"`

	// Denormalized trace fields the judge needs, so workers never touch the
	// stores.
	Query       string   `json:"query,omitempty"`
	Response    string   `json:"response,omitempty"`
	Model       string   `json:"model,omitempty"`
	TotalTokens int64    `json:"total_tokens,omitempty"`
	LatencyMs   float64  `json:"latency_ms,omitempty"`
	CostUSD     *float64 `json:"cost_usd,omitempty"`
}

// HighPriority reports whether the job belongs in the highest priority tier.
func (j *AnalysisJob) HighPriority() bool {
	return j.Trigger == TriggerHighSeveritySignal
}
