package model

import (
	"time"

	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
)

// TraceDetail is the full read-path response for one trace.
type TraceDetail struct {
	Summary             TraceSummary        `json:"summary"`
	Spans               []*Span             `json:"spans"`
	AllSpans            []*Span             `json:"allSpans"`
	SpansByID           map[string]*Span    `json:"spansById"`
	Signals             []SignalRecord      `json:"signals"`
	CostBreakdown       CostBreakdown       `json:"costBreakdown"`
	PerformanceAnalysis PerformanceAnalysis `json:"performanceAnalysis"`
	TokenEfficiency     TokenEfficiency     `json:"tokenEfficiency"`
}

type TraceSummary struct {
	TraceID      string    `json:"trace_id"`
	TenantID     string    `json:"tenant_id"`
	ProjectID    string    `json:"project_id"`
	Environment  string    `json:"environment"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	DurationMs   float64   `json:"duration_ms"`
	SpanCount    int       `json:"span_count"`
	EventCount   int       `json:"event_count"`
	TotalTokens  int64     `json:"total_tokens"`
	TotalCostUSD float64   `json:"total_cost_usd"`
	HasErrors    bool      `json:"has_errors"`
	Models       []string  `json:"models,omitempty"`
	ParseErrors  int       `json:"parse_errors,omitempty"`
}

// SignalRecord surfaces a stored signal alongside the trace it was detected
// on.
type SignalRecord struct {
	SpanID    string                      `json:"span_id"`
	Timestamp time.Time                   `json:"timestamp"`
	Signal    eventmodel.SignalAttributes `json:"signal"`
}

type CostBreakdown struct {
	TotalCostUSD float64            `json:"total_cost_usd"`
	ByType       map[string]float64 `json:"by_type"`
	TopSpans     []SpanCost         `json:"top_spans"`
}

type SpanCost struct {
	SpanID  string  `json:"span_id"`
	Name    string  `json:"name"`
	CostUSD float64 `json:"cost_usd"`
}

type PerformanceAnalysis struct {
	BottleneckSpanID string               `json:"bottleneck_span_id,omitempty"`
	BottleneckName   string               `json:"bottleneck_name,omitempty"`
	BottleneckType   eventmodel.EventType `json:"bottleneck_type,omitempty"`
	DurationMs       float64              `json:"duration_ms"`
	PercentOfTotal   float64              `json:"percent_of_total"`
	Recommendation   string               `json:"recommendation,omitempty"`
}

type TokenEfficiency struct {
	TotalCharacters int64   `json:"total_characters"`
	TotalTokens     int64   `json:"total_tokens"`
	CharsPerToken   float64 `json:"chars_per_token"`
	BenchmarkLow    float64 `json:"benchmark_low"`
	BenchmarkHigh   float64 `json:"benchmark_high"`
	Rating          string  `json:"rating"`
}
