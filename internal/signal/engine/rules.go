package engine

import (
	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/signal/model"
)

// Layer-2 thresholds: stateless, deterministic rules applied per event.
const (
	highLatencyThresholdMs   = 5000.0
	mediumLatencyThresholdMs = 2000.0
	tokenSpikeThreshold      = 100_000
	costSpikeThresholdUSD    = 10.0
	toolLatencyThresholdMs   = 5000.0
)

type finding struct {
	name     string
	sigType  model.SignalType
	value    float64
	severity model.Severity
	metadata map[string]string
}

// evaluate runs the deterministic rule table against one event. Latency
// tiers are mutually exclusive: an event crossing the high threshold emits
// high_latency only, never also medium_latency.
func evaluate(event eventmodel.CanonicalEvent, attrs eventmodel.Attributes) []finding {
	var findings []finding

	switch event.EventType {
	case eventmodel.LLMCall:
		if llm := attrs.LLMCall; llm != nil {
			if llm.LatencyMs > highLatencyThresholdMs {
				findings = append(findings, finding{
					name:     "high_latency",
					sigType:  model.TypeThreshold,
					value:    llm.LatencyMs,
					severity: model.SeverityHigh,
				})
			} else if llm.LatencyMs > mediumLatencyThresholdMs {
				findings = append(findings, finding{
					name:     "medium_latency",
					sigType:  model.TypeThreshold,
					value:    llm.LatencyMs,
					severity: model.SeverityMedium,
				})
			}
			if llm.TotalTokens > tokenSpikeThreshold {
				findings = append(findings, finding{
					name:     "token_spike",
					sigType:  model.TypeSpike,
					value:    float64(llm.TotalTokens),
					severity: model.SeverityHigh,
				})
			}
			if llm.CostUSD != nil && *llm.CostUSD > costSpikeThresholdUSD {
				findings = append(findings, finding{
					name:     "cost_spike",
					sigType:  model.TypeSpike,
					value:    *llm.CostUSD,
					severity: model.SeverityHigh,
				})
			}
		}
	case eventmodel.ToolCall:
		if tool := attrs.ToolCall; tool != nil {
			switch tool.Status {
			case "error":
				findings = append(findings, finding{
					name:     "tool_error",
					sigType:  model.TypeError,
					value:    1,
					severity: model.SeverityHigh,
					metadata: map[string]string{"tool": tool.Name},
				})
			case "timeout":
				findings = append(findings, finding{
					name:     "tool_timeout",
					sigType:  model.TypeError,
					value:    1,
					severity: model.SeverityHigh,
					metadata: map[string]string{"tool": tool.Name},
				})
			}
			if tool.LatencyMs > toolLatencyThresholdMs {
				findings = append(findings, finding{
					name:     "tool_latency",
					sigType:  model.TypeThreshold,
					value:    tool.LatencyMs,
					severity: model.SeverityMedium,
					metadata: map[string]string{"tool": tool.Name},
				})
			}
		}
	case eventmodel.Error:
		// Stored signals are themselves error-typed events; re-scanning them
		// would loop forever.
		if attrs.Signal == nil {
			metadata := map[string]string{}
			if attrs.Error != nil {
				metadata["error_type"] = attrs.Error.Type
				metadata["message"] = attrs.Error.Message
			}
			findings = append(findings, finding{
				name:     "error_event",
				sigType:  model.TypeError,
				value:    1,
				severity: model.SeverityHigh,
				metadata: metadata,
			})
		}
	}

	if secret := scrubForSecrets(event.AttributesJSON); secret != "" {
		findings = append(findings, finding{
			name:     "contains_secrets",
			sigType:  model.TypeMismatch,
			value:    1,
			severity: model.SeverityHigh,
			metadata: map[string]string{"pattern": secret},
		})
	}
	return findings
}
