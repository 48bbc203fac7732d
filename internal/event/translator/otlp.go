package translator

import (
	"encoding/hex"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	v1 "go.opentelemetry.io/proto/otlp/trace/v1"
)

const (
	tenantAttributeKey  = "observa.tenant_id"
	projectAttributeKey = "observa.project_id"
	envAttributeKey     = "deployment.environment"
	modelAttributeKey   = "gen_ai.request.model"
	toolAttributeKey    = "tool.name"
)

// TranslateResourceSpans maps one OTLP resource-span block onto canonical
// events. OTel instrumented applications are an accepted ingestion shape;
// tenant and project identity travel as resource attributes. Spans without a
// tenant attribute are dropped and counted, never guessed.
func (t *Translator) TranslateResourceSpans(resourceSpans *v1.ResourceSpans) []model.CanonicalEvent {
	resourceAttrs := make(map[string]string)
	if resourceSpans.Resource != nil {
		for _, attr := range resourceSpans.Resource.Attributes {
			resourceAttrs[attr.Key] = attr.Value.GetStringValue()
		}
	}
	tenantID := resourceAttrs[tenantAttributeKey]
	if tenantID == "" {
		t.logger.Warn("Dropping resource spans without a tenant attribute")
		return nil
	}

	var events []model.CanonicalEvent
	for _, scopeSpans := range resourceSpans.ScopeSpans {
		for _, span := range scopeSpans.Spans {
			events = append(events, t.translateOTLPSpan(span, tenantID, resourceAttrs))
		}
	}
	return events
}

func (t *Translator) translateOTLPSpan(
	span *v1.Span,
	tenantID string,
	resourceAttrs map[string]string,
) model.CanonicalEvent {
	spanAttrs := make(map[string]string)
	for _, attr := range span.Attributes {
		spanAttrs[attr.Key] = attr.Value.GetStringValue()
	}

	startTime := time.Unix(0, int64(span.StartTimeUnixNano)).UTC()
	endTime := time.Unix(0, int64(span.EndTimeUnixNano)).UTC()
	latencyMs := float64(endTime.Sub(startTime)) / float64(time.Millisecond)

	event := model.CanonicalEvent{
		TenantID:     tenantID,
		ProjectID:    resourceAttrs[projectAttributeKey],
		Environment:  resourceAttrs[envAttributeKey],
		TraceID:      hex.EncodeToString(span.TraceId),
		SpanID:       hex.EncodeToString(span.SpanId),
		ParentSpanID: hex.EncodeToString(span.ParentSpanId),
		Timestamp:    startTime,
		AgentName:    resourceAttrs["service.name"],
	}

	switch {
	case spanAttrs[modelAttributeKey] != "":
		event.EventType = model.LLMCall
		event.AttributesJSON = t.encodeOrEmpty(model.Attributes{
			LLMCall: &model.LLMCallAttributes{
				Model:     spanAttrs[modelAttributeKey],
				Provider:  spanAttrs["gen_ai.system"],
				Query:     spanAttrs["gen_ai.prompt"],
				Response:  spanAttrs["gen_ai.completion"],
				LatencyMs: latencyMs,
			},
		})
	case spanAttrs[toolAttributeKey] != "":
		event.EventType = model.ToolCall
		event.AttributesJSON = t.encodeOrEmpty(model.Attributes{
			ToolCall: &model.ToolCallAttributes{
				Name:      spanAttrs[toolAttributeKey],
				Status:    otlpStatus(span),
				LatencyMs: latencyMs,
			},
		})
	case span.Status != nil && span.Status.Code == v1.Status_STATUS_CODE_ERROR:
		event.EventType = model.Error
		event.AttributesJSON = t.encodeOrEmpty(model.Attributes{
			Error: &model.ErrorAttributes{
				Type:    span.Name,
				Message: span.Status.Message,
			},
		})
	default:
		event.EventType = model.TraceStart
	}
	return event
}

func otlpStatus(span *v1.Span) string {
	if span.Status != nil && span.Status.Code == v1.Status_STATUS_CODE_ERROR {
		return "error"
	}
	return "ok"
}
