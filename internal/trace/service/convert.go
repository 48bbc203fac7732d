package service

import (
	"fmt"
	"time"

	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
)

// convertFromDocuments maps analytical-store documents onto canonical
// events. Identity fields are required; everything else degrades to its zero
// value.
func convertFromDocuments(res []map[string]interface{}) ([]eventmodel.CanonicalEvent, error) {
	events := make([]eventmodel.CanonicalEvent, 0, len(res))
	for _, hit := range res {
		event := eventmodel.CanonicalEvent{}

		traceID, ok := hit["trace_id"].(string)
		if !ok {
			return nil, fmt.Errorf("failed to convert trace_id to string %v", hit["trace_id"])
		}
		event.TraceID = traceID

		spanID, ok := hit["span_id"].(string)
		if !ok {
			return nil, fmt.Errorf("failed to convert span_id to string %v", hit["span_id"])
		}
		event.SpanID = spanID

		tenantID, ok := hit["tenant_id"].(string)
		if !ok {
			return nil, fmt.Errorf("failed to convert tenant_id to string %v", hit["tenant_id"])
		}
		event.TenantID = tenantID

		rawTimestamp, ok := hit["timestamp"].(string)
		if !ok {
			return nil, fmt.Errorf("failed to convert timestamp to string %v", hit["timestamp"])
		}
		timestamp, err := time.Parse(time.RFC3339Nano, rawTimestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp to time.Time: %w", err)
		}
		event.Timestamp = timestamp.UTC()

		event.EventType = eventmodel.EventType(softString(hit, "event_type"))
		event.ProjectID = softString(hit, "project_id")
		event.Environment = softString(hit, "environment")
		event.ParentSpanID = softString(hit, "parent_span_id")
		event.ConversationID = softString(hit, "conversation_id")
		event.SessionID = softString(hit, "session_id")
		event.UserID = softString(hit, "user_id")
		event.AgentName = softString(hit, "agent_name")
		event.Version = softString(hit, "version")
		event.Route = softString(hit, "route")
		event.AttributesJSON = softString(hit, "attributes")

		events = append(events, event)
	}
	return events, nil
}

func softString(hit map[string]interface{}, key string) string {
	value, _ := hit[key].(string)
	return value
}
