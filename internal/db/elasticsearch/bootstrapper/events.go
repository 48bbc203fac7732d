package bootstrapper

const EventIndexName = "canonical_event_index"

var eventIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"tenant_id": map[string]interface{}{
				"type": "keyword",
			},
			"project_id": map[string]interface{}{
				"type": "keyword",
			},
			"environment": map[string]interface{}{
				"type": "keyword",
			},
			"trace_id": map[string]interface{}{
				"type": "keyword",
			},
			"span_id": map[string]interface{}{
				"type": "keyword",
			},
			"parent_span_id": map[string]interface{}{
				"type": "keyword",
			},
			"timestamp": map[string]interface{}{
				"type": "date_nanos",
			},
			"event_type": map[string]interface{}{
				"type": "keyword",
			},
			"conversation_id": map[string]interface{}{
				"type": "keyword",
			},
			"session_id": map[string]interface{}{
				"type": "keyword",
			},
			"user_id": map[string]interface{}{
				"type": "keyword",
			},
			"agent_name": map[string]interface{}{
				"type": "keyword",
			},
			"version": map[string]interface{}{
				"type": "keyword",
			},
			"route": map[string]interface{}{
				"type": "keyword",
			},
			"attributes": map[string]interface{}{
				"type":  "text",
				"index": false,
			},
		},
	},
}
