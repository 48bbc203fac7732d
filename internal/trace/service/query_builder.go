package service

import (
	"errors"
	"time"
)

// ErrMissingTenantFilter rejects any analytical query that does not scope by
// tenant. Queries are built here and nowhere else, so the guard cannot be
// bypassed.
var ErrMissingTenantFilter = errors.New("analytical query is missing a tenant_id filter")

func buildTraceEventsQuery(tenantID string, traceID string) (map[string]interface{}, error) {
	if tenantID == "" {
		return nil, ErrMissingTenantFilter
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []map[string]interface{}{
					{
						"term": map[string]interface{}{
							"tenant_id": tenantID,
						},
					},
					{
						"term": map[string]interface{}{
							"trace_id": traceID,
						},
					},
				},
			},
		},
		"sort": []map[string]interface{}{
			{
				"timestamp": map[string]interface{}{
					"order": "asc",
				},
			},
		},
	}, nil
}

func buildTraceListQuery(
	tenantID string,
	startTime *time.Time,
	endTime *time.Time,
) (map[string]interface{}, error) {
	if tenantID == "" {
		return nil, ErrMissingTenantFilter
	}
	filterClauses := []map[string]interface{}{
		{
			"term": map[string]interface{}{
				"tenant_id": tenantID,
			},
		},
	}
	timestampRange := map[string]interface{}{}
	if startTime != nil {
		timestampRange["gte"] = startTime.UTC().Format(time.RFC3339Nano)
	}
	if endTime != nil {
		timestampRange["lte"] = endTime.UTC().Format(time.RFC3339Nano)
	}
	if len(timestampRange) > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": timestampRange,
			},
		})
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": filterClauses,
			},
		},
		"sort": []map[string]interface{}{
			{
				"timestamp": map[string]interface{}{
					"order": "desc",
				},
			},
		},
	}, nil
}
