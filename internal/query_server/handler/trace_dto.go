package handler

// TraceListResponseDTO lists the most recent trace ids for a tenant, newest
// first.
type TraceListResponseDTO struct {
	TraceIDs []string `json:"trace_ids"`
}

// QueueStatsResponseDTO exposes the analysis queue depths for operators.
type QueueStatsResponseDTO struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// AnalysisRequestDTO asks for an on-demand deep analysis of a trace. Query
// and response give the judge its inputs; identity fields scope the resulting
// signals.
type AnalysisRequestDTO struct {
	TenantID  string `json:"tenant_id"`
	ProjectID string `json:"project_id"`
	TraceID   string `json:"trace_id"`
	SpanID    string `json:"span_id"`
	Query     string `json:"query"`
	Response  string `json:"response"`
	Model     string `json:"model"`
}

// AnalysisResponseDTO reports whether the analysis job reached the broker.
type AnalysisResponseDTO struct {
	Enqueued bool `json:"enqueued"`
}
