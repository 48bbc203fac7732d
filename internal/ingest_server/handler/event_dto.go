package handler

// RecordErrorDTO reports one rejected record in an otherwise accepted batch.
type RecordErrorDTO struct {
	Index  int    `json:"index"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// IngestResponseDTO summarizes a batch ingestion: how many records were
// stored, how many were rejected, and why.
type IngestResponseDTO struct {
	Accepted int              `json:"accepted"`
	Rejected int              `json:"rejected"`
	Errors   []RecordErrorDTO `json:"errors,omitempty"`
}
