package model

import (
	"encoding/json"
	"fmt"
)

// Attributes is the decoded, type-tagged payload of a canonical event. At
// most one variant is non-nil, selected by the event's EventType. Malformed
// payloads decode to the zero value so a single bad event never aborts
// reconstruction.
type Attributes struct {
	LLMCall   *LLMCallAttributes
	ToolCall  *ToolCallAttributes
	Retrieval *RetrievalAttributes
	Output    *OutputAttributes
	Error     *ErrorAttributes
	Feedback  *FeedbackAttributes
	Signal    *SignalAttributes
}

type LLMCallAttributes struct {
	Model        string   `json:"model,omitempty"`
	Provider     string   `json:"provider,omitempty"`
	Query        string   `json:"query,omitempty"`
	Response     string   `json:"response,omitempty"`
	InputTokens  int64    `json:"input_tokens,omitempty"`
	OutputTokens int64    `json:"output_tokens,omitempty"`
	TotalTokens  int64    `json:"total_tokens,omitempty"`
	LatencyMs    float64  `json:"latency_ms,omitempty"`
	CostUSD      *float64 `json:"cost_usd,omitempty"`
}

type ToolCallAttributes struct {
	Name      string  `json:"name,omitempty"`
	Args      string  `json:"args,omitempty"`
	Result    string  `json:"result,omitempty"`
	Status    string  `json:"status,omitempty"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
}

type RetrievalAttributes struct {
	TopK      int       `json:"top_k,omitempty"`
	Context   string    `json:"context,omitempty"`
	Scores    []float64 `json:"scores,omitempty"`
	LatencyMs float64   `json:"latency_ms,omitempty"`
}

type OutputAttributes struct {
	Response    string `json:"response,omitempty"`
	FinishState string `json:"finish_state,omitempty"`
}

type ErrorAttributes struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

type FeedbackAttributes struct {
	Score   *float64 `json:"score,omitempty"`
	Comment string   `json:"comment,omitempty"`
}

// SignalAttributes rides on error-typed events so detected signals share the
// storage and query path of ordinary trace data.
type SignalAttributes struct {
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Value    float64           `json:"value"`
	Severity string            `json:"severity"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// wireAttributes is the on-the-wire payload: one flat object whose fields are
// interpreted according to the event type. Fields shared across types
// (latency_ms, response) appear once.
type wireAttributes struct {
	Model        string            `json:"model,omitempty"`
	Provider     string            `json:"provider,omitempty"`
	Query        string            `json:"query,omitempty"`
	Response     string            `json:"response,omitempty"`
	InputTokens  int64             `json:"input_tokens,omitempty"`
	OutputTokens int64             `json:"output_tokens,omitempty"`
	TotalTokens  int64             `json:"total_tokens,omitempty"`
	LatencyMs    float64           `json:"latency_ms,omitempty"`
	CostUSD      *float64          `json:"cost_usd,omitempty"`
	Name         string            `json:"name,omitempty"`
	Args         string            `json:"args,omitempty"`
	Result       string            `json:"result,omitempty"`
	Status       string            `json:"status,omitempty"`
	TopK         int               `json:"top_k,omitempty"`
	Context      string            `json:"context,omitempty"`
	Scores       []float64         `json:"scores,omitempty"`
	FinishState  string            `json:"finish_state,omitempty"`
	Type         string            `json:"type,omitempty"`
	Message      string            `json:"message,omitempty"`
	Stack        string            `json:"stack,omitempty"`
	Score        *float64          `json:"score,omitempty"`
	Comment      string            `json:"comment,omitempty"`
	Signal       *SignalAttributes `json:"signal,omitempty"`
}

// DecodeAttributes parses an event's payload into the variant selected by its
// event type. A malformed payload returns empty attributes together with the
// parse error so callers can degrade instead of aborting.
func DecodeAttributes(event CanonicalEvent) (Attributes, error) {
	if event.AttributesJSON == "" {
		return Attributes{}, nil
	}
	var wire wireAttributes
	if err := json.Unmarshal([]byte(event.AttributesJSON), &wire); err != nil {
		return Attributes{}, fmt.Errorf("failed to decode attributes payload: %w", err)
	}
	attrs := Attributes{}
	switch event.EventType {
	case LLMCall:
		attrs.LLMCall = &LLMCallAttributes{
			Model:        wire.Model,
			Provider:     wire.Provider,
			Query:        wire.Query,
			Response:     wire.Response,
			InputTokens:  wire.InputTokens,
			OutputTokens: wire.OutputTokens,
			TotalTokens:  wire.TotalTokens,
			LatencyMs:    wire.LatencyMs,
			CostUSD:      wire.CostUSD,
		}
	case ToolCall:
		attrs.ToolCall = &ToolCallAttributes{
			Name:      wire.Name,
			Args:      wire.Args,
			Result:    wire.Result,
			Status:    wire.Status,
			LatencyMs: wire.LatencyMs,
		}
	case Retrieval:
		attrs.Retrieval = &RetrievalAttributes{
			TopK:      wire.TopK,
			Context:   wire.Context,
			Scores:    wire.Scores,
			LatencyMs: wire.LatencyMs,
		}
	case Output:
		attrs.Output = &OutputAttributes{
			Response:    wire.Response,
			FinishState: wire.FinishState,
		}
	case Error:
		attrs.Error = &ErrorAttributes{
			Type:    wire.Type,
			Message: wire.Message,
			Stack:   wire.Stack,
		}
		attrs.Signal = wire.Signal
	case Feedback:
		attrs.Feedback = &FeedbackAttributes{
			Score:   wire.Score,
			Comment: wire.Comment,
		}
	}
	return attrs, nil
}

// EncodeAttributes serializes a tagged attribute union back into the wire
// payload carried by a canonical event.
func EncodeAttributes(attrs Attributes) (string, error) {
	wire := wireAttributes{}
	if llm := attrs.LLMCall; llm != nil {
		wire.Model = llm.Model
		wire.Provider = llm.Provider
		wire.Query = llm.Query
		wire.Response = llm.Response
		wire.InputTokens = llm.InputTokens
		wire.OutputTokens = llm.OutputTokens
		wire.TotalTokens = llm.TotalTokens
		wire.LatencyMs = llm.LatencyMs
		wire.CostUSD = llm.CostUSD
	}
	if tool := attrs.ToolCall; tool != nil {
		wire.Name = tool.Name
		wire.Args = tool.Args
		wire.Result = tool.Result
		wire.Status = tool.Status
		wire.LatencyMs = tool.LatencyMs
	}
	if retrieval := attrs.Retrieval; retrieval != nil {
		wire.TopK = retrieval.TopK
		wire.Context = retrieval.Context
		wire.Scores = retrieval.Scores
		wire.LatencyMs = retrieval.LatencyMs
	}
	if output := attrs.Output; output != nil {
		wire.Response = output.Response
		wire.FinishState = output.FinishState
	}
	if errAttrs := attrs.Error; errAttrs != nil {
		wire.Type = errAttrs.Type
		wire.Message = errAttrs.Message
		wire.Stack = errAttrs.Stack
	}
	if feedback := attrs.Feedback; feedback != nil {
		wire.Score = feedback.Score
		wire.Comment = feedback.Comment
	}
	wire.Signal = attrs.Signal
	encoded, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("failed to encode attributes payload: %w", err)
	}
	return string(encoded), nil
}
