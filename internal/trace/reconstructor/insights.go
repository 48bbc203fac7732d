package reconstructor

import (
	"sort"

	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/trace/model"
)

const topCostSpanCount = 5

// Characters-per-token benchmark band. English prose over common BPE
// vocabularies lands around four characters per token.
const (
	charsPerTokenBenchmarkLow  = 3.0
	charsPerTokenBenchmarkHigh = 5.0
)

func buildCostBreakdown(allSpans []*model.Span) model.CostBreakdown {
	breakdown := model.CostBreakdown{
		ByType: make(map[string]float64),
	}
	var costs []model.SpanCost
	for _, span := range allSpans {
		if span.LLMCall == nil || span.LLMCall.CostUSD == nil {
			continue
		}
		cost := *span.LLMCall.CostUSD
		breakdown.TotalCostUSD += cost
		breakdown.ByType[string(span.Type)] += cost
		costs = append(costs, model.SpanCost{
			SpanID:  span.ID,
			Name:    span.Name,
			CostUSD: cost,
		})
	}
	sort.SliceStable(costs, func(i, j int) bool {
		return costs[i].CostUSD > costs[j].CostUSD
	})
	if len(costs) > topCostSpanCount {
		costs = costs[:topCostSpanCount]
	}
	breakdown.TopSpans = costs
	return breakdown
}

// buildPerformanceAnalysis finds the bottleneck: the non-root span with the
// longest duration, or the root itself when it is the only span.
func buildPerformanceAnalysis(allSpans []*model.Span, root *model.Span) model.PerformanceAnalysis {
	var bottleneck *model.Span
	for _, span := range allSpans {
		if span == root && len(allSpans) > 1 {
			continue
		}
		if bottleneck == nil || span.DurationMs > bottleneck.DurationMs {
			bottleneck = span
		}
	}
	if bottleneck == nil {
		return model.PerformanceAnalysis{}
	}
	analysis := model.PerformanceAnalysis{
		BottleneckSpanID: bottleneck.ID,
		BottleneckName:   bottleneck.Name,
		BottleneckType:   bottleneck.Type,
		DurationMs:       bottleneck.DurationMs,
		Recommendation:   remediationFor(bottleneck.Type),
	}
	if root.DurationMs > 0 {
		analysis.PercentOfTotal = bottleneck.DurationMs / root.DurationMs * 100
	}
	return analysis
}

func remediationFor(spanType eventmodel.EventType) string {
	switch spanType {
	case eventmodel.LLMCall:
		return "Consider a faster model, streaming the response, or trimming prompt context for this call."
	case eventmodel.ToolCall:
		return "Investigate the downstream tool; add caching or a tighter timeout."
	case eventmodel.Retrieval:
		return "Reduce top_k or tune the vector index to cut retrieval latency."
	default:
		return "Inspect this span; it dominates the trace duration."
	}
}

func buildTokenEfficiency(allSpans []*model.Span) model.TokenEfficiency {
	efficiency := model.TokenEfficiency{
		BenchmarkLow:  charsPerTokenBenchmarkLow,
		BenchmarkHigh: charsPerTokenBenchmarkHigh,
	}
	for _, span := range allSpans {
		if span.LLMCall != nil {
			efficiency.TotalCharacters += int64(len(span.LLMCall.Query) + len(span.LLMCall.Response))
			efficiency.TotalTokens += span.LLMCall.TotalTokens
		}
		if span.Output != nil {
			efficiency.TotalCharacters += int64(len(span.Output.Response))
		}
	}
	if efficiency.TotalTokens == 0 {
		efficiency.Rating = "unknown"
		return efficiency
	}
	efficiency.CharsPerToken = float64(efficiency.TotalCharacters) / float64(efficiency.TotalTokens)
	switch {
	case efficiency.CharsPerToken < charsPerTokenBenchmarkLow:
		efficiency.Rating = "inefficient"
	case efficiency.CharsPerToken > charsPerTokenBenchmarkHigh:
		efficiency.Rating = "efficient"
	default:
		efficiency.Rating = "normal"
	}
	return efficiency
}
