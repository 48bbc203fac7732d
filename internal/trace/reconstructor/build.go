package reconstructor

import (
	"fmt"
	"sort"
	"time"

	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/trace/model"
)

// typePriority decides the span's type discriminator when a span carries more
// than one observation type.
var typePriority = []eventmodel.EventType{
	eventmodel.LLMCall,
	eventmodel.ToolCall,
	eventmodel.Retrieval,
	eventmodel.Output,
	eventmodel.Error,
	eventmodel.Feedback,
}

func (rs *ReconstructorService) buildDetail(
	arena *spanArena,
	rootIdx int,
	decoded []decodedEvent,
	traceID string,
	earliest time.Time,
	parseErrors int,
) *model.TraceDetail {
	spans := make([]*model.Span, len(arena.nodes))
	for i := range arena.nodes {
		spans[i] = buildSpan(&arena.nodes[i], earliest)
	}

	for i := range arena.nodes {
		children := append([]int(nil), arena.nodes[i].children...)
		sort.SliceStable(children, func(a, b int) bool {
			return spans[children[a]].StartTime.Before(spans[children[b]].StartTime)
		})
		for _, childIdx := range children {
			spans[childIdx].ParentID = spans[i].ID
			spans[i].Children = append(spans[i].Children, spans[childIdx])
		}
	}

	root := spans[rootIdx]
	root.ParentID = ""
	recomputeEmptySpans(root)
	recomputeRoot(root, &arena.nodes[rootIdx], earliest)

	allSpans := flattenTree(root)
	detail := &model.TraceDetail{
		Spans:     []*model.Span{root},
		AllSpans:  allSpans,
		SpansByID: buildIndex(allSpans),
		Signals:   extractSignals(decoded),
	}
	detail.Summary = buildSummary(decoded, allSpans, root, traceID, parseErrors)
	detail.CostBreakdown = buildCostBreakdown(allSpans)
	detail.PerformanceAnalysis = buildPerformanceAnalysis(allSpans, root)
	detail.TokenEfficiency = buildTokenEfficiency(allSpans)
	return detail
}

// buildSpan groups a node's (already sorted) events into one span, extracting
// the richest single observation of each known type into the flattened detail
// blocks.
func buildSpan(node *spanNode, earliest time.Time) *model.Span {
	span := &model.Span{
		ID:         node.id,
		OriginalID: node.originalID,
		ParentID:   node.parentID,
	}
	if len(node.events) == 0 {
		span.Name = syntheticRootName
		span.Type = eventmodel.TraceStart
		return span
	}

	span.StartTime = node.events[0].event.Timestamp
	span.EndTime = node.events[len(node.events)-1].event.Timestamp
	span.RelativeTimeMs = durationMs(earliest, span.StartTime)
	span.Events = make([]model.SpanEvent, len(node.events))

	richest := make(map[eventmodel.EventType]decodedEvent)
	for i, d := range node.events {
		span.Events[i] = model.SpanEvent{
			EventType:      d.event.EventType,
			Timestamp:      d.event.Timestamp,
			RelativeTimeMs: durationMs(earliest, d.event.Timestamp),
			Attributes:     d.event.AttributesJSON,
		}
		current, ok := richest[d.event.EventType]
		if !ok || len(d.event.AttributesJSON) > len(current.event.AttributesJSON) {
			richest[d.event.EventType] = d
		}
	}
	flattenObservations(span, richest)

	span.Type = dominantType(span)
	span.Name = spanName(span)
	span.DurationMs = deriveDuration(span)
	return span
}

func flattenObservations(span *model.Span, richest map[eventmodel.EventType]decodedEvent) {
	if d, ok := richest[eventmodel.LLMCall]; ok {
		span.LLMCall = d.attrs.LLMCall
	}
	if d, ok := richest[eventmodel.ToolCall]; ok {
		span.ToolCall = d.attrs.ToolCall
	}
	if d, ok := richest[eventmodel.Retrieval]; ok {
		span.Retrieval = d.attrs.Retrieval
	}
	if d, ok := richest[eventmodel.Output]; ok {
		span.Output = d.attrs.Output
	}
	if d, ok := richest[eventmodel.Error]; ok {
		span.Error = d.attrs.Error
	}
	if d, ok := richest[eventmodel.Feedback]; ok {
		span.Feedback = d.attrs.Feedback
	}
}

func dominantType(span *model.Span) eventmodel.EventType {
	for _, eventType := range typePriority {
		switch eventType {
		case eventmodel.LLMCall:
			if span.LLMCall != nil {
				return eventmodel.LLMCall
			}
		case eventmodel.ToolCall:
			if span.ToolCall != nil {
				return eventmodel.ToolCall
			}
		case eventmodel.Retrieval:
			if span.Retrieval != nil {
				return eventmodel.Retrieval
			}
		case eventmodel.Output:
			if span.Output != nil {
				return eventmodel.Output
			}
		case eventmodel.Error:
			if span.Error != nil {
				return eventmodel.Error
			}
		case eventmodel.Feedback:
			if span.Feedback != nil {
				return eventmodel.Feedback
			}
		}
	}
	return eventmodel.TraceStart
}

func spanName(span *model.Span) string {
	switch span.Type {
	case eventmodel.LLMCall:
		if span.LLMCall != nil && span.LLMCall.Model != "" {
			return span.LLMCall.Model
		}
		return string(eventmodel.LLMCall)
	case eventmodel.ToolCall:
		if span.ToolCall != nil && span.ToolCall.Name != "" {
			return span.ToolCall.Name
		}
		return string(eventmodel.ToolCall)
	case eventmodel.TraceStart:
		return syntheticRootName
	default:
		return string(span.Type)
	}
}

// deriveDuration prefers an explicit latency on the dominant observation, in
// the order tool_call > llm_call > retrieval, and falls back to the
// wall-clock delta between the span's first and last event.
func deriveDuration(span *model.Span) float64 {
	if span.ToolCall != nil && span.ToolCall.LatencyMs > 0 {
		return span.ToolCall.LatencyMs
	}
	if span.LLMCall != nil && span.LLMCall.LatencyMs > 0 {
		return span.LLMCall.LatencyMs
	}
	if span.Retrieval != nil && span.Retrieval.LatencyMs > 0 {
		return span.Retrieval.LatencyMs
	}
	return durationMs(span.StartTime, span.EndTime)
}

// recomputeEmptySpans fixes up, bottom-up, spans that carry no events of
// their own (promotion targets, synthesized roots) so their window covers
// their children.
func recomputeEmptySpans(span *model.Span) {
	for _, child := range span.Children {
		recomputeEmptySpans(child)
	}
	if len(span.Events) > 0 || len(span.Children) == 0 {
		return
	}
	span.StartTime, span.EndTime = childExtent(span)
	span.DurationMs = durationMs(span.StartTime, span.EndTime)
}

// recomputeRoot derives the root span's window as the min/max over its
// resolved children, falling back to trace_start/trace_end events when there
// are no children.
func recomputeRoot(root *model.Span, node *spanNode, earliest time.Time) {
	if len(root.Children) > 0 {
		start, end := childExtent(root)
		if len(node.events) > 0 {
			if node.events[0].event.Timestamp.Before(start) {
				start = node.events[0].event.Timestamp
			}
			if last := node.events[len(node.events)-1].event.Timestamp; last.After(end) {
				end = last
			}
		}
		root.StartTime = start
		root.EndTime = end
		root.DurationMs = durationMs(start, end)
	} else if len(node.events) > 0 {
		for _, d := range node.events {
			switch d.event.EventType {
			case eventmodel.TraceStart:
				root.StartTime = d.event.Timestamp
			case eventmodel.TraceEnd:
				root.EndTime = d.event.Timestamp
			}
		}
		if root.EndTime.Before(root.StartTime) {
			root.EndTime = node.events[len(node.events)-1].event.Timestamp
		}
		root.DurationMs = durationMs(root.StartTime, root.EndTime)
	}
	root.RelativeTimeMs = durationMs(earliest, root.StartTime)
}

func childExtent(span *model.Span) (time.Time, time.Time) {
	start := span.Children[0].StartTime
	end := span.Children[0].EffectiveEndTime()
	for _, child := range span.Children[1:] {
		if child.StartTime.Before(start) {
			start = child.StartTime
		}
		if childEnd := child.EffectiveEndTime(); childEnd.After(end) {
			end = childEnd
		}
	}
	return start, end
}

func flattenTree(root *model.Span) []*model.Span {
	var all []*model.Span
	var walk func(span *model.Span)
	walk = func(span *model.Span) {
		all = append(all, span)
		for _, child := range span.Children {
			walk(child)
		}
	}
	walk(root)
	return all
}

// buildIndex keys every span by its id, original id, name and the
// "{name}-{event_type}" compound so callers can resolve a span by any
// identifier events carry. First writer wins on collisions.
func buildIndex(allSpans []*model.Span) map[string]*model.Span {
	index := make(map[string]*model.Span)
	put := func(key string, span *model.Span) {
		if key == "" {
			return
		}
		if _, exists := index[key]; !exists {
			index[key] = span
		}
	}
	for _, span := range allSpans {
		put(span.ID, span)
		put(span.OriginalID, span)
		put(span.Name, span)
		put(fmt.Sprintf("%s-%s", span.Name, span.Type), span)
	}
	return index
}

func extractSignals(decoded []decodedEvent) []model.SignalRecord {
	var signals []model.SignalRecord
	for _, d := range decoded {
		if d.attrs.Signal == nil {
			continue
		}
		signals = append(signals, model.SignalRecord{
			SpanID:    d.event.SpanID,
			Timestamp: d.event.Timestamp,
			Signal:    *d.attrs.Signal,
		})
	}
	return signals
}

func buildSummary(
	decoded []decodedEvent,
	allSpans []*model.Span,
	root *model.Span,
	traceID string,
	parseErrors int,
) model.TraceSummary {
	summary := model.TraceSummary{
		TraceID:     traceID,
		TenantID:    decoded[0].event.TenantID,
		ProjectID:   decoded[0].event.ProjectID,
		Environment: decoded[0].event.Environment,
		StartTime:   root.StartTime,
		EndTime:     root.EndTime,
		DurationMs:  root.DurationMs,
		SpanCount:   len(allSpans),
		EventCount:  len(decoded),
		ParseErrors: parseErrors,
	}
	models := make(map[string]bool)
	for _, span := range allSpans {
		if span.LLMCall != nil {
			summary.TotalTokens += span.LLMCall.TotalTokens
			if span.LLMCall.CostUSD != nil {
				summary.TotalCostUSD += *span.LLMCall.CostUSD
			}
			if span.LLMCall.Model != "" && !models[span.LLMCall.Model] {
				models[span.LLMCall.Model] = true
				summary.Models = append(summary.Models, span.LLMCall.Model)
			}
		}
		if span.Error != nil {
			summary.HasErrors = true
		}
		if span.ToolCall != nil && (span.ToolCall.Status == "error" || span.ToolCall.Status == "timeout") {
			summary.HasErrors = true
		}
	}
	sort.Strings(summary.Models)
	return summary
}

func durationMs(start time.Time, end time.Time) float64 {
	if end.Before(start) {
		return 0
	}
	return float64(end.Sub(start)) / float64(time.Millisecond)
}
