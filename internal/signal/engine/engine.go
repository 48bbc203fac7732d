package engine

import (
	"context"
	"fmt"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/sink"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/metrics"
	signalmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/signal/model"
	"go.uber.org/zap"
)

// AnalysisDispatcher escalates batches that produced medium or high severity
// signals into the deep-analysis pipeline. Returns false when the queue is
// unavailable; the engine degrades gracefully either way.
type AnalysisDispatcher interface {
	DispatchFromSignal(
		ctx context.Context,
		source model.CanonicalEvent,
		attrs model.Attributes,
		severity signalmodel.Severity,
	) bool
	MaybeDispatchSampled(
		ctx context.Context,
		source model.CanonicalEvent,
		attrs model.Attributes,
	) bool
}

// DetectionEngine runs the deterministic Layer-2 rule scan over each
// ingested batch. It runs in the request-handling context but never blocks
// or fails ingestion: every internal error is caught and logged.
type DetectionEngine struct {
	eventSink  sink.EventSink
	dispatcher AnalysisDispatcher
	logger     *zap.Logger
}

// NewDetectionEngine creates the engine. The dispatcher may be nil when no
// queue broker is configured; detection still runs, deep analysis is skipped.
func NewDetectionEngine(
	eventSink sink.EventSink,
	dispatcher AnalysisDispatcher,
	logger *zap.Logger,
) *DetectionEngine {
	return &DetectionEngine{
		eventSink:  eventSink,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

type scanResult struct {
	signals []signalmodel.Signal
	// source events that produced at least one finding, in batch order, with
	// decoded attributes, for escalation.
	triggers []triggeredEvent
}

type triggeredEvent struct {
	event model.CanonicalEvent
	attrs model.Attributes
}

// Process scans one ingested batch. Side effects only: emits signal events
// through the sink and may escalate to the dispatcher. Never propagates an
// error to the ingestion caller.
func (e *DetectionEngine) Process(ctx context.Context, events []model.CanonicalEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Signal detection panicked, ingestion unaffected", zap.Any("panic", r))
		}
	}()

	result := e.scan(events)
	if len(result.signals) == 0 {
		e.sample(ctx, events)
		return
	}

	signalEvents := make([]model.CanonicalEvent, 0, len(result.signals))
	for _, signal := range result.signals {
		signalEvent, err := signal.ToCanonicalEvent()
		if err != nil {
			e.logger.Error("Failed to encode signal event", zap.Error(err))
			continue
		}
		signalEvents = append(signalEvents, signalEvent)
		metrics.SignalsDetected.WithLabelValues(string(signal.Severity)).Inc()
	}
	if err := e.eventSink.WriteEvents(ctx, signalEvents); err != nil {
		e.logger.Error("Failed to persist detected signals", zap.Error(err))
	}

	e.escalate(ctx, result)
}

func (e *DetectionEngine) scan(events []model.CanonicalEvent) scanResult {
	// Correlation keys are inherited from the source event, looked up by
	// trace_id:span_id, never defaulted to empty. A signal with a null
	// parent would be misread downstream as a second trace root.
	sources := make(map[string]model.CanonicalEvent, len(events))
	for _, event := range events {
		key := sourceKey(event.TraceID, event.SpanID)
		if _, ok := sources[key]; !ok {
			sources[key] = event
		}
	}

	var result scanResult
	for _, event := range events {
		attrs, err := model.DecodeAttributes(event)
		if err != nil {
			e.logger.Warn(
				"Scanning event with malformed attributes",
				zap.String("span_id", event.SpanID),
				zap.Error(err),
			)
			attrs = model.Attributes{}
		}
		findings := evaluate(event, attrs)
		if len(findings) == 0 {
			continue
		}
		source := sources[sourceKey(event.TraceID, event.SpanID)]
		for _, f := range findings {
			result.signals = append(result.signals, signalFromFinding(f, event, source))
		}
		result.triggers = append(result.triggers, triggeredEvent{event: event, attrs: attrs})
	}
	return result
}

func signalFromFinding(
	f finding,
	event model.CanonicalEvent,
	source model.CanonicalEvent,
) signalmodel.Signal {
	return signalmodel.Signal{
		TenantID:       event.TenantID,
		ProjectID:      event.ProjectID,
		Environment:    event.Environment,
		TraceID:        event.TraceID,
		SpanID:         event.SpanID,
		ParentSpanID:   source.ParentSpanID,
		ConversationID: source.ConversationID,
		SessionID:      source.SessionID,
		UserID:         source.UserID,
		Name:           f.name,
		Type:           f.sigType,
		Value:          f.value,
		Severity:       f.severity,
		Metadata:       f.metadata,
		Timestamp:      event.Timestamp,
	}
}

// escalate hands the batch to the dispatcher when any medium or high
// severity signal was produced. Dispatcher failures are logged, never
// surfaced to the ingestion caller.
func (e *DetectionEngine) escalate(ctx context.Context, result scanResult) {
	severity := batchSeverity(result.signals)
	if severity != signalmodel.SeverityHigh && severity != signalmodel.SeverityMedium {
		return
	}
	if e.dispatcher == nil {
		e.logger.Warn("No analysis dispatcher configured, skipping deep analysis escalation")
		return
	}
	trigger := mostInformative(result.triggers)
	if !e.dispatcher.DispatchFromSignal(ctx, trigger.event, trigger.attrs, severity) {
		e.logger.Warn(
			"Analysis queue unavailable, signals detected but no deep analysis",
			zap.String("trace_id", trigger.event.TraceID),
		)
	}
}

// sample offers the first model call of a clean batch to the dispatcher as a
// background quality probe. The dispatcher decides whether to take it.
func (e *DetectionEngine) sample(ctx context.Context, events []model.CanonicalEvent) {
	if e.dispatcher == nil {
		return
	}
	for _, event := range events {
		if event.EventType != model.LLMCall {
			continue
		}
		attrs, err := model.DecodeAttributes(event)
		if err != nil {
			return
		}
		e.dispatcher.MaybeDispatchSampled(ctx, event, attrs)
		return
	}
}

func batchSeverity(signals []signalmodel.Signal) signalmodel.Severity {
	severity := signalmodel.SeverityLow
	for _, signal := range signals {
		if signal.Severity == signalmodel.SeverityHigh {
			return signalmodel.SeverityHigh
		}
		if signal.Severity == signalmodel.SeverityMedium {
			severity = signalmodel.SeverityMedium
		}
	}
	return severity
}

// mostInformative prefers llm_call events, then output events, then the
// first trigger in batch order.
func mostInformative(triggers []triggeredEvent) triggeredEvent {
	for _, trigger := range triggers {
		if trigger.event.EventType == model.LLMCall {
			return trigger
		}
	}
	for _, trigger := range triggers {
		if trigger.event.EventType == model.Output {
			return trigger
		}
	}
	return triggers[0]
}

func sourceKey(traceID string, spanID string) string {
	return fmt.Sprintf("%s:%s", traceID, spanID)
}
