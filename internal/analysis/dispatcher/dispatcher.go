package dispatcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/queue"
	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/metrics"
	signalmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/signal/model"
	"go.uber.org/zap"
)

// Dispatcher turns escalated signals, explicit requests and sampled traces
// into durable analysis jobs. An unconfigured broker is not fatal: Enqueue
// reports false and the caller degrades to "signals detected but no deep
// analysis".
type Dispatcher struct {
	jobQueue   queue.JobQueue
	sampleRate float64
	logger     *zap.Logger
}

// NewDispatcher creates a dispatcher. jobQueue may be nil when no broker is
// configured.
func NewDispatcher(jobQueue queue.JobQueue, sampleRate float64, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		jobQueue:   jobQueue,
		sampleRate: sampleRate,
		logger:     logger,
	}
}

// Enqueue submits a job to the broker. Returns false when the broker is
// unavailable so callers can degrade gracefully; the degradation is logged,
// never silent.
func (d *Dispatcher) Enqueue(ctx context.Context, job model.AnalysisJob) bool {
	if d.jobQueue == nil {
		d.logger.Warn(
			"Analysis queue not configured, dropping job",
			zap.String("trace_id", job.TraceID),
			zap.String("trigger", string(job.Trigger)),
		)
		metrics.AnalysisJobs.WithLabelValues(string(job.Trigger), "dropped").Inc()
		return false
	}
	if err := d.jobQueue.Enqueue(ctx, job); err != nil {
		d.logger.Error(
			"Failed to enqueue analysis job",
			zap.String("trace_id", job.TraceID),
			zap.Error(err),
		)
		metrics.AnalysisJobs.WithLabelValues(string(job.Trigger), "enqueue_failed").Inc()
		return false
	}
	metrics.AnalysisJobs.WithLabelValues(string(job.Trigger), "enqueued").Inc()
	return true
}

// DispatchFromSignal builds and enqueues a job for a batch that produced
// medium or high severity signals. High severity requests both layers,
// medium only the cheap one.
func (d *Dispatcher) DispatchFromSignal(
	ctx context.Context,
	source eventmodel.CanonicalEvent,
	attrs eventmodel.Attributes,
	severity signalmodel.Severity,
) bool {
	layers := []model.Layer{model.Layer3}
	if severity == signalmodel.SeverityHigh {
		layers = append(layers, model.Layer4)
	}
	job := newJobFromEvent(source, attrs, model.TriggerHighSeveritySignal, layers)
	job.Severity = string(severity)
	return d.Enqueue(ctx, job)
}

// DispatchExplicit enqueues an analysis requested directly by a caller. Both
// layers run.
func (d *Dispatcher) DispatchExplicit(
	ctx context.Context,
	source eventmodel.CanonicalEvent,
	attrs eventmodel.Attributes,
) bool {
	job := newJobFromEvent(
		source, attrs,
		model.TriggerExplicitRequest,
		[]model.Layer{model.Layer3, model.Layer4},
	)
	return d.Enqueue(ctx, job)
}

// MaybeDispatchSampled enqueues a background quality probe for a random
// sample of traces. Only the cheap layer runs.
func (d *Dispatcher) MaybeDispatchSampled(
	ctx context.Context,
	source eventmodel.CanonicalEvent,
	attrs eventmodel.Attributes,
) bool {
	if d.sampleRate <= 0 || rand.Float64() >= d.sampleRate {
		return false
	}
	job := newJobFromEvent(source, attrs, model.TriggerSampled, []model.Layer{model.Layer3})
	return d.Enqueue(ctx, job)
}

func newJobFromEvent(
	source eventmodel.CanonicalEvent,
	attrs eventmodel.Attributes,
	trigger model.Trigger,
	layers []model.Layer,
) model.AnalysisJob {
	job := model.AnalysisJob{
		ID:             jobID(source.TraceID, trigger),
		TraceID:        source.TraceID,
		TenantID:       source.TenantID,
		ProjectID:      source.ProjectID,
		Environment:    source.Environment,
		SpanID:         source.SpanID,
		ParentSpanID:   source.ParentSpanID,
		ConversationID: source.ConversationID,
		SessionID:      source.SessionID,
		UserID:         source.UserID,
		Trigger:        trigger,
		Layers:         layers,
		EnqueuedAt:     time.Now().UTC(),
	}
	if llm := attrs.LLMCall; llm != nil {
		job.Query = llm.Query
		job.Response = llm.Response
		job.Model = llm.Model
		job.TotalTokens = llm.TotalTokens
		job.LatencyMs = llm.LatencyMs
		job.CostUSD = llm.CostUSD
	}
	if output := attrs.Output; output != nil && job.Response == "" {
		job.Response = output.Response
	}
	return job
}

// jobID is deterministic within one millisecond-trace-trigger pairing to
// avoid accidental duplicate enqueue; exactly-once is not promised.
func jobID(traceID string, trigger model.Trigger) string {
	data := fmt.Sprintf("%s:%s:%d", traceID, trigger, time.Now().UnixMilli())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
