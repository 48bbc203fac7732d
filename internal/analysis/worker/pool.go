package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/judge"
	analysismodel "github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/queue"
	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/sink"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	layer3Timeout = 30 * time.Second
	layer4Timeout = 60 * time.Second
)

// Pool leases analysis jobs and runs each requested layer against the judge
// service. Concurrency is a small fixed N; throughput is additionally capped
// by a jobs-per-minute limiter independent of N, because the bottleneck is
// the external judge, not local CPU.
type Pool struct {
	jobQueue    queue.JobQueue
	judgeClient judge.Client
	eventSink   sink.EventSink
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

func NewPool(
	jobQueue queue.JobQueue,
	judgeClient judge.Client,
	eventSink sink.EventSink,
	concurrency int,
	jobsPerMinute int,
	logger *zap.Logger,
) *Pool {
	if concurrency <= 0 {
		concurrency = 2
	}
	if jobsPerMinute <= 0 {
		jobsPerMinute = 30
	}
	return &Pool{
		jobQueue:    jobQueue,
		judgeClient: judgeClient,
		eventSink:   eventSink,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(rate.Limit(float64(jobsPerMinute)/60.0), 1),
		logger:      logger,
	}
}

// Run blocks until the context is cancelled.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.runWorker(ctx, workerID)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, workerID int) {
	logger := p.logger.With(zap.Int("worker", workerID))
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		job, err := p.jobQueue.Lease(ctx)
		if errors.Is(err, queue.ErrQueueEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("Failed to lease analysis job", zap.Error(err))
			continue
		}
		p.process(ctx, job, logger)
	}
}

// process runs each requested layer. A layer's failure does not abort the
// other layer; partial results are still persisted. The job is nacked only
// when every layer failed.
func (p *Pool) process(ctx context.Context, job *analysismodel.AnalysisJob, logger *zap.Logger) {
	request := judge.AnalyzeRequest{
		TraceID:     job.TraceID,
		TenantID:    job.TenantID,
		ProjectID:   job.ProjectID,
		Query:       job.Query,
		Response:    job.Response,
		Model:       job.Model,
		TotalTokens: job.TotalTokens,
		LatencyMs:   job.LatencyMs,
		CostUSD:     job.CostUSD,
	}

	var signals []eventmodel.CanonicalEvent
	failedLayers := 0
	for _, layer := range job.Layers {
		scores, err := p.runLayer(ctx, layer, request)
		if err != nil {
			failedLayers++
			logger.Error(
				"Analysis layer failed",
				zap.String("job_id", job.ID),
				zap.String("layer", string(layer)),
				zap.Error(err),
			)
			continue
		}
		for _, signal := range signalsFromScores(job, layer, scores) {
			signalEvent, err := signal.ToCanonicalEvent()
			if err != nil {
				logger.Error("Failed to encode analysis signal", zap.Error(err))
				continue
			}
			signals = append(signals, signalEvent)
			metrics.SignalsDetected.WithLabelValues(string(signal.Severity)).Inc()
		}
	}

	if failedLayers == len(job.Layers) {
		metrics.AnalysisJobs.WithLabelValues(string(job.Trigger), "retried").Inc()
		if err := p.jobQueue.Nack(ctx, job); err != nil {
			logger.Error("Failed to nack analysis job", zap.Error(err))
		}
		return
	}

	if len(signals) > 0 {
		if err := p.eventSink.WriteEvents(ctx, signals); err != nil {
			logger.Error("Failed to persist analysis signals", zap.Error(err))
			if err := p.jobQueue.Nack(ctx, job); err != nil {
				logger.Error("Failed to nack analysis job", zap.Error(err))
			}
			return
		}
	}

	metrics.AnalysisJobs.WithLabelValues(string(job.Trigger), "completed").Inc()
	if err := p.jobQueue.Ack(ctx, job); err != nil {
		logger.Error("Failed to ack analysis job", zap.Error(err))
	}
}

// runLayer applies the layer's hard timeout; the deadline aborts the
// in-flight judge request and broker-level retry is the only recovery.
func (p *Pool) runLayer(
	ctx context.Context,
	layer analysismodel.Layer,
	request judge.AnalyzeRequest,
) (*judge.Scores, error) {
	switch layer {
	case analysismodel.Layer4:
		layerCtx, cancel := context.WithTimeout(ctx, layer4Timeout)
		defer cancel()
		return p.judgeClient.AnalyzeLayer4(layerCtx, request)
	default:
		layerCtx, cancel := context.WithTimeout(ctx, layer3Timeout)
		defer cancel()
		return p.judgeClient.AnalyzeLayer3(layerCtx, request)
	}
}
