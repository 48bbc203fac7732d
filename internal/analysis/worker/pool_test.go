package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/judge"
	analysismodel "github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/queue"
	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeJudge struct {
	layer3Scores *judge.Scores
	layer3Err    error
	layer4Scores *judge.Scores
	layer4Err    error
}

func (f *fakeJudge) AnalyzeLayer3(_ context.Context, _ judge.AnalyzeRequest) (*judge.Scores, error) {
	return f.layer3Scores, f.layer3Err
}

func (f *fakeJudge) AnalyzeLayer4(_ context.Context, _ judge.AnalyzeRequest) (*judge.Scores, error) {
	return f.layer4Scores, f.layer4Err
}

type fakeQueue struct {
	queue.JobQueue
	acked  int
	nacked int
}

func (f *fakeQueue) Ack(_ context.Context, _ *analysismodel.AnalysisJob) error {
	f.acked++
	return nil
}

func (f *fakeQueue) Nack(_ context.Context, _ *analysismodel.AnalysisJob) error {
	f.nacked++
	return nil
}

type fakeSink struct {
	written []eventmodel.CanonicalEvent
	err     error
}

func (f *fakeSink) WriteEvents(_ context.Context, events []eventmodel.CanonicalEvent) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, events...)
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func bothLayersJob() *analysismodel.AnalysisJob {
	return &analysismodel.AnalysisJob{
		ID:       "job-1",
		TraceID:  "trace-1",
		TenantID: "tenant-1",
		Trigger:  analysismodel.TriggerHighSeveritySignal,
		Layers:   []analysismodel.Layer{analysismodel.Layer3, analysismodel.Layer4},
	}
}

func TestPool_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("Healthy scores write nothing and ack the job", func(t *testing.T) {
		jq := &fakeQueue{}
		sink := &fakeSink{}
		pool := NewPool(jq, &fakeJudge{
			layer3Scores: &judge.Scores{EmbeddingDrift: floatPtr(0.1)},
			layer4Scores: &judge.Scores{Faithfulness: floatPtr(0.95), Hallucination: floatPtr(0.05)},
		}, sink, 1, 60, zap.NewNop())

		pool.process(ctx, bothLayersJob(), zap.NewNop())

		assert.Empty(t, sink.written)
		assert.Equal(t, 1, jq.acked)
		assert.Equal(t, 0, jq.nacked)
	})

	t.Run("Unhealthy scores are persisted as signal events", func(t *testing.T) {
		jq := &fakeQueue{}
		sink := &fakeSink{}
		pool := NewPool(jq, &fakeJudge{
			layer3Scores: &judge.Scores{EmbeddingDrift: floatPtr(0.8)},
			layer4Scores: &judge.Scores{Hallucination: floatPtr(0.6)},
		}, sink, 1, 60, zap.NewNop())

		pool.process(ctx, bothLayersJob(), zap.NewNop())

		require.Len(t, sink.written, 2)
		for _, event := range sink.written {
			assert.Equal(t, eventmodel.Error, event.EventType)
			attrs, err := eventmodel.DecodeAttributes(event)
			require.NoError(t, err)
			require.NotNil(t, attrs.Signal)
		}
		assert.Equal(t, 1, jq.acked)
	})

	t.Run("Partial layer failure still persists the surviving layer's signals", func(t *testing.T) {
		jq := &fakeQueue{}
		sink := &fakeSink{}
		pool := NewPool(jq, &fakeJudge{
			layer3Err:    errors.New("judge unreachable"),
			layer4Scores: &judge.Scores{Hallucination: floatPtr(0.6)},
		}, sink, 1, 60, zap.NewNop())

		pool.process(ctx, bothLayersJob(), zap.NewNop())

		require.Len(t, sink.written, 1)
		assert.Equal(t, 1, jq.acked)
		assert.Equal(t, 0, jq.nacked)
	})

	t.Run("All layers failing nacks the job for broker retry", func(t *testing.T) {
		jq := &fakeQueue{}
		sink := &fakeSink{}
		pool := NewPool(jq, &fakeJudge{
			layer3Err: errors.New("judge unreachable"),
			layer4Err: errors.New("judge unreachable"),
		}, sink, 1, 60, zap.NewNop())

		pool.process(ctx, bothLayersJob(), zap.NewNop())

		assert.Empty(t, sink.written)
		assert.Equal(t, 0, jq.acked)
		assert.Equal(t, 1, jq.nacked)
	})

	t.Run("Persistence failure nacks the job", func(t *testing.T) {
		jq := &fakeQueue{}
		sink := &fakeSink{err: errors.New("store unavailable")}
		pool := NewPool(jq, &fakeJudge{
			layer3Scores: &judge.Scores{EmbeddingDrift: floatPtr(0.8)},
			layer4Scores: &judge.Scores{},
		}, sink, 1, 60, zap.NewNop())

		pool.process(ctx, bothLayersJob(), zap.NewNop())

		assert.Equal(t, 0, jq.acked)
		assert.Equal(t, 1, jq.nacked)
	})
}

func TestSignalsFromScores(t *testing.T) {
	job := bothLayersJob()

	t.Run("Layer4 low faithfulness maps to severity tiers", func(t *testing.T) {
		high := signalsFromScores(job, analysismodel.Layer4, &judge.Scores{Faithfulness: floatPtr(0.4)})
		require.Len(t, high, 1)
		assert.Equal(t, "low_faithfulness", high[0].Name)
		assert.Equal(t, "high", string(high[0].Severity))

		medium := signalsFromScores(job, analysismodel.Layer4, &judge.Scores{Faithfulness: floatPtr(0.6)})
		require.Len(t, medium, 1)
		assert.Equal(t, "medium", string(medium[0].Severity))

		healthy := signalsFromScores(job, analysismodel.Layer4, &judge.Scores{Faithfulness: floatPtr(0.9)})
		assert.Empty(t, healthy)
	})

	t.Run("Layer3 scores alarm above their cutoffs", func(t *testing.T) {
		signals := signalsFromScores(job, analysismodel.Layer3, &judge.Scores{
			EmbeddingDrift: floatPtr(0.7),
			DuplicateScore: floatPtr(0.95),
			ClusterOutlier: floatPtr(0.5),
		})
		require.Len(t, signals, 2)
		names := []string{signals[0].Name, signals[1].Name}
		assert.Contains(t, names, "embedding_drift")
		assert.Contains(t, names, "duplicate_output")
	})

	t.Run("Signals inherit the job's correlation identity", func(t *testing.T) {
		identified := bothLayersJob()
		identified.ConversationID = "conv-1"
		identified.ParentSpanID = "parent-1"
		signals := signalsFromScores(identified, analysismodel.Layer4, &judge.Scores{Hallucination: floatPtr(0.9)})
		require.Len(t, signals, 1)
		assert.Equal(t, "conv-1", signals[0].ConversationID)
		assert.Equal(t, "parent-1", signals[0].ParentSpanID)
		assert.Equal(t, "layer4", signals[0].Metadata["layer"])
	})
}
