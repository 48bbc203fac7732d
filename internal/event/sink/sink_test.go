package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/elasticsearch/client"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAnalyticsClient struct {
	client.AnalyticsClient
	metaInfo []client.MetaMap
	docInfo  []client.DocumentMap
	index    string
	err      error
}

func (f *fakeAnalyticsClient) BulkIndex(
	_ context.Context,
	metaInfo []client.MetaMap,
	documentInfo []client.DocumentMap,
	index string,
) error {
	if f.err != nil {
		return f.err
	}
	f.metaInfo = append(f.metaInfo, metaInfo...)
	f.docInfo = append(f.docInfo, documentInfo...)
	f.index = index
	return nil
}

type failingMirror struct{}

func (failingMirror) WriteEvents(_ context.Context, _ []model.CanonicalEvent) error {
	return errors.New("mirror down")
}

func (failingMirror) GetTraceEvents(_ context.Context, _ string, _ string) ([]model.CanonicalEvent, error) {
	return nil, errors.New("mirror down")
}

func (failingMirror) ListTraceIDs(_ context.Context, _ string, _ time.Time, _ time.Time, _ int) ([]string, error) {
	return nil, errors.New("mirror down")
}

func testEvent() model.CanonicalEvent {
	return model.CanonicalEvent{
		TenantID:  "tenant-1",
		TraceID:   "trace-1",
		SpanID:    "span-1",
		Timestamp: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
		EventType: model.LLMCall,
	}
}

func metaDocumentID(t *testing.T, meta client.MetaMap) interface{} {
	t.Helper()
	index, ok := meta["index"].(map[string]interface{})
	require.True(t, ok)
	return index["_id"]
}

func TestAnalyticalEventSink_WriteEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("Derives the document id from the natural key", func(t *testing.T) {
		ac := &fakeAnalyticsClient{}
		s := NewAnalyticalEventSink(ac, nil, zap.NewNop())

		require.NoError(t, s.WriteEvents(ctx, []model.CanonicalEvent{testEvent()}))

		require.Len(t, ac.metaInfo, 1)
		event := testEvent()
		assert.Equal(t, documentID(event), metaDocumentID(t, ac.metaInfo[0]))
		assert.Equal(t, "canonical_event_index", ac.index)
	})

	t.Run("Replayed batches produce identical document ids", func(t *testing.T) {
		ac := &fakeAnalyticsClient{}
		s := NewAnalyticalEventSink(ac, nil, zap.NewNop())

		require.NoError(t, s.WriteEvents(ctx, []model.CanonicalEvent{testEvent()}))
		require.NoError(t, s.WriteEvents(ctx, []model.CanonicalEvent{testEvent()}))

		require.Len(t, ac.metaInfo, 2)
		assert.Equal(t, metaDocumentID(t, ac.metaInfo[0]), metaDocumentID(t, ac.metaInfo[1]))
	})

	t.Run("Document id is stripped from the indexed body", func(t *testing.T) {
		ac := &fakeAnalyticsClient{}
		s := NewAnalyticalEventSink(ac, nil, zap.NewNop())

		require.NoError(t, s.WriteEvents(ctx, []model.CanonicalEvent{testEvent()}))

		require.Len(t, ac.docInfo, 1)
		_, hasID := ac.docInfo[0]["_id"]
		assert.False(t, hasID)
		assert.Equal(t, "trace-1", ac.docInfo[0]["trace_id"])
	})

	t.Run("Empty batches are a no-op", func(t *testing.T) {
		ac := &fakeAnalyticsClient{}
		s := NewAnalyticalEventSink(ac, nil, zap.NewNop())
		require.NoError(t, s.WriteEvents(ctx, nil))
		assert.Empty(t, ac.metaInfo)
	})

	t.Run("Analytical store failure is surfaced", func(t *testing.T) {
		ac := &fakeAnalyticsClient{err: errors.New("cluster red")}
		s := NewAnalyticalEventSink(ac, nil, zap.NewNop())
		err := s.WriteEvents(ctx, []model.CanonicalEvent{testEvent()})
		assert.Error(t, err)
	})

	t.Run("Mirror failure is logged, not surfaced", func(t *testing.T) {
		ac := &fakeAnalyticsClient{}
		s := NewAnalyticalEventSink(ac, failingMirror{}, zap.NewNop())
		err := s.WriteEvents(ctx, []model.CanonicalEvent{testEvent()})
		assert.NoError(t, err)
	})
}
