package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/analysis/queue"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeJobQueue struct {
	queue.JobQueue
	stats queue.Stats
}

func (f *fakeJobQueue) Stats(_ context.Context) (queue.Stats, error) {
	return f.stats, nil
}

func TestQueueStatsHandler(t *testing.T) {
	t.Run("Reports queue depths and refreshes the depth gauges", func(t *testing.T) {
		jq := &fakeJobQueue{stats: queue.Stats{Waiting: 3, Active: 1, Completed: 7, Failed: 2}}
		recorder := httptest.NewRecorder()

		QueueStatsHandler(context.Background(), jq, zap.NewNop()).ServeHTTP(
			recorder,
			httptest.NewRequest(http.MethodGet, "/v1/analysis/queue/stats", nil),
		)

		require.Equal(t, http.StatusOK, recorder.Code)
		var response QueueStatsResponseDTO
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, int64(3), response.Waiting)
		assert.Equal(t, int64(1), response.Active)
		assert.Equal(t, int64(7), response.Completed)
		assert.Equal(t, int64(2), response.Failed)
		assert.Equal(t, 3.0, testutil.ToFloat64(metrics.QueueDepth.WithLabelValues("waiting")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueueDepth.WithLabelValues("active")))
	})
}
