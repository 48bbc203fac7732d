package cache

import (
	"testing"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/trace/model"
	"github.com/dgraph-io/ristretto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *RistrettoTraceCache {
	t.Helper()
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
	require.NoError(t, err)
	return NewRistrettoTraceCache(cache)
}

func TestRistrettoTraceCache(t *testing.T) {
	t.Run("Returns ErrKeyNotFound for an absent key", func(t *testing.T) {
		c := newTestCache(t)
		_, err := c.Get("tenant-1:trace-1")
		assert.Equal(t, ErrKeyNotFound, err)
	})

	t.Run("Returns a stored trace detail", func(t *testing.T) {
		c := newTestCache(t)
		detail := &model.TraceDetail{
			Summary: model.TraceSummary{TraceID: "trace-1"},
		}
		require.NoError(t, c.Put("tenant-1:trace-1", detail))
		// Ristretto admits writes asynchronously.
		assert.Eventually(t, func() bool {
			got, err := c.Get("tenant-1:trace-1")
			return err == nil && got.Summary.TraceID == "trace-1"
		}, time.Second, 10*time.Millisecond)
	})
}
