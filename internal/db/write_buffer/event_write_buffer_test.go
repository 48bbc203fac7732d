package write_buffer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingSink struct {
	mu      sync.Mutex
	written []model.CanonicalEvent
}

func (s *capturingSink) WriteEvents(_ context.Context, events []model.CanonicalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, events...)
	return nil
}

func (s *capturingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}

func makeEvents(n int) []model.CanonicalEvent {
	events := make([]model.CanonicalEvent, n)
	for i := range events {
		events[i] = model.CanonicalEvent{
			TenantID:  "tenant-1",
			TraceID:   "trace-1",
			SpanID:    "span-1",
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
			EventType: model.TraceStart,
		}
	}
	return events
}

func TestEventWriteBufferImpl(t *testing.T) {
	t.Run("Holds small batches until flushed", func(t *testing.T) {
		sink := &capturingSink{}
		buffer := NewEventWriteBufferImpl(sink, zap.NewNop())

		buffer.WriteToBuffer(makeEvents(3))
		assert.Equal(t, 0, sink.count())

		require.NoError(t, buffer.Flush())
		assert.Equal(t, 3, sink.count())
	})

	t.Run("Flush drains the queue", func(t *testing.T) {
		sink := &capturingSink{}
		buffer := NewEventWriteBufferImpl(sink, zap.NewNop())

		buffer.WriteToBuffer(makeEvents(2))
		require.NoError(t, buffer.Flush())
		require.NoError(t, buffer.Flush())
		assert.Equal(t, 2, sink.count())
	})

	t.Run("Overflow triggers a background flush", func(t *testing.T) {
		sink := &capturingSink{}
		buffer := NewEventWriteBufferImpl(sink, zap.NewNop())

		buffer.WriteToBuffer(makeEvents(WriteQueueSize + 1))

		assert.Eventually(t, func() bool {
			return sink.count() == WriteQueueSize+1
		}, time.Second, 10*time.Millisecond)
	})
}
