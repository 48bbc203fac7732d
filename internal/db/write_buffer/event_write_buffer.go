package write_buffer

import (
	"context"
	"sync"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/sink"
	"go.uber.org/zap"
)

const WriteQueueSize = 30
const flushTimeOut = 10 * time.Second

// EventWriteBuffer accumulates canonical events from high-volume ingestion
// paths and flushes them through the sink once the queue grows past
// WriteQueueSize. Flushing through the sink rather than the analytical client
// directly keeps the natural-key document ids and the relational mirror on
// the buffered path too.
type EventWriteBuffer interface {
	WriteToBuffer(events []model.CanonicalEvent)
	Flush() error
}

type EventWriteBufferImpl struct {
	writeQueue []model.CanonicalEvent
	eventSink  sink.EventSink
	logger     *zap.Logger
	mu         sync.Mutex
}

func NewEventWriteBufferImpl(
	eventSink sink.EventSink,
	logger *zap.Logger,
) *EventWriteBufferImpl {
	return &EventWriteBufferImpl{
		writeQueue: []model.CanonicalEvent{},
		eventSink:  eventSink,
		logger:     logger,
	}
}

func (wb *EventWriteBufferImpl) WriteToBuffer(events []model.CanonicalEvent) {
	wb.mu.Lock()
	wb.writeQueue = append(wb.writeQueue, events...)
	queueLength := len(wb.writeQueue)
	wb.mu.Unlock()
	if queueLength > WriteQueueSize {
		go func() {
			err := wb.Flush()
			if err != nil {
				wb.logger.Error("Failed to flush event write buffer", zap.Error(err))
			}
		}()
	}
}

// Flush drains the queue synchronously. Called on the overflow path and at
// shutdown.
func (wb *EventWriteBufferImpl) Flush() error {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	if len(wb.writeQueue) == 0 {
		return nil
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeOut)
	defer cancel()
	err := wb.eventSink.WriteEvents(flushCtx, wb.writeQueue)
	wb.writeQueue = []model.CanonicalEvent{}
	return err
}
