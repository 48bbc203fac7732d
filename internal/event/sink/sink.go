package sink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/elasticsearch/bootstrapper"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/elasticsearch/client"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/relational"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"go.uber.org/zap"
)

// EventSink forwards batches of canonical events to the analytical store.
// Detected signals are re-ingested through the same sink so they ride the
// same storage and query path as trace data.
type EventSink interface {
	WriteEvents(ctx context.Context, events []model.CanonicalEvent) error
}

type AnalyticalEventSink struct {
	ac     client.AnalyticsClient
	mirror relational.EventStore
	logger *zap.Logger
}

// NewAnalyticalEventSink creates a sink writing to the analytical store with
// an optional relational mirror. Pass a nil mirror to disable mirroring.
func NewAnalyticalEventSink(
	ac client.AnalyticsClient,
	mirror relational.EventStore,
	logger *zap.Logger,
) *AnalyticalEventSink {
	return &AnalyticalEventSink{
		ac:     ac,
		mirror: mirror,
		logger: logger,
	}
}

// esEvent is the analytical store document shape. The document id is derived
// from the event's natural key so replayed batches overwrite instead of
// duplicating.
type esEvent struct {
	ID string `json:"_id"`
	model.CanonicalEvent
}

func (s *AnalyticalEventSink) WriteEvents(ctx context.Context, events []model.CanonicalEvent) error {
	if len(events) == 0 {
		return nil
	}

	documents := make([]esEvent, len(events))
	for i, event := range events {
		documents[i] = esEvent{
			ID:             documentID(event),
			CanonicalEvent: event,
		}
	}
	metaMap, dataMap, err := client.ToMetaAndDataMap(documents)
	if err != nil {
		return fmt.Errorf("error converting events to meta and data map: %w", err)
	}
	if err := s.ac.BulkIndex(ctx, metaMap, dataMap, bootstrapper.EventIndexName); err != nil {
		return fmt.Errorf("error bulk indexing events: %w", err)
	}

	if s.mirror != nil {
		if err := s.mirror.WriteEvents(ctx, events); err != nil {
			// Mirror failures are logged, not surfaced: the analytical store
			// is the source of truth and the mirror only backs the fallback
			// read path.
			s.logger.Error("Failed to mirror events to relational store", zap.Error(err))
		}
	}
	return nil
}

func documentID(event model.CanonicalEvent) string {
	hash := sha256.Sum256([]byte(event.NaturalKey()))
	return hex.EncodeToString(hash[:])
}
