package relational

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRecord mirrors canonical events into the relational store, used as an
// operational cache and read fallback when the analytical store is
// unavailable. The natural-key unique index makes mirrored writes idempotent.
type EventRecord struct {
	ID             uint      `gorm:"primaryKey"`
	NaturalKey     string    `gorm:"uniqueIndex;size:512"`
	TenantID       string    `gorm:"index:idx_tenant_trace;size:128"`
	ProjectID      string    `gorm:"size:128"`
	Environment    string    `gorm:"size:64"`
	TraceID        string    `gorm:"index:idx_tenant_trace;size:128"`
	SpanID         string    `gorm:"size:128"`
	ParentSpanID   string    `gorm:"size:128"`
	Timestamp      time.Time `gorm:"index"`
	EventType      string    `gorm:"size:32"`
	ConversationID string    `gorm:"size:128"`
	SessionID      string    `gorm:"size:128"`
	UserID         string    `gorm:"size:128"`
	AgentName      string    `gorm:"size:128"`
	Version        string    `gorm:"size:64"`
	Route          string    `gorm:"size:256"`
	Attributes     string    `gorm:"type:text"`
}

func (EventRecord) TableName() string {
	return "canonical_events"
}

// ErrMissingTenantFilter rejects any read that does not scope by tenant.
var ErrMissingTenantFilter = errors.New("query is missing a tenant_id filter")

type EventStore interface {
	WriteEvents(ctx context.Context, events []model.CanonicalEvent) error
	GetTraceEvents(ctx context.Context, tenantID string, traceID string) ([]model.CanonicalEvent, error)
	ListTraceIDs(ctx context.Context, tenantID string, start time.Time, end time.Time, limit int) ([]string, error)
}

type GormEventStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewGormEventStore(db *gorm.DB, logger *zap.Logger) (*GormEventStore, error) {
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate canonical_events table: %w", err)
	}
	return &GormEventStore{db: db, logger: logger}, nil
}

func (s *GormEventStore) WriteEvents(ctx context.Context, events []model.CanonicalEvent) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]EventRecord, len(events))
	for i, event := range events {
		records[i] = toRecord(event)
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "natural_key"}},
			DoNothing: true,
		}).
		Create(&records)
	if result.Error != nil {
		return fmt.Errorf("failed to mirror events to relational store: %w", result.Error)
	}
	return nil
}

func (s *GormEventStore) GetTraceEvents(
	ctx context.Context,
	tenantID string,
	traceID string,
) ([]model.CanonicalEvent, error) {
	if tenantID == "" {
		return nil, ErrMissingTenantFilter
	}
	var records []EventRecord
	result := s.db.WithContext(ctx).
		Where("tenant_id = ? AND trace_id = ?", tenantID, traceID).
		Order("timestamp asc").
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to read trace events from relational store: %w", result.Error)
	}
	events := make([]model.CanonicalEvent, len(records))
	for i, record := range records {
		events[i] = fromRecord(record)
	}
	return events, nil
}

func (s *GormEventStore) ListTraceIDs(
	ctx context.Context,
	tenantID string,
	start time.Time,
	end time.Time,
	limit int,
) ([]string, error) {
	if tenantID == "" {
		return nil, ErrMissingTenantFilter
	}
	var traceIDs []string
	result := s.db.WithContext(ctx).
		Model(&EventRecord{}).
		Distinct("trace_id").
		Where("tenant_id = ? AND timestamp >= ? AND timestamp <= ?", tenantID, start, end).
		Limit(limit).
		Pluck("trace_id", &traceIDs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list traces from relational store: %w", result.Error)
	}
	return traceIDs, nil
}

func toRecord(event model.CanonicalEvent) EventRecord {
	return EventRecord{
		NaturalKey:     event.NaturalKey(),
		TenantID:       event.TenantID,
		ProjectID:      event.ProjectID,
		Environment:    event.Environment,
		TraceID:        event.TraceID,
		SpanID:         event.SpanID,
		ParentSpanID:   event.ParentSpanID,
		Timestamp:      event.Timestamp.UTC(),
		EventType:      string(event.EventType),
		ConversationID: event.ConversationID,
		SessionID:      event.SessionID,
		UserID:         event.UserID,
		AgentName:      event.AgentName,
		Version:        event.Version,
		Route:          event.Route,
		Attributes:     event.AttributesJSON,
	}
}

func fromRecord(record EventRecord) model.CanonicalEvent {
	return model.CanonicalEvent{
		TenantID:       record.TenantID,
		ProjectID:      record.ProjectID,
		Environment:    record.Environment,
		TraceID:        record.TraceID,
		SpanID:         record.SpanID,
		ParentSpanID:   record.ParentSpanID,
		Timestamp:      record.Timestamp.UTC(),
		EventType:      model.EventType(record.EventType),
		ConversationID: record.ConversationID,
		SessionID:      record.SessionID,
		UserID:         record.UserID,
		AgentName:      record.AgentName,
		Version:        record.Version,
		Route:          record.Route,
		AttributesJSON: record.Attributes,
	}
}
