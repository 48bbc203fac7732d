package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/elasticsearch/bootstrapper"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/elasticsearch/client"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/relational"
	eventmodel "github.com/NikushaDevashvili/observa-api-sub002/internal/event/model"
	tracecache "github.com/NikushaDevashvili/observa-api-sub002/internal/trace/cache"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/trace/model"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/trace/reconstructor"
	"go.uber.org/zap"
)

const queryTimeout = 10 * time.Second
const querySize = 10000
const listLimit = 100

// TraceQueryService is the read path: fetch all events for one trace and
// reconstruct the span tree.
type TraceQueryService interface {
	GetTraceDetail(ctx context.Context, tenantID string, traceID string) (*model.TraceDetail, error)
	ListTraceIDs(ctx context.Context, tenantID string, start *time.Time, end *time.Time) ([]string, error)
}

type TraceQueryServiceImpl struct {
	ac            client.AnalyticsClient
	fallback      relational.EventStore
	detailCache   tracecache.TraceDetailCache
	reconstructor *reconstructor.ReconstructorService
	logger        *zap.Logger
}

// NewTraceQueryService wires the dual-path read: the analytical store is
// primary, the relational mirror is the fallback. fallback and detailCache
// may be nil.
func NewTraceQueryService(
	ac client.AnalyticsClient,
	fallback relational.EventStore,
	detailCache tracecache.TraceDetailCache,
	rs *reconstructor.ReconstructorService,
	logger *zap.Logger,
) *TraceQueryServiceImpl {
	return &TraceQueryServiceImpl{
		ac:            ac,
		fallback:      fallback,
		detailCache:   detailCache,
		reconstructor: rs,
		logger:        logger,
	}
}

func (s *TraceQueryServiceImpl) GetTraceDetail(
	ctx context.Context,
	tenantID string,
	traceID string,
) (*model.TraceDetail, error) {
	cacheKey := fmt.Sprintf("%s:%s", tenantID, traceID)
	if s.detailCache != nil {
		if detail, err := s.detailCache.Get(cacheKey); err == nil {
			return detail, nil
		}
	}

	events, err := s.fetchTraceEvents(ctx, tenantID, traceID)
	if err != nil {
		return nil, err
	}
	detail, err := s.reconstructor.Reconstruct(events, traceID)
	if err != nil {
		return nil, err
	}
	if s.detailCache != nil {
		if err := s.detailCache.Put(cacheKey, detail); err != nil {
			s.logger.Warn("Failed to cache trace detail", zap.Error(err))
		}
	}
	return detail, nil
}

// fetchTraceEvents reads the analytical store first and falls back to the
// relational mirror only when the primary errors or returns zero rows. The
// paths are sequential, never raced, to avoid doubling load on both backends
// under normal operation.
func (s *TraceQueryServiceImpl) fetchTraceEvents(
	ctx context.Context,
	tenantID string,
	traceID string,
) ([]eventmodel.CanonicalEvent, error) {
	events, primaryErr := s.fetchFromPrimary(ctx, tenantID, traceID)
	if primaryErr == nil && len(events) > 0 {
		return events, nil
	}
	if errors.Is(primaryErr, ErrMissingTenantFilter) {
		// A missing tenant is a caller bug, not a store outage; falling back
		// would just repeat it.
		return nil, primaryErr
	}
	if primaryErr != nil {
		s.logger.Error(
			"Analytical store read failed, trying relational fallback",
			zap.String("trace_id", traceID),
			zap.Error(primaryErr),
		)
	}
	if s.fallback == nil {
		return events, nil
	}
	fallbackEvents, fallbackErr := s.fallback.GetTraceEvents(ctx, tenantID, traceID)
	if fallbackErr != nil {
		s.logger.Error(
			"Relational fallback read failed",
			zap.String("trace_id", traceID),
			zap.Error(fallbackErr),
		)
		return events, nil
	}
	return fallbackEvents, nil
}

func (s *TraceQueryServiceImpl) fetchFromPrimary(
	ctx context.Context,
	tenantID string,
	traceID string,
) ([]eventmodel.CanonicalEvent, error) {
	query, err := buildTraceEventsQuery(tenantID, traceID)
	if err != nil {
		return nil, err
	}
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("error marshalling trace events query: %w", err)
	}
	localQuerySize := querySize
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := s.ac.Search(
		queryCtx,
		string(queryJSON),
		[]string{bootstrapper.EventIndexName},
		&localQuerySize,
	)
	if err != nil {
		return nil, err
	}
	return convertFromDocuments(res)
}

func (s *TraceQueryServiceImpl) ListTraceIDs(
	ctx context.Context,
	tenantID string,
	start *time.Time,
	end *time.Time,
) ([]string, error) {
	query, err := buildTraceListQuery(tenantID, start, end)
	if err != nil {
		return nil, err
	}
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("error marshalling trace list query: %w", err)
	}
	localQuerySize := querySize
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	res, err := s.ac.Search(
		queryCtx,
		string(queryJSON),
		[]string{bootstrapper.EventIndexName},
		&localQuerySize,
	)
	if err == nil && len(res) > 0 {
		return distinctTraceIDs(res), nil
	}
	if err != nil {
		s.logger.Error("Analytical store list failed, trying relational fallback", zap.Error(err))
	}
	if s.fallback == nil {
		return nil, nil
	}
	fallbackStart, fallbackEnd := listWindow(start, end)
	return s.fallback.ListTraceIDs(ctx, tenantID, fallbackStart, fallbackEnd, listLimit)
}

func distinctTraceIDs(res []map[string]interface{}) []string {
	seen := make(map[string]bool)
	var traceIDs []string
	for _, hit := range res {
		traceID, ok := hit["trace_id"].(string)
		if !ok || seen[traceID] {
			continue
		}
		seen[traceID] = true
		traceIDs = append(traceIDs, traceID)
		if len(traceIDs) >= listLimit {
			break
		}
	}
	return traceIDs
}

func listWindow(start *time.Time, end *time.Time) (time.Time, time.Time) {
	now := time.Now().UTC()
	windowStart := now.Add(-24 * time.Hour)
	windowEnd := now
	if start != nil {
		windowStart = *start
	}
	if end != nil {
		windowEnd = *end
	}
	return windowStart, windowEnd
}
