package client

import (
	"context"

	"github.com/elastic/go-elasticsearch/v8"
)

const SearchResultSize = 10

type RefreshRate string

const (
	// Wait for the changes made by the request to be made visible by a refresh before replying.
	Wait RefreshRate = "wait_for"
	// Immediate Refresh the relevant primary and replica shards immediately after the operation occurs.
	Immediate RefreshRate = "true"
	// Async Take no refresh related actions. Changes become visible some time after the request returns.
	Async RefreshRate = "false"
)

// AnalyticsClient is the boundary to the append-only analytical event store.
type AnalyticsClient interface {
	// BulkIndex indexes (inserts) multiple documents in the same index.
	// Passing a document id in the meta map makes the write idempotent.
	BulkIndex(ctx context.Context, metaInfo []MetaMap, documentInfo []DocumentMap, index string) error
	// Index indexes (inserts) a single document in the index.
	Index(ctx context.Context, metaInfo MetaMap, documentInfo DocumentMap, index string) error
	// Search searches for documents in the index.
	// queryResultSize is the number of results to return, nil for default.
	Search(ctx context.Context, query string, indices []string, queryResultSize *int) ([]map[string]interface{}, error)
	// Count counts the number of documents in the index matching the query.
	Count(ctx context.Context, query string, indices []string) (int64, error)
}

type AnalyticsClientImpl struct {
	es          *elasticsearch.Client
	refreshRate string
}

func NewAnalyticsClientImpl(es *elasticsearch.Client, refreshRate RefreshRate) *AnalyticsClientImpl {
	return &AnalyticsClientImpl{es: es, refreshRate: string(refreshRate)}
}
