package cache

import (
	"errors"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/trace/model"
	"github.com/dgraph-io/ristretto"
)

var ErrKeyNotFound = errors.New("key not found within the cache")

// Reconstruction is pure, so a short TTL only bounds staleness for traces
// that are still receiving events.
const detailTTL = 30 * time.Second

// TraceDetailCache memoizes reconstructed trace trees between reads.
type TraceDetailCache interface {
	Get(key string) (*model.TraceDetail, error)
	Put(key string, value *model.TraceDetail) error
}

type RistrettoTraceCache struct {
	cache *ristretto.Cache
}

func NewRistrettoTraceCache(cache *ristretto.Cache) *RistrettoTraceCache {
	return &RistrettoTraceCache{cache: cache}
}

func (c *RistrettoTraceCache) Get(key string) (*model.TraceDetail, error) {
	value, found := c.cache.Get(key)
	if !found {
		return nil, ErrKeyNotFound
	}
	typedValue, ok := value.(*model.TraceDetail)
	if !ok {
		return nil, errors.New("value not of type *model.TraceDetail returned from cache when getting")
	}
	return typedValue, nil
}

func (c *RistrettoTraceCache) Put(key string, value *model.TraceDetail) error {
	cost := int64(len(value.AllSpans) + 1)
	c.cache.SetWithTTL(key, value, cost, detailTTL)
	return nil
}
