package redis

import (
	"context"
	"errors"
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/application/query"
)

// ProgressCache stores progress cards as JSON. It implements
// query.ProgressCache and the attempt handler's invalidator.
type ProgressCache struct {
	cache *Cache
	ttl   time.Duration
}

func NewProgressCache(cache *Cache, ttl time.Duration) *ProgressCache {
	if ttl <= 0 {
		ttl = TTLProgressCache
	}
	return &ProgressCache{cache: cache, ttl: ttl}
}

// Get reports a miss as ok=false. An undecodable entry is also a miss so a
// schema change never breaks reads.
func (p *ProgressCache) Get(ctx context.Context, studentID string) (*query.ProgressView, bool, error) {
	var view query.ProgressView
	err := p.cache.Get(ctx, ProgressKey(studentID), &view)
	switch {
	case err == nil:
		return &view, true, nil
	case errors.Is(err, ErrCacheMiss), errors.Is(err, ErrCacheSerialization):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

func (p *ProgressCache) Set(ctx context.Context, view *query.ProgressView) error {
	if view == nil {
		return ErrCacheNilValue
	}
	return p.cache.Set(ctx, ProgressKey(view.StudentID), view, p.ttl)
}

func (p *ProgressCache) Invalidate(ctx context.Context, studentID string) error {
	return p.cache.Delete(ctx, ProgressKey(studentID))
}
