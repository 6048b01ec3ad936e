package schedule

import (
	"context"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
)

// RangeCache stores fetched ranges under a generation counter. Get reports
// the generation it read; Set must drop the write when that generation is no
// longer current, so a fetch that raced an invalidation never repopulates
// the cache with stale rows. Invalidate starts a new generation.
type RangeCache interface {
	Get(ctx context.Context, start, end civil.Date) (schedules []Schedule, gen int64, ok bool, err error)
	Set(ctx context.Context, gen int64, start, end civil.Date, schedules []Schedule) error
	Invalidate(ctx context.Context) error
}

// CachedStore is a read-through cache in front of a Store. Every successful
// mutation invalidates all ranges, so the fetch that follows a mutation
// always reaches the store.
type CachedStore struct {
	next   Store
	cache  RangeCache
	logger *zap.Logger
}

// NewCachedStore wraps next with cache.
func NewCachedStore(next Store, cache RangeCache, logger *zap.Logger) *CachedStore {
	return &CachedStore{next: next, cache: cache, logger: logger}
}

func (s *CachedStore) FetchRange(ctx context.Context, start, end civil.Date) ([]Schedule, error) {
	cached, gen, ok, cacheErr := s.cache.Get(ctx, start, end)
	if cacheErr != nil {
		s.logger.Warn("range cache read failed", zap.Error(cacheErr))
	} else if ok {
		return cached, nil
	}

	schedules, err := s.next.FetchRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if cacheErr == nil {
		if err := s.cache.Set(ctx, gen, start, end, schedules); err != nil {
			s.logger.Warn("range cache write failed", zap.Error(err))
		}
	}
	return schedules, nil
}

func (s *CachedStore) Create(ctx context.Context, recipeID int64, req CreateRequest) (*Schedule, error) {
	created, err := s.next.Create(ctx, recipeID, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return created, nil
}

func (s *CachedStore) Update(ctx context.Context, id int64, req UpdateRequest) (*Schedule, error) {
	updated, err := s.next.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *CachedStore) Delete(ctx context.Context, id int64) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Refresh drops every cached range; used by explicit retries.
func (s *CachedStore) Refresh(ctx context.Context) {
	s.invalidate(ctx)
}

func (s *CachedStore) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("range cache invalidation failed", zap.Error(err))
	}
}
