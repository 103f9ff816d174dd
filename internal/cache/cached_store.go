package cache

import (
	"context"

	"github.com/offloadops/offload/internal/domain"
	"github.com/rs/zerolog/log"
)

// DurableStateStore is the single source of truth CachedStateStore fronts.
type DurableStateStore interface {
	Load(ctx context.Context, workflow string) (*domain.ProcessorState, error)
	Save(ctx context.Context, state *domain.ProcessorState) error
	Clear(ctx context.Context, workflow string) error
}

// CachedStateStore is a read-through cache over the durable store. Writes go
// to the durable store first; the cache is refreshed best-effort, so a cache
// outage degrades to durable reads instead of failing state operations.
type CachedStateStore struct {
	inner DurableStateStore
	cache StateCache
}

func NewCachedStateStore(inner DurableStateStore, cache StateCache) *CachedStateStore {
	if cache == nil {
		cache = NewNoopStateCache()
	}
	return &CachedStateStore{inner: inner, cache: cache}
}

func (s *CachedStateStore) Load(ctx context.Context, workflow string) (*domain.ProcessorState, error) {
	state, ok, err := s.cache.Get(ctx, workflow)
	if err != nil {
		log.Warn().Err(err).Str("workflow", workflow).Msg("state cache read failed, falling back to durable store")
	}
	if ok {
		return state, nil
	}

	state, err = s.inner.Load(ctx, workflow)
	if err != nil {
		return nil, err
	}
	if state != nil {
		// Read-repair: re-seed the cache from the durable copy.
		if err := s.cache.Set(ctx, state); err != nil {
			log.Warn().Err(err).Str("workflow", workflow).Msg("state cache re-seed failed")
		}
	}
	return state, nil
}

func (s *CachedStateStore) Save(ctx context.Context, state *domain.ProcessorState) error {
	if err := s.inner.Save(ctx, state); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, state); err != nil {
		log.Warn().Err(err).Str("workflow", state.Workflow).Msg("state cache refresh failed")
	}
	return nil
}

func (s *CachedStateStore) Clear(ctx context.Context, workflow string) error {
	if err := s.inner.Clear(ctx, workflow); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, workflow); err != nil {
		log.Warn().Err(err).Str("workflow", workflow).Msg("state cache invalidation failed")
	}
	return nil
}
