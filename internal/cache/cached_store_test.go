package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/offloadops/offload/internal/domain"
)

type memDurableStore struct {
	states map[string]*domain.ProcessorState
	loads  int
}

func newMemDurableStore() *memDurableStore {
	return &memDurableStore{states: make(map[string]*domain.ProcessorState)}
}

func (s *memDurableStore) Load(_ context.Context, workflow string) (*domain.ProcessorState, error) {
	s.loads++
	state, ok := s.states[workflow]
	if !ok {
		return nil, nil
	}
	clone := *state
	return &clone, nil
}

func (s *memDurableStore) Save(_ context.Context, state *domain.ProcessorState) error {
	clone := *state
	s.states[state.Workflow] = &clone
	return nil
}

func (s *memDurableStore) Clear(_ context.Context, workflow string) error {
	delete(s.states, workflow)
	return nil
}

type memStateCache struct {
	states map[string]*domain.ProcessorState
	err    error
}

func newMemStateCache() *memStateCache {
	return &memStateCache{states: make(map[string]*domain.ProcessorState)}
}

func (c *memStateCache) Get(_ context.Context, workflow string) (*domain.ProcessorState, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	state, ok := c.states[workflow]
	return state, ok, nil
}

func (c *memStateCache) Set(_ context.Context, state *domain.ProcessorState) error {
	if c.err != nil {
		return c.err
	}
	c.states[state.Workflow] = state
	return nil
}

func (c *memStateCache) Invalidate(_ context.Context, workflow string) error {
	if c.err != nil {
		return c.err
	}
	delete(c.states, workflow)
	return nil
}

func TestCachedStoreReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := newMemDurableStore()
	sc := newMemStateCache()
	store := NewCachedStateStore(inner, sc)

	state := &domain.ProcessorState{Workflow: "migration", Status: domain.StatusRunning, Processed: 3}
	if err := inner.Save(ctx, state); err != nil {
		t.Fatal(err)
	}

	// First load misses the cache, hits the durable store and repairs.
	got, err := store.Load(ctx, "migration")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.Processed != 3 {
		t.Fatalf("got = %+v", got)
	}
	if inner.loads != 1 {
		t.Fatalf("durable loads = %d, want 1", inner.loads)
	}

	// Second load is served from the cache.
	if _, err := store.Load(ctx, "migration"); err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if inner.loads != 1 {
		t.Fatalf("durable loads = %d, want cache hit", inner.loads)
	}
}

func TestCachedStoreWritesDurableFirst(t *testing.T) {
	ctx := context.Background()
	inner := newMemDurableStore()
	sc := newMemStateCache()
	store := NewCachedStateStore(inner, sc)

	state := &domain.ProcessorState{Workflow: "migration", Status: domain.StatusRunning}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	if inner.states["migration"] == nil {
		t.Fatal("durable store must hold the state")
	}
	if sc.states["migration"] == nil {
		t.Fatal("cache must be refreshed")
	}

	if err := store.Clear(ctx, "migration"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if inner.states["migration"] != nil || sc.states["migration"] != nil {
		t.Fatal("clear must remove both copies")
	}
}

func TestCachedStoreSurvivesCacheOutage(t *testing.T) {
	ctx := context.Background()
	inner := newMemDurableStore()
	sc := newMemStateCache()
	sc.err = errors.New("redis down")
	store := NewCachedStateStore(inner, sc)

	state := &domain.ProcessorState{Workflow: "migration", Status: domain.StatusRunning}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save during cache outage: %v", err)
	}

	got, err := store.Load(ctx, "migration")
	if err != nil {
		t.Fatalf("load during cache outage: %v", err)
	}
	if got == nil || got.Status != domain.StatusRunning {
		t.Fatalf("got = %+v", got)
	}

	if err := store.Clear(ctx, "migration"); err != nil {
		t.Fatalf("clear during cache outage: %v", err)
	}
}

func TestCachedStoreNilCacheDefaultsToNoop(t *testing.T) {
	ctx := context.Background()
	inner := newMemDurableStore()
	store := NewCachedStateStore(inner, nil)

	state := &domain.ProcessorState{Workflow: "migration", Status: domain.StatusPaused}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, "migration")
	if err != nil || got == nil || got.Status != domain.StatusPaused {
		t.Fatalf("got = %+v, err = %v", got, err)
	}
}
