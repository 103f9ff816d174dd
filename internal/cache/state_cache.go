package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/offloadops/offload/internal/config"
	"github.com/offloadops/offload/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix  = "offload:state"
	defaultStateTTL = 5 * time.Minute
)

// StateCache is the fast expiring front for processor state. Misses are
// repaired from the durable store by CachedStateStore.
type StateCache interface {
	Get(ctx context.Context, workflow string) (*domain.ProcessorState, bool, error)
	Set(ctx context.Context, state *domain.ProcessorState) error
	Invalidate(ctx context.Context, workflow string) error
}

type redisStateCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopStateCache struct{}

func NewStateCache(cfg config.CacheConfig) (StateCache, error) {
	if !cfg.Enabled {
		return &noopStateCache{}, nil
	}

	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisStateCache{
		client: client,
		ttl:    ttlSeconds(cfg.StateTTLSeconds, defaultStateTTL),
	}, nil
}

func NewNoopStateCache() StateCache {
	return &noopStateCache{}
}

func (c *redisStateCache) Get(ctx context.Context, workflow string) (*domain.ProcessorState, bool, error) {
	payload, err := c.client.Get(ctx, stateKey(workflow)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var state domain.ProcessorState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, false, fmt.Errorf("decode processor state cache: %w", err)
	}

	return &state, true, nil
}

func (c *redisStateCache) Set(ctx context.Context, state *domain.ProcessorState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode processor state cache: %w", err)
	}

	if err := c.client.Set(ctx, stateKey(state.Workflow), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisStateCache) Invalidate(ctx context.Context, workflow string) error {
	return c.client.Del(ctx, stateKey(workflow)).Err()
}

func (n *noopStateCache) Get(ctx context.Context, workflow string) (*domain.ProcessorState, bool, error) {
	return nil, false, nil
}

func (n *noopStateCache) Set(ctx context.Context, state *domain.ProcessorState) error {
	return nil
}

func (n *noopStateCache) Invalidate(ctx context.Context, workflow string) error {
	return nil
}

func stateKey(workflow string) string {
	return fmt.Sprintf("%s:%s", stateKeyPrefix, workflow)
}
