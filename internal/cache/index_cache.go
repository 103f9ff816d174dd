package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/offloadops/offload/internal/config"
	"github.com/offloadops/offload/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	indexKey        = "offload:reconcile:index"
	defaultIndexTTL = 15 * time.Minute
)

// IndexCache holds the reconciliation RemoteIndex. Kept separate from the
// state cache because the index can weigh megabytes for big buckets and must
// not bloat the state blob. Entries are replaced whole, never mutated, so
// readers never observe a partially-built index.
type IndexCache interface {
	Get(ctx context.Context) (*domain.RemoteIndex, bool, error)
	Set(ctx context.Context, index *domain.RemoteIndex) error
	Invalidate(ctx context.Context) error
}

type redisIndexCache struct {
	client *redis.Client
	ttl    time.Duration
}

// memoryIndexCache is the fallback when redis is disabled: same TTL
// semantics, process-local.
type memoryIndexCache struct {
	mu      sync.Mutex
	index   *domain.RemoteIndex
	expires time.Time
	ttl     time.Duration
}

func NewIndexCache(cfg config.CacheConfig) (IndexCache, error) {
	ttl := ttlSeconds(cfg.IndexTTLSeconds, defaultIndexTTL)
	if !cfg.Enabled {
		return &memoryIndexCache{ttl: ttl}, nil
	}

	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisIndexCache{client: client, ttl: ttl}, nil
}

func NewMemoryIndexCache(ttl time.Duration) IndexCache {
	return &memoryIndexCache{ttl: ttl}
}

func (c *redisIndexCache) Get(ctx context.Context) (*domain.RemoteIndex, bool, error) {
	payload, err := c.client.Get(ctx, indexKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var index domain.RemoteIndex
	if err := json.Unmarshal(payload, &index); err != nil {
		return nil, false, fmt.Errorf("decode remote index cache: %w", err)
	}

	return &index, true, nil
}

func (c *redisIndexCache) Set(ctx context.Context, index *domain.RemoteIndex) error {
	payload, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode remote index cache: %w", err)
	}

	if err := c.client.Set(ctx, indexKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisIndexCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, indexKey).Err()
}

func (c *memoryIndexCache) Get(ctx context.Context) (*domain.RemoteIndex, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index == nil || time.Now().After(c.expires) {
		return nil, false, nil
	}
	return c.index, true, nil
}

func (c *memoryIndexCache) Set(ctx context.Context, index *domain.RemoteIndex) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = index
	c.expires = time.Now().Add(c.ttl)
	return nil
}

func (c *memoryIndexCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = nil
	return nil
}
