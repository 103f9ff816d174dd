package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/offloadops/offload/internal/config"
	"github.com/redis/go-redis/v9"
)

const pendingPathsKey = "offload:cdn:pending"

// PendingPathStore persists the CDN batcher's un-flushed path set so a
// restart does not drop queued invalidations. The batcher keeps its working
// set in memory; this store only mirrors it.
type PendingPathStore interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, paths []string) error
}

type redisPendingPathStore struct {
	client *redis.Client
}

type noopPendingPathStore struct{}

func NewPendingPathStore(cfg config.CacheConfig) (PendingPathStore, error) {
	if !cfg.Enabled {
		return &noopPendingPathStore{}, nil
	}

	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisPendingPathStore{client: client}, nil
}

func NewNoopPendingPathStore() PendingPathStore {
	return &noopPendingPathStore{}
}

func (s *redisPendingPathStore) Load(ctx context.Context) ([]string, error) {
	payload, err := s.client.Get(ctx, pendingPathsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var paths []string
	if err := json.Unmarshal(payload, &paths); err != nil {
		return nil, fmt.Errorf("decode pending invalidation paths: %w", err)
	}
	return paths, nil
}

func (s *redisPendingPathStore) Save(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return s.client.Del(ctx, pendingPathsKey).Err()
	}

	payload, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("encode pending invalidation paths: %w", err)
	}
	// No TTL: pending invalidations survive until flushed.
	if err := s.client.Set(ctx, pendingPathsKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (n *noopPendingPathStore) Load(ctx context.Context) ([]string, error) { return nil, nil }

func (n *noopPendingPathStore) Save(ctx context.Context, paths []string) error { return nil }
