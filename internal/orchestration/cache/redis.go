package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"campaign-writer/internal/models"
)

// RedisCache is the shared tier. Entries are JSON documents written with
// SET ... EX so Redis expires them on its own.
type RedisCache struct {
	client redis.Cmdable
	prefix string
}

func NewRedisCache(client redis.Cmdable, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) Name() string { return "redis" }

func (r *RedisCache) key(fingerprint string) string {
	return r.prefix + "gen:" + fingerprint
}

func (r *RedisCache) Get(ctx context.Context, fingerprint string) (*models.CacheEntry, bool, error) {
	raw, err := r.client.Get(ctx, r.key(fingerprint)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("decode cache entry: %w", err)
	}
	if entry.Result == nil {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (r *RedisCache) Put(ctx context.Context, entry *models.CacheEntry, ttl time.Duration) error {
	ttl = ttl.Truncate(time.Second)
	if ttl < time.Second {
		return nil
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := r.client.Set(ctx, r.key(entry.Fingerprint), body, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
