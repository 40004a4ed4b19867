package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheGet fetches and decodes a cached value. A miss, a nil client, or
// a decode failure all read through to the source.
func cacheGet[T any](ctx context.Context, client *redis.Client, key string) (*T, bool) {
	if client == nil {
		return nil, false
	}
	raw, err := client.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	return &v, true
}

func cacheSet(ctx context.Context, client *redis.Client, key string, v any, ttl time.Duration) {
	if client == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	client.Set(ctx, key, raw, ttl)
}

// invalidatePrefix drops every cached key under a prefix. Coarse on purpose:
// writes are rare compared to reads and precise dependency tracking is not
// worth the bookkeeping.
func invalidatePrefix(ctx context.Context, client *redis.Client, prefix string) error {
	if client == nil {
		return nil
	}
	iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return client.Del(ctx, keys...).Err()
}
