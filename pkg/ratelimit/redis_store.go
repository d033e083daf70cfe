package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements the sliding window Store on top of Redis sorted
// sets, so rate limits are shared across process instances. Timestamps are
// stored as scores; the check-and-record step runs as a Lua script to keep
// it atomic under concurrent callers.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// recordIfAllowedScript prunes expired entries, checks the window count
// against the limit, and records the new timestamp in one atomic step.
var recordIfAllowedScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
	return {0, count}
end
redis.call('ZADD', key, now, now .. '-' .. redis.call('INCR', key .. ':seq'))
redis.call('PEXPIRE', key, window)
redis.call('PEXPIRE', key .. ':seq', window)
return {1, count + 1}
`)

// NewRedisStore creates a Redis-backed sliding window store.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) (*RedisStore, error) {
	if client == nil {
		return nil, ErrStoreRequired
	}
	if keyPrefix == "" {
		keyPrefix = "ratelimit"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}, nil
}

func (s *RedisStore) key(key string) string {
	return s.keyPrefix + ":" + key
}

// RecordIfAllowed implements Store.
func (s *RedisStore) RecordIfAllowed(ctx context.Context, key string, timestamp time.Time, window time.Duration, limit int) (bool, int64, error) {
	res, err := recordIfAllowedScript.Run(ctx, s.client, []string{s.key(key)},
		timestamp.UnixMilli(), window.Milliseconds(), limit).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit: redis script failed: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("ratelimit: unexpected script result %v", res)
	}

	allowed, _ := res[0].(int64)
	count, _ := res[1].(int64)
	return allowed == 1, count, nil
}

// CountInWindow implements Store.
func (s *RedisStore) CountInWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := time.Now()
	cutoff := now.Add(-window).UnixMilli()

	if err := s.client.ZRemRangeByScore(ctx, s.key(key), "-inf", fmt.Sprintf("%d", cutoff)).Err(); err != nil {
		return 0, fmt.Errorf("ratelimit: failed to prune window: %w", err)
	}

	count, err := s.client.ZCard(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("ratelimit: failed to count window: %w", err)
	}
	return count, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key), s.key(key)+":seq").Err(); err != nil {
		return fmt.Errorf("ratelimit: failed to delete key: %w", err)
	}
	return nil
}
