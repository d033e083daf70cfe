package autopilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CachedSource wraps an upstream Source with a Redis-backed TTL cache.
// Keeping the cache keyed and expiring instead of a process-wide map means
// multiple scheduler instances see the same config freshness and brand
// settings changes propagate within the TTL.
type CachedSource struct {
	upstream  Source
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
}

// CachedSourceOption configures a CachedSource.
type CachedSourceOption func(*CachedSource)

// WithTTL sets how long a cached config stays valid.
func WithTTL(ttl time.Duration) CachedSourceOption {
	return func(s *CachedSource) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the cache key prefix.
func WithKeyPrefix(prefix string) CachedSourceOption {
	return func(s *CachedSource) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// NewCachedSource creates a TTL-cached Source in front of upstream.
func NewCachedSource(upstream Source, client redis.UniversalClient, opts ...CachedSourceOption) (*CachedSource, error) {
	if upstream == nil {
		return nil, ErrSourceRequired
	}
	if client == nil {
		return nil, errors.New("redis client is required")
	}

	s := &CachedSource{
		upstream:  upstream,
		client:    client,
		ttl:       5 * time.Minute,
		keyPrefix: "autopilot:config",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *CachedSource) key(brandID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, brandID)
}

// Get implements Source. Cache misses and cache errors both fall through
// to the upstream; a broken cache degrades latency, not correctness.
func (s *CachedSource) Get(ctx context.Context, brandID uuid.UUID) (*Config, error) {
	if data, err := s.client.Get(ctx, s.key(brandID)).Bytes(); err == nil {
		var cfg Config
		if err := json.Unmarshal(data, &cfg); err == nil {
			return &cfg, nil
		}
	}

	cfg, err := s.upstream.Get(ctx, brandID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(cfg); err == nil {
		// Best effort; a failed cache write is invisible to the caller.
		_ = s.client.Set(ctx, s.key(brandID), data, s.ttl).Err()
	}

	return cfg, nil
}

// Invalidate drops the cached config for a brand, forcing the next Get to
// hit the upstream. Called when brand settings change.
func (s *CachedSource) Invalidate(ctx context.Context, brandID uuid.UUID) error {
	return s.client.Del(ctx, s.key(brandID)).Err()
}
