package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements an in-memory sliding window store for rate limiting.
// Suitable for single-process deployments and tests; use RedisStore when
// limits must be shared across instances.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	cleanupInterval time.Duration
	maxWindow       time.Duration
	done            chan struct{}
	closeOnce       sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets the interval for dropping fully expired keys.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

// NewMemoryStore creates a new in-memory store with automatic cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		windows:         make(map[string][]time.Time),
		cleanupInterval: time.Minute,
		maxWindow:       24 * time.Hour,
		done:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

// Close stops the background cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// RecordIfAllowed implements Store.
func (s *MemoryStore) RecordIfAllowed(ctx context.Context, key string, timestamp time.Time, window time.Duration, limit int) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamps := s.pruneLocked(key, timestamp.Add(-window))
	if len(timestamps) >= limit {
		return false, int64(len(timestamps)), nil
	}

	timestamps = append(timestamps, timestamp)
	s.windows[key] = timestamps
	return true, int64(len(timestamps)), nil
}

// CountInWindow implements Store.
func (s *MemoryStore) CountInWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.pruneLocked(key, time.Now().Add(-window)))), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)
	return nil
}

// pruneLocked drops timestamps older than cutoff and returns the survivors.
// Callers must hold the mutex.
func (s *MemoryStore) pruneLocked(key string, cutoff time.Time) []time.Time {
	timestamps := s.windows[key]
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(s.windows, key)
		return nil
	}
	s.windows[key] = kept
	return kept
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			cutoff := time.Now().Add(-s.maxWindow)
			for key := range s.windows {
				s.pruneLocked(key, cutoff)
			}
			s.mu.Unlock()
		}
	}
}
