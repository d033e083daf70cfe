package autopilot

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemorySource is an in-memory Source for tests and local development.
type MemorySource struct {
	mu      sync.RWMutex
	configs map[uuid.UUID]Config
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		configs: make(map[uuid.UUID]Config),
	}
}

// Set stores or replaces the config for a brand.
func (s *MemorySource) Set(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs[cfg.BrandID] = cfg
}

// Get implements Source.
func (s *MemorySource) Get(ctx context.Context, brandID uuid.UUID) (*Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[brandID]
	if !ok {
		return nil, ErrConfigNotFound
	}

	cfgCopy := cfg
	return &cfgCopy, nil
}
