package publisher

import (
	"fmt"
	"sync"
)

// Registry maps platforms to their Publisher implementations. One
// implementation per platform; selection happens by enum value, never by
// type switching at call sites.
type Registry struct {
	mu         sync.RWMutex
	publishers map[Platform]Publisher
}

func NewRegistry() *Registry {
	return &Registry{
		publishers: make(map[Platform]Publisher),
	}
}

// Register binds a publisher to a platform. Registering the same platform
// twice is an error; replacing a live publisher is never intended.
func (r *Registry) Register(platform Platform, pub Publisher) error {
	if pub == nil {
		return fmt.Errorf("publisher for %q cannot be nil", platform)
	}
	if !platform.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.publishers[platform]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, platform)
	}

	r.publishers[platform] = pub
	return nil
}

// Resolve returns the publisher for a platform.
func (r *Registry) Resolve(platform Platform) (Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pub, ok := r.publishers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, platform)
	}
	return pub, nil
}

// Platforms returns the platforms with a registered publisher.
func (r *Registry) Platforms() []Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platforms := make([]Platform, 0, len(r.publishers))
	for p := range r.publishers {
		platforms = append(platforms, p)
	}
	return platforms
}
