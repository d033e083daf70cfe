package publisher

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryAccountSource is an in-memory AccountSource for tests and local
// development. Account connection lives in an external OAuth service in
// production; this mirrors just the lookup surface.
type MemoryAccountSource struct {
	mu       sync.RWMutex
	accounts map[accountKey]Account
}

type accountKey struct {
	brandID  uuid.UUID
	platform Platform
}

func NewMemoryAccountSource() *MemoryAccountSource {
	return &MemoryAccountSource{
		accounts: make(map[accountKey]Account),
	}
}

// Connect maps an account to its brand+platform pair, replacing any
// previous mapping for that pair.
func (s *MemoryAccountSource) Connect(account Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[accountKey{brandID: account.BrandID, platform: account.Platform}] = account
}

// Disconnect removes the mapping for a brand+platform pair.
func (s *MemoryAccountSource) Disconnect(brandID uuid.UUID, platform Platform) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.accounts, accountKey{brandID: brandID, platform: platform})
}

// Account implements AccountSource.
func (s *MemoryAccountSource) Account(ctx context.Context, brandID uuid.UUID, platform Platform) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountKey{brandID: brandID, platform: platform}]
	if !ok {
		return nil, ErrNoAccountMapped
	}

	accountCopy := account
	return &accountCopy, nil
}
