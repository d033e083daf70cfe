package content

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/postflowhq/postflow/pkg/publisher"
)

// MemoryStore is an in-memory Store for tests and single-process setups.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Item
}

// NewMemoryStore creates an empty in-memory content store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]*Item)}
}

func (s *MemoryStore) CreateItem(ctx context.Context, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[item.ID] = copyItem(item)
	return nil
}

// GetItem looks up an item within the organization scope. A foreign
// organization gets the same ErrItemNotFound as a missing ID so that IDs
// cannot be probed across tenants.
func (s *MemoryStore) GetItem(ctx context.Context, orgID, itemID uuid.UUID) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok || item.OrganizationID != orgID {
		return nil, ErrItemNotFound
	}
	return copyItem(item), nil
}

func (s *MemoryStore) ListItems(ctx context.Context, params ListParams) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Item
	for _, item := range s.items {
		if item.OrganizationID != params.OrganizationID {
			continue
		}
		if params.BrandID != uuid.Nil && item.BrandID != params.BrandID {
			continue
		}
		if params.Status != "" && item.Status != params.Status {
			continue
		}
		if params.NeedsAttention && !item.NeedsAttention {
			continue
		}
		matched = append(matched, item)
	}

	// Newest first, ID as a stable tiebreak for equal timestamps.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	if params.Limit > 0 && len(matched) > params.Limit {
		matched = matched[:params.Limit]
	}

	out := make([]Item, 0, len(matched))
	for _, item := range matched {
		out = append(out, *copyItem(item))
	}
	return out, nil
}

// ListDue returns scheduled items whose time has come, oldest due first.
// Approval gating happened when the item entered the scheduled state, so
// status alone decides eligibility here.
func (s *MemoryStore) ListDue(ctx context.Context, now time.Time) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*Item
	for _, item := range s.items {
		if item.Status != StatusScheduled || item.ScheduledFor == nil {
			continue
		}
		if item.ScheduledFor.After(now) {
			continue
		}
		due = append(due, item)
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledFor.Equal(*due[j].ScheduledFor) {
			return due[i].ScheduledFor.Before(*due[j].ScheduledFor)
		}
		return due[i].ID.String() < due[j].ID.String()
	})

	out := make([]Item, 0, len(due))
	for _, item := range due {
		out = append(out, *copyItem(item))
	}
	return out, nil
}

func (s *MemoryStore) UpdateItem(ctx context.Context, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[item.ID]
	if !ok || existing.OrganizationID != item.OrganizationID {
		return ErrItemNotFound
	}
	s.items[item.ID] = copyItem(item)
	return nil
}

func (s *MemoryStore) UpdateVariation(ctx context.Context, variation *Variation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[variation.ItemID]
	if !ok {
		return ErrItemNotFound
	}
	for i := range item.Variations {
		if item.Variations[i].ID == variation.ID {
			item.Variations[i] = *copyVariation(variation)
			return nil
		}
	}
	return ErrItemNotFound
}

func copyItem(item *Item) *Item {
	cp := *item
	if item.ScheduledFor != nil {
		t := *item.ScheduledFor
		cp.ScheduledFor = &t
	}
	if item.RejectionReason != nil {
		r := *item.RejectionReason
		cp.RejectionReason = &r
	}
	cp.TargetPlatforms = append([]publisher.Platform(nil), item.TargetPlatforms...)
	cp.Variations = make([]Variation, len(item.Variations))
	for i := range item.Variations {
		cp.Variations[i] = *copyVariation(&item.Variations[i])
	}
	return &cp
}

func copyVariation(v *Variation) *Variation {
	cp := *v
	if v.ScheduledAt != nil {
		t := *v.ScheduledAt
		cp.ScheduledAt = &t
	}
	if v.PublishedPostID != nil {
		p := *v.PublishedPostID
		cp.PublishedPostID = &p
	}
	if v.LastError != nil {
		e := *v.LastError
		cp.LastError = &e
	}
	cp.Hashtags = append([]string(nil), v.Hashtags...)
	return &cp
}
