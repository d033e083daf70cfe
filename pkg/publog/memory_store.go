package publog

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/postflowhq/postflow/pkg/publisher"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return ErrEntryNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
		entry.ID = stored.ID
	}
	if stored.AttemptedAt.IsZero() {
		stored.AttemptedAt = time.Now()
		entry.AttemptedAt = stored.AttemptedAt
	}

	s.entries = append(s.entries, stored)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, filter Filter) (*Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Entry
	for _, e := range s.entries {
		if !matches(e, filter) {
			continue
		}
		matched = append(matched, e)
	}

	// Newest first, id as a stable tiebreak for entries in the same instant.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].AttemptedAt.Equal(matched[j].AttemptedAt) {
			return matched[i].AttemptedAt.After(matched[j].AttemptedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	total := len(matched)

	if filter.Cursor != "" {
		at, id, err := decodeCursor(filter.Cursor)
		if err != nil {
			return nil, err
		}
		idx := 0
		for idx < len(matched) {
			e := matched[idx]
			if e.AttemptedAt.Before(at) || (e.AttemptedAt.Equal(at) && e.ID.String() < id) {
				break
			}
			idx++
		}
		matched = matched[idx:]
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	page := &Page{Total: total}
	if len(matched) > limit {
		page.Entries = matched[:limit]
		last := matched[limit-1]
		page.NextCursor = encodeCursor(last.AttemptedAt, last.ID)
	} else {
		page.Entries = matched
	}

	return page, nil
}

// CountSuccessSince implements Store.
func (s *MemoryStore) CountSuccessSince(ctx context.Context, brandID uuid.UUID, platform publisher.Platform, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entries {
		if e.BrandID == brandID && e.Platform == platform && e.Status == StatusSuccess && !e.AttemptedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// LastSuccessAt implements Store.
func (s *MemoryStore) LastSuccessAt(ctx context.Context, brandID uuid.UUID, platform publisher.Platform) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *time.Time
	for i := range s.entries {
		e := s.entries[i]
		if e.BrandID != brandID || e.Platform != platform || e.Status != StatusSuccess {
			continue
		}
		if last == nil || e.AttemptedAt.After(*last) {
			at := e.AttemptedAt
			last = &at
		}
	}
	return last, nil
}

func matches(e Entry, f Filter) bool {
	if f.OrganizationID != uuid.Nil && e.OrganizationID != f.OrganizationID {
		return false
	}
	if f.BrandID != uuid.Nil && e.BrandID != f.BrandID {
		return false
	}
	if f.ContentID != uuid.Nil && e.ContentID != f.ContentID {
		return false
	}
	if f.Platform != "" && e.Platform != f.Platform {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}

func encodeCursor(at time.Time, id uuid.UUID) string {
	raw := fmt.Sprintf("%d:%s", at.UnixNano(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", ErrInvalidCursor
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return time.Time{}, "", ErrInvalidCursor
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", ErrInvalidCursor
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return time.Time{}, "", ErrInvalidCursor
	}
	return time.Unix(0, nanos), parts[1], nil
}
