package publog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/postflowhq/postflow/pkg/publisher"
)

var (
	// ErrEntryNil is returned when appending a nil entry.
	ErrEntryNil = errors.New("entry cannot be nil")

	// ErrInvalidCursor is returned when a pagination cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid pagination cursor")
)

// Store is the append-only persistence surface for dispatch attempts.
// There is deliberately no update or delete: the log is an audit trail, and
// the rate-limit queries below depend on history staying immutable.
type Store interface {
	// Append inserts one dispatch attempt.
	Append(ctx context.Context, entry *Entry) error

	// List returns entries matching the filter, newest first, cursor-paginated.
	List(ctx context.Context, filter Filter) (*Page, error)

	// CountSuccessSince returns how many successful dispatches a
	// brand+platform pair has recorded since the given time. Feeds the
	// max-posts-per-day check.
	CountSuccessSince(ctx context.Context, brandID uuid.UUID, platform publisher.Platform, since time.Time) (int, error)

	// LastSuccessAt returns the time of the most recent successful dispatch
	// for a brand+platform pair, or nil when there is none. Feeds the
	// minimum-spacing check.
	LastSuccessAt(ctx context.Context, brandID uuid.UUID, platform publisher.Platform) (*time.Time, error)
}

// Page is one page of log entries.
type Page struct {
	Entries    []Entry `json:"entries"`
	Total      int     `json:"total"`
	NextCursor string  `json:"next_cursor,omitempty"`
}
