package content

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence surface for content items and their variations.
// Variations are composed into their item: they are created with it,
// fetched with it, and removed with it.
type Store interface {
	// CreateItem inserts an item together with its variations.
	CreateItem(ctx context.Context, item *Item) error

	// GetItem returns an item with variations by id within the organization
	// scope, or ErrItemNotFound when it does not exist there.
	GetItem(ctx context.Context, orgID, itemID uuid.UUID) (*Item, error)

	// ListItems returns items matching the params, newest first.
	ListItems(ctx context.Context, params ListParams) ([]Item, error)

	// ListDue returns items in scheduled status with scheduledFor <= now,
	// oldest due first, with variations attached.
	ListDue(ctx context.Context, now time.Time) ([]Item, error)

	// UpdateItem persists mutable item fields (status, approval status,
	// schedule, rejection reason, attention flag).
	UpdateItem(ctx context.Context, item *Item) error

	// UpdateVariation persists mutable variation fields (status, published
	// post id, attempt count, last error).
	UpdateVariation(ctx context.Context, variation *Variation) error
}
