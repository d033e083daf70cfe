package content

import "errors"

var (
	// ErrStoreNil is returned when a nil store is provided.
	ErrStoreNil = errors.New("store cannot be nil")

	// ErrItemNotFound is returned when an item does not exist within the
	// caller's organization scope. Cross-tenant items report identically.
	ErrItemNotFound = errors.New("content item not found")

	// ErrVariationNotFound is returned when a variation does not exist.
	ErrVariationNotFound = errors.New("content variation not found")

	// ErrNotPendingApproval is returned by Approve/Reject when the item is
	// not awaiting review.
	ErrNotPendingApproval = errors.New("content item is not pending approval")

	// ErrNotApproved is returned by Schedule when the item has not cleared review.
	ErrNotApproved = errors.New("content item is not approved")

	// ErrScheduleInPast is returned by Schedule when the requested time has already passed.
	ErrScheduleInPast = errors.New("scheduled time must be in the future")

	// ErrNotPublishable is returned by PublishNow for published or rejected items.
	ErrNotPublishable = errors.New("content item cannot be published from its current state")

	// ErrNoVariations is returned when queueing content that yields no
	// publishable variation (no platform had both text and a mapped account).
	ErrNoVariations = errors.New("content item has no publishable variations")
)
