package publog

import (
	"time"

	"github.com/google/uuid"

	"github.com/postflowhq/postflow/pkg/publisher"
)

// Status classifies a single dispatch attempt.
type Status string

const (
	StatusSuccess      Status = "success"
	StatusFailed       Status = "failed"
	StatusRetryPending Status = "retry_pending"
)

// Entry is one dispatch attempt against a social platform. Entries are
// append-only: they are inserted once and never updated, so the log doubles
// as the source of truth for rate-limit accounting.
type Entry struct {
	ID             uuid.UUID          `json:"id"`
	OrganizationID uuid.UUID          `json:"organization_id"`
	BrandID        uuid.UUID          `json:"brand_id"`
	ContentID      uuid.UUID          `json:"content_id"`
	VariationID    uuid.UUID          `json:"variation_id"`
	Platform       publisher.Platform `json:"platform"`
	Status         Status             `json:"status"`
	AttemptedAt    time.Time          `json:"attempted_at"`
	Error          *string            `json:"error,omitempty"`
	PlatformPostID *string            `json:"platform_post_id,omitempty"`
}

// Filter narrows List queries. Zero-value fields are ignored.
type Filter struct {
	OrganizationID uuid.UUID
	BrandID        uuid.UUID
	ContentID      uuid.UUID
	Platform       publisher.Platform
	Status         Status
	Limit          int
	Cursor         string
}
