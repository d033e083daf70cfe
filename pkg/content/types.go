package content

import (
	"time"

	"github.com/google/uuid"

	"github.com/postflowhq/postflow/pkg/publisher"
)

// ItemStatus is the lifecycle state of a content item.
type ItemStatus string

const (
	StatusDraft     ItemStatus = "draft"
	StatusPending   ItemStatus = "pending"
	StatusScheduled ItemStatus = "scheduled"
	StatusPublished ItemStatus = "published"
	StatusRejected  ItemStatus = "rejected"
	StatusFailed    ItemStatus = "failed"
)

// Terminal reports whether the status absorbs: no further transitions leave it.
func (s ItemStatus) Terminal() bool {
	return s == StatusPublished || s == StatusRejected || s == StatusFailed
}

// ApprovalStatus tracks the human (or autopilot) review decision,
// independent of the item's lifecycle status.
type ApprovalStatus string

const (
	ApprovalPending      ApprovalStatus = "pending"
	ApprovalAutoApproved ApprovalStatus = "auto_approved"
	ApprovalApproved     ApprovalStatus = "approved"
	ApprovalRejected     ApprovalStatus = "rejected"
)

// Approved reports whether the item cleared review, by human or autopilot.
func (s ApprovalStatus) Approved() bool {
	return s == ApprovalApproved || s == ApprovalAutoApproved
}

// ContentType is the format of a content item.
type ContentType string

const (
	TypePost   ContentType = "post"
	TypeStory  ContentType = "story"
	TypeReel   ContentType = "reel"
	TypeThread ContentType = "thread"
	TypeAd     ContentType = "ad"
)

// ContentTypes lists every supported content type.
func ContentTypes() []ContentType {
	return []ContentType{TypePost, TypeStory, TypeReel, TypeThread, TypeAd}
}

// Item is one piece of generated content targeted at one or more platforms.
type Item struct {
	ID              uuid.UUID            `json:"id"`
	OrganizationID  uuid.UUID            `json:"organization_id"`
	BrandID         uuid.UUID            `json:"brand_id"`
	Content         string               `json:"content"`
	ContentType     ContentType          `json:"content_type"`
	Category        string               `json:"category,omitempty"`
	TargetPlatforms []publisher.Platform `json:"target_platforms"`
	Status          ItemStatus           `json:"status"`
	ApprovalStatus  ApprovalStatus       `json:"approval_status"`
	ScheduledFor    *time.Time           `json:"scheduled_for,omitempty"`
	RejectionReason *string              `json:"rejection_reason,omitempty"`
	NeedsAttention  bool                 `json:"needs_attention"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`

	Variations []Variation `json:"variations"`
}

// VariationStatus is the dispatch state of one platform variation.
type VariationStatus string

const (
	VariationPending      VariationStatus = "pending"
	VariationRetryPending VariationStatus = "retry_pending"
	VariationPublished    VariationStatus = "published"
	VariationFailed       VariationStatus = "failed"
)

// Variation is the platform-specific rendering of a content item, bound to
// one connected social account. A variation cannot outlive its item.
type Variation struct {
	ID              uuid.UUID          `json:"id"`
	ItemID          uuid.UUID          `json:"item_id"`
	Platform        publisher.Platform `json:"platform"`
	Content         string             `json:"content"`
	Hashtags        []string           `json:"hashtags,omitempty"`
	CharacterCount  int                `json:"character_count"`
	IsWithinLimit   bool               `json:"is_within_limit"`
	TargetAccountID uuid.UUID          `json:"target_account_id"`
	ScheduledAt     *time.Time         `json:"scheduled_at,omitempty"`
	PublishedPostID *string            `json:"published_post_id,omitempty"`
	Status          VariationStatus    `json:"status"`
	AttemptCount    int                `json:"attempt_count"`
	LastError       *string            `json:"last_error,omitempty"`
}

// GeneratedContent is the output of the (external) content generation step
// consumed by QueueContent: the canonical body plus per-platform text.
type GeneratedContent struct {
	BrandID         uuid.UUID
	OrganizationID  uuid.UUID
	Content         string
	ContentType     ContentType
	Category        string
	TargetPlatforms []publisher.Platform
	// PlatformContent holds the platform-adapted text keyed by platform.
	// Platforms with no entry fall back to the canonical body.
	PlatformContent map[publisher.Platform]string
	// Hashtags holds platform-specific ordered hashtags.
	Hashtags map[publisher.Platform][]string
}

// QueueOptions tweaks how generated content enters the queue.
type QueueOptions struct {
	ScheduledFor *time.Time
	// AutoApprove forces auto-approval regardless of the brand's approval
	// mode; used by fully automated batch flows.
	AutoApprove bool
}

// ListParams filters item listings. Zero-value fields are ignored.
type ListParams struct {
	OrganizationID uuid.UUID
	BrandID        uuid.UUID
	Status         ItemStatus
	NeedsAttention bool
	Limit          int
}
