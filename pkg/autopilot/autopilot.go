// Package autopilot carries the per-brand publishing policy: how much human
// approval content needs, how often a brand may post, and where.
//
// The config is a read-only input for the content workflow and the publish
// scheduler. It is mutated only through brand settings, which live outside
// this module; here it is fetched through the Source interface and
// optionally cached with a TTL.
package autopilot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/postflowhq/postflow/pkg/publisher"
)

// ApprovalMode controls how much human review content requires before publishing.
type ApprovalMode string

const (
	// ModeReview requires an explicit approve/reject by a human before scheduling.
	ModeReview ApprovalMode = "review"
	// ModeAutoQueue skips the approve click but keeps items visible in the
	// pending queue until someone schedules them.
	ModeAutoQueue ApprovalMode = "auto_queue"
	// ModeAutoPost schedules new content immediately without review.
	ModeAutoPost ApprovalMode = "auto_post"
)

// Valid reports whether the mode is a known value.
func (m ApprovalMode) Valid() bool {
	switch m {
	case ModeReview, ModeAutoQueue, ModeAutoPost:
		return true
	}
	return false
}

// Config is the per-brand autopilot policy.
type Config struct {
	BrandID          uuid.UUID            `json:"brand_id"`
	Enabled          bool                 `json:"enabled"`
	ApprovalMode     ApprovalMode         `json:"approval_mode"`
	MaxPostsPerDay   int                  `json:"max_posts_per_day"`
	MinHoursBetween  int                  `json:"min_hours_between"`
	EnabledPlatforms []publisher.Platform `json:"enabled_platforms"`
	PostingDays      WeekdayMask          `json:"posting_days"`
}

// PlatformEnabled reports whether the brand publishes to the given platform.
func (c Config) PlatformEnabled(p publisher.Platform) bool {
	for _, enabled := range c.EnabledPlatforms {
		if enabled == p {
			return true
		}
	}
	return false
}

// MinSpacing returns the minimum duration between two posts on the same platform.
func (c Config) MinSpacing() time.Duration {
	return time.Duration(c.MinHoursBetween) * time.Hour
}

// WeekdayMask is a bitmask of weekdays a brand posts on, bit 0 = Sunday
// matching time.Weekday numbering.
type WeekdayMask uint8

// AllDays allows posting on every weekday.
const AllDays WeekdayMask = 0x7F

// Allows reports whether the mask permits posting on the given weekday.
func (m WeekdayMask) Allows(day time.Weekday) bool {
	return m&(1<<uint(day)) != 0
}

// WithDay returns a mask that also allows the given weekday.
func (m WeekdayMask) WithDay(day time.Weekday) WeekdayMask {
	return m | (1 << uint(day))
}

// Days returns the weekdays the mask allows, in time.Weekday order.
func (m WeekdayMask) Days() []time.Weekday {
	var days []time.Weekday
	for day := time.Sunday; day <= time.Saturday; day++ {
		if m.Allows(day) {
			days = append(days, day)
		}
	}
	return days
}

// Source fetches the autopilot policy for a brand.
type Source interface {
	Get(ctx context.Context, brandID uuid.UUID) (*Config, error)
}
