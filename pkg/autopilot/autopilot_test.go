package autopilot_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postflowhq/postflow/pkg/autopilot"
	"github.com/postflowhq/postflow/pkg/publisher"
)

func TestApprovalMode_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, autopilot.ModeReview.Valid())
	assert.True(t, autopilot.ModeAutoQueue.Valid())
	assert.True(t, autopilot.ModeAutoPost.Valid())
	assert.False(t, autopilot.ApprovalMode("yolo").Valid())
	assert.False(t, autopilot.ApprovalMode("").Valid())
}

func TestConfig_PlatformEnabled(t *testing.T) {
	t.Parallel()

	cfg := autopilot.Config{
		EnabledPlatforms: []publisher.Platform{publisher.PlatformTwitter, publisher.PlatformLinkedIn},
	}

	assert.True(t, cfg.PlatformEnabled(publisher.PlatformTwitter))
	assert.True(t, cfg.PlatformEnabled(publisher.PlatformLinkedIn))
	assert.False(t, cfg.PlatformEnabled(publisher.PlatformInstagram))

	empty := autopilot.Config{}
	assert.False(t, empty.PlatformEnabled(publisher.PlatformTwitter))
}

func TestConfig_MinSpacing(t *testing.T) {
	t.Parallel()

	cfg := autopilot.Config{MinHoursBetween: 4}
	assert.Equal(t, 4*time.Hour, cfg.MinSpacing())

	assert.Zero(t, autopilot.Config{}.MinSpacing())
}

func TestWeekdayMask(t *testing.T) {
	t.Parallel()

	t.Run("all days", func(t *testing.T) {
		t.Parallel()

		for day := time.Sunday; day <= time.Saturday; day++ {
			assert.True(t, autopilot.AllDays.Allows(day), "day %s", day)
		}
		assert.Len(t, autopilot.AllDays.Days(), 7)
	})

	t.Run("empty mask allows nothing", func(t *testing.T) {
		t.Parallel()

		var mask autopilot.WeekdayMask
		for day := time.Sunday; day <= time.Saturday; day++ {
			assert.False(t, mask.Allows(day), "day %s", day)
		}
		assert.Empty(t, mask.Days())
	})

	t.Run("with day", func(t *testing.T) {
		t.Parallel()

		mask := autopilot.WeekdayMask(0).
			WithDay(time.Monday).
			WithDay(time.Friday)

		assert.True(t, mask.Allows(time.Monday))
		assert.True(t, mask.Allows(time.Friday))
		assert.False(t, mask.Allows(time.Sunday))
		assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, mask.Days())
	})

	t.Run("with day is idempotent", func(t *testing.T) {
		t.Parallel()

		mask := autopilot.WeekdayMask(0).WithDay(time.Monday)
		assert.Equal(t, mask, mask.WithDay(time.Monday))
	})
}

func TestMemorySource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		t.Parallel()

		source := autopilot.NewMemorySource()
		brandID := uuid.New()
		source.Set(autopilot.Config{
			BrandID:        brandID,
			Enabled:        true,
			ApprovalMode:   autopilot.ModeAutoPost,
			MaxPostsPerDay: 5,
			PostingDays:    autopilot.AllDays,
		})

		cfg, err := source.Get(ctx, brandID)
		require.NoError(t, err)
		assert.True(t, cfg.Enabled)
		assert.Equal(t, autopilot.ModeAutoPost, cfg.ApprovalMode)
		assert.Equal(t, 5, cfg.MaxPostsPerDay)
	})

	t.Run("unknown brand", func(t *testing.T) {
		t.Parallel()

		source := autopilot.NewMemorySource()
		_, err := source.Get(ctx, uuid.New())
		require.ErrorIs(t, err, autopilot.ErrConfigNotFound)
	})

	t.Run("returned config is a copy", func(t *testing.T) {
		t.Parallel()

		source := autopilot.NewMemorySource()
		brandID := uuid.New()
		source.Set(autopilot.Config{BrandID: brandID, Enabled: true})

		cfg, err := source.Get(ctx, brandID)
		require.NoError(t, err)
		cfg.Enabled = false

		again, err := source.Get(ctx, brandID)
		require.NoError(t, err)
		assert.True(t, again.Enabled)
	})
}
