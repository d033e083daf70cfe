package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postflowhq/postflow/pkg/autopilot"
	"github.com/postflowhq/postflow/pkg/content"
	"github.com/postflowhq/postflow/pkg/publisher"
	"github.com/postflowhq/postflow/pkg/publog"
	"github.com/postflowhq/postflow/pkg/scheduler"
)

// stubPublisher counts publish calls and returns a canned result or error.
type stubPublisher struct {
	err   error
	calls int
}

func (p *stubPublisher) Publish(ctx context.Context, account publisher.Account, post publisher.Post) (*publisher.Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &publisher.Result{PlatformPostID: "post-123"}, nil
}

func (p *stubPublisher) Profile(ctx context.Context, account publisher.Account) (*publisher.Profile, error) {
	return &publisher.Profile{Handle: account.Handle}, nil
}

type schedEnv struct {
	items    *content.MemoryStore
	log      *publog.MemoryStore
	configs  *autopilot.MemorySource
	accounts *publisher.MemoryAccountSource
	registry *publisher.Registry
	pub      *stubPublisher
	orgID    uuid.UUID
	brandID  uuid.UUID
	now      time.Time
}

func newSchedEnv(t *testing.T, cfg autopilot.Config) *schedEnv {
	t.Helper()

	env := &schedEnv{
		items:    content.NewMemoryStore(),
		log:      publog.NewMemoryStore(),
		configs:  autopilot.NewMemorySource(),
		accounts: publisher.NewMemoryAccountSource(),
		registry: publisher.NewRegistry(),
		pub:      &stubPublisher{},
		orgID:    uuid.New(),
		brandID:  uuid.New(),
		// A Wednesday at noon; posting-day tests pick their own masks.
		now: time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC),
	}

	cfg.BrandID = env.brandID
	env.configs.Set(cfg)

	require.NoError(t, env.registry.Register(publisher.PlatformTwitter, env.pub))
	env.accounts.Connect(publisher.Account{
		ID:       uuid.New(),
		BrandID:  env.brandID,
		Platform: publisher.PlatformTwitter,
		Handle:   "@brand",
	})

	return env
}

func (env *schedEnv) newScheduler(t *testing.T, opts ...scheduler.Option) *scheduler.Scheduler {
	t.Helper()

	opts = append([]scheduler.Option{scheduler.WithClock(func() time.Time { return env.now })}, opts...)
	s, err := scheduler.New(env.items, env.log, env.configs, env.accounts, env.registry, opts...)
	require.NoError(t, err)
	return s
}

// scheduleItem inserts an approved, scheduled item due at the given time.
func (env *schedEnv) scheduleItem(t *testing.T, due time.Time) *content.Item {
	t.Helper()

	account, err := env.accounts.Account(context.Background(), env.brandID, publisher.PlatformTwitter)
	require.NoError(t, err)

	item := &content.Item{
		ID:              uuid.New(),
		OrganizationID:  env.orgID,
		BrandID:         env.brandID,
		Content:         "Launch day!",
		ContentType:     content.TypePost,
		TargetPlatforms: []publisher.Platform{publisher.PlatformTwitter},
		Status:          content.StatusScheduled,
		ApprovalStatus:  content.ApprovalApproved,
		ScheduledFor:    &due,
		CreatedAt:       due.Add(-time.Hour),
		UpdatedAt:       due.Add(-time.Hour),
	}
	item.Variations = []content.Variation{{
		ID:              uuid.New(),
		ItemID:          item.ID,
		Platform:        publisher.PlatformTwitter,
		Content:         "Launch day!",
		CharacterCount:  len("Launch day!"),
		IsWithinLimit:   true,
		TargetAccountID: account.ID,
		ScheduledAt:     &due,
		Status:          content.VariationPending,
	}}
	require.NoError(t, env.items.CreateItem(context.Background(), item))
	return item
}

func defaultConfig() autopilot.Config {
	return autopilot.Config{
		Enabled:          true,
		ApprovalMode:     autopilot.ModeReview,
		EnabledPlatforms: []publisher.Platform{publisher.PlatformTwitter},
		PostingDays:      autopilot.AllDays,
	}
}

func successEntries(t *testing.T, env *schedEnv) []publog.Entry {
	t.Helper()

	page, err := env.log.List(context.Background(), publog.Filter{
		OrganizationID: env.orgID,
		Status:         publog.StatusSuccess,
	})
	require.NoError(t, err)
	return page.Entries
}

func TestScheduler_Tick_PublishesDueItem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newSchedEnv(t, defaultConfig())
	item := env.scheduleItem(t, env.now.Add(-time.Minute))

	s := env.newScheduler(t)
	require.NoError(t, s.Tick(ctx))

	// Item is published with a recorded platform post id.
	got, err := env.items.GetItem(ctx, env.orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPublished, got.Status)
	require.Len(t, got.Variations, 1)
	assert.Equal(t, content.VariationPublished, got.Variations[0].Status)
	require.NotNil(t, got.Variations[0].PublishedPostID)
	assert.Equal(t, "post-123", *got.Variations[0].PublishedPostID)

	// Exactly one success entry in the publishing log.
	entries := successEntries(t, env)
	require.Len(t, entries, 1)
	assert.Equal(t, item.ID, entries[0].ContentID)
	require.NotNil(t, entries[0].PlatformPostID)
	assert.Equal(t, "post-123", *entries[0].PlatformPostID)
}

func TestScheduler_Tick_FutureItemsWait(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newSchedEnv(t, defaultConfig())
	item := env.scheduleItem(t, env.now.Add(time.Hour))

	s := env.newScheduler(t)
	require.NoError(t, s.Tick(ctx))

	got, err := env.items.GetItem(ctx, env.orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusScheduled, got.Status)
	assert.Zero(t, env.pub.calls)
	assert.Empty(t, successEntries(t, env))
}

func TestScheduler_Tick_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newSchedEnv(t, defaultConfig())
	env.scheduleItem(t, env.now.Add(-time.Minute))

	s := env.newScheduler(t)
	require.NoError(t, s.Tick(ctx))
	require.NoError(t, s.Tick(ctx))

	assert.Equal(t, 1, env.pub.calls)
	assert.Len(t, successEntries(t, env), 1)
}

func TestScheduler_Tick_DailyCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := defaultConfig()
	cfg.MaxPostsPerDay = 2
	env := newSchedEnv(t, cfg)

	// Two successes already inside the rolling 24h window.
	for i := range 2 {
		require.NoError(t, env.log.Append(ctx, &publog.Entry{
			ID:             uuid.New(),
			OrganizationID: env.orgID,
			BrandID:        env.brandID,
			ContentID:      uuid.New(),
			VariationID:    uuid.New(),
			Platform:       publisher.PlatformTwitter,
			Status:         publog.StatusSuccess,
			AttemptedAt:    env.now.Add(-time.Duration(i+1) * time.Hour),
		}))
	}

	item := env.scheduleItem(t, env.now.Add(-time.Minute))

	s := env.newScheduler(t)
	require.NoError(t, s.Tick(ctx))

	// Item stays scheduled, nothing dispatched, no new log entry.
	got, err := env.items.GetItem(ctx, env.orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusScheduled, got.Status)
	assert.Equal(t, content.VariationPending, got.Variations[0].Status)
	assert.Zero(t, env.pub.calls)
	assert.Len(t, successEntries(t, env), 2)

	// Once the window slides past the old posts, the item goes out.
	env.now = env.now.Add(24 * time.Hour)
	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, 1, env.pub.calls)
}

func TestScheduler_Tick_DailyCapAcrossBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := defaultConfig()
	cfg.MaxPostsPerDay = 2
	env := newSchedEnv(t, cfg)

	for range 4 {
		env.scheduleItem(t, env.now.Add(-time.Minute))
	}

	s := env.newScheduler(t)
	require.NoError(t, s.Tick(ctx))

	// Serialization per brand+platform keeps the cap exact even when more
	// items are due than the cap allows.
	assert.Equal(t, 2, env.pub.calls)
	assert.Len(t, successEntries(t, env), 2)
}

func TestScheduler_Tick_MinSpacing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := defaultConfig()
	cfg.MinHoursBetween = 4
	env := newSchedEnv(t, cfg)

	require.NoError(t, env.log.Append(ctx, &publog.Entry{
		ID:             uuid.New(),
		OrganizationID: env.orgID,
		BrandID:        env.brandID,
		ContentID:      uuid.New(),
		VariationID:    uuid.New(),
		Platform:       publisher.PlatformTwitter,
		Status:         publog.StatusSuccess,
		AttemptedAt:    env.now.Add(-time.Hour),
	}))

	item := env.scheduleItem(t, env.now.Add(-time.Minute))

	s := env.newScheduler(t)
	require.NoError(t, s.Tick(ctx))

	got, err := env.items.GetItem(ctx, env.orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusScheduled, got.Status)
	assert.Zero(t, env.pub.calls)

	env.now = env.now.Add(4 * time.Hour)
	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, 1, env.pub.calls)
}

func TestScheduler_Tick_PostingDays(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := defaultConfig()
	// Weekends only; env.now is a Wednesday.
	cfg.PostingDays = autopilot.WeekdayMask(0).WithDay(time.Saturday).WithDay(time.Sunday)
	env := newSchedEnv(t, cfg)

	item := env.scheduleItem(t, env.now.Add(-time.Minute))

	s := env.newScheduler(t)
	require.NoError(t, s.Tick(ctx))

	got, err := env.items.GetItem(ctx, env.orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusScheduled, got.Status)
	assert.Zero(t, env.pub.calls)
	assert.Empty(t, successEntries(t, env))
}

func TestScheduler_Tick_PlatformDisabled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := defaultConfig()
	cfg.EnabledPlatforms = []publisher.Platform{publisher.PlatformLinkedIn}
	env := newSchedEnv(t, cfg)

	item := env.scheduleItem(t, env.now.Add(-time.Minute))

	s := env.newScheduler(t)
	require.NoError(t, s.Tick(ctx))

	// Permanent failure: the variation fails, the item fails, and the log
	// records why.
	got, err := env.items.GetItem(ctx, env.orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusFailed, got.Status)
	assert.Equal(t, content.VariationFailed, got.Variations[0].Status)
	assert.True(t, got.NeedsAttention)

	page, err := env.log.List(ctx, publog.Filter{OrganizationID: env.orgID})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, publog.StatusFailed, page.Entries[0].Status)
	require.NotNil(t, page.Entries[0].Error)
	assert.Contains(t, *page.Entries[0].Error, "platform disabled")
	assert.Zero(t, env.pub.calls)
}

func TestScheduler_Tick_AutopilotDisabled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := defaultConfig()
	cfg.Enabled = false
	env := newSchedEnv(t, cfg)

	item := env.scheduleItem(t, env.now.Add(-time.Minute))

	s := env.newScheduler(t)
	require.NoError(t, s.Tick(ctx))

	got, err := env.items.GetItem(ctx, env.orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusScheduled, got.Status)
	assert.Zero(t, env.pub.calls)
}

func TestScheduler_Tick_AttemptCeiling(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newSchedEnv(t, defaultConfig())
	env.pub.err = errors.New("platform 500")

	item := env.scheduleItem(t, env.now.Add(-time.Minute))

	s := env.newScheduler(t, scheduler.WithMaxAttempts(3))

	// Two failing ticks leave the item retryable.
	for i := range 2 {
		require.NoError(t, s.Tick(ctx))

		got, err := env.items.GetItem(ctx, env.orgID, item.ID)
		require.NoError(t, err)
		assert.Equal(t, content.StatusScheduled, got.Status, "tick %d", i+1)
		assert.Equal(t, content.VariationRetryPending, got.Variations[0].Status)
		assert.Equal(t, i+1, got.Variations[0].AttemptCount)
	}

	// The third strike is permanent.
	require.NoError(t, s.Tick(ctx))

	got, err := env.items.GetItem(ctx, env.orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusFailed, got.Status)
	assert.Equal(t, content.VariationFailed, got.Variations[0].Status)
	assert.True(t, got.NeedsAttention)
	require.NotNil(t, got.Variations[0].LastError)
	assert.Equal(t, "platform 500", *got.Variations[0].LastError)

	// Every attempt is in the log; none succeeded.
	page, err := env.log.List(ctx, publog.Filter{OrganizationID: env.orgID})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 3)
	assert.Empty(t, successEntries(t, env))

	// A failed item never comes back on later ticks.
	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, 3, env.pub.calls)
}

func TestScheduler_Tick_PartialSuccessPublishes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newSchedEnv(t, defaultConfig())

	// Second platform whose publisher always fails.
	failing := &stubPublisher{err: errors.New("api down")}
	require.NoError(t, env.registry.Register(publisher.PlatformLinkedIn, failing))
	env.accounts.Connect(publisher.Account{
		ID:       uuid.New(),
		BrandID:  env.brandID,
		Platform: publisher.PlatformLinkedIn,
		Handle:   "@brand",
	})
	cfg := defaultConfig()
	cfg.BrandID = env.brandID
	cfg.EnabledPlatforms = []publisher.Platform{publisher.PlatformTwitter, publisher.PlatformLinkedIn}
	env.configs.Set(cfg)

	due := env.now.Add(-time.Minute)
	item := env.scheduleItem(t, due)
	linkedinAccount, err := env.accounts.Account(ctx, env.brandID, publisher.PlatformLinkedIn)
	require.NoError(t, err)
	variation := content.Variation{
		ID:              uuid.New(),
		ItemID:          item.ID,
		Platform:        publisher.PlatformLinkedIn,
		Content:         item.Content,
		TargetAccountID: linkedinAccount.ID,
		ScheduledAt:     &due,
		Status:          content.VariationPending,
	}
	item.Variations = append(item.Variations, variation)
	require.NoError(t, env.items.UpdateItem(ctx, item))

	s := env.newScheduler(t, scheduler.WithMaxAttempts(1))
	require.NoError(t, s.Tick(ctx))

	// One platform succeeded, so the item counts as published, but the
	// failed variation is flagged for review.
	got, err := env.items.GetItem(ctx, env.orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPublished, got.Status)
	assert.True(t, got.NeedsAttention)

	published := 0
	for _, v := range got.Variations {
		if v.Status == content.VariationPublished {
			published++
			assert.NotNil(t, v.PublishedPostID)
		}
	}
	assert.Equal(t, 1, published)
}

func TestScheduler_Tick_UnconfiguredBrandSkipped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newSchedEnv(t, defaultConfig())

	// A second brand with a connected account but no autopilot config row.
	bareBrandID := uuid.New()
	account := publisher.Account{
		ID:       uuid.New(),
		BrandID:  bareBrandID,
		Platform: publisher.PlatformTwitter,
		Handle:   "@bare",
	}
	env.accounts.Connect(account)

	due := env.now.Add(-time.Minute)
	bare := &content.Item{
		ID:              uuid.New(),
		OrganizationID:  env.orgID,
		BrandID:         bareBrandID,
		Content:         "Unconfigured brand post",
		ContentType:     content.TypePost,
		TargetPlatforms: []publisher.Platform{publisher.PlatformTwitter},
		Status:          content.StatusScheduled,
		ApprovalStatus:  content.ApprovalApproved,
		ScheduledFor:    &due,
		CreatedAt:       due.Add(-time.Hour),
		UpdatedAt:       due.Add(-time.Hour),
		Variations: []content.Variation{{
			ID:              uuid.New(),
			Platform:        publisher.PlatformTwitter,
			Content:         "Unconfigured brand post",
			TargetAccountID: account.ID,
			ScheduledAt:     &due,
			Status:          content.VariationPending,
		}},
	}
	bare.Variations[0].ItemID = bare.ID
	require.NoError(t, env.items.CreateItem(ctx, bare))

	configured := env.scheduleItem(t, due)

	s := env.newScheduler(t)
	require.NoError(t, s.Tick(ctx))

	// The unconfigured brand's item waits, untouched and unlogged.
	gotBare, err := env.items.GetItem(ctx, env.orgID, bare.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusScheduled, gotBare.Status)
	assert.Equal(t, content.VariationPending, gotBare.Variations[0].Status)

	// The configured brand still publishes and finalizes in the same tick.
	gotConfigured, err := env.items.GetItem(ctx, env.orgID, configured.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPublished, gotConfigured.Status)
	assert.Equal(t, 1, env.pub.calls)
	assert.Len(t, successEntries(t, env), 1)
}

func TestScheduler_DispatchItem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newSchedEnv(t, defaultConfig())
	item := env.scheduleItem(t, env.now.Add(time.Hour)) // not yet due

	s := env.newScheduler(t)

	// Manual publish ignores the schedule and rate limits.
	results, err := s.DispatchItem(ctx, item)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "post-123", results[0].PlatformPostID)

	got, err := env.items.GetItem(ctx, env.orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPublished, got.Status)
	assert.Len(t, successEntries(t, env), 1)
}

func TestScheduler_DispatchItem_ReportsPublisherError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newSchedEnv(t, defaultConfig())
	env.pub.err = errors.New("connector timeout")

	item := env.scheduleItem(t, env.now.Add(-time.Minute))

	s := env.newScheduler(t)
	results, err := s.DispatchItem(ctx, item)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Operators see the publisher's error text, not a generic placeholder.
	assert.False(t, results[0].Success)
	assert.Equal(t, "connector timeout", results[0].Error)
}
