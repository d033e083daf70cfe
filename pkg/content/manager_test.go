package content_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postflowhq/postflow/pkg/autopilot"
	"github.com/postflowhq/postflow/pkg/content"
	"github.com/postflowhq/postflow/pkg/jobs"
	"github.com/postflowhq/postflow/pkg/publisher"
)

type testEnv struct {
	manager  *content.Manager
	store    *content.MemoryStore
	configs  *autopilot.MemorySource
	accounts *publisher.MemoryAccountSource
	queue    *jobs.Queue
	jobStore *jobs.MemoryStore
	orgID    uuid.UUID
	brandID  uuid.UUID
}

func newTestEnv(t *testing.T, mode autopilot.ApprovalMode, platforms ...publisher.Platform) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    content.NewMemoryStore(),
		configs:  autopilot.NewMemorySource(),
		accounts: publisher.NewMemoryAccountSource(),
		jobStore: jobs.NewMemoryStore(),
		orgID:    uuid.New(),
		brandID:  uuid.New(),
	}

	env.configs.Set(autopilot.Config{
		BrandID:          env.brandID,
		Enabled:          true,
		ApprovalMode:     mode,
		EnabledPlatforms: platforms,
		PostingDays:      autopilot.AllDays,
	})

	for _, platform := range platforms {
		env.accounts.Connect(publisher.Account{
			ID:       uuid.New(),
			BrandID:  env.brandID,
			Platform: platform,
			Handle:   "@brand",
		})
	}

	queue, err := jobs.NewQueue(env.jobStore)
	require.NoError(t, err)
	require.NoError(t, queue.RegisterType(content.PublishJobType, content.ValidatePublishJobPayload))
	env.queue = queue

	manager, err := content.NewManager(env.store, env.configs, env.accounts, queue)
	require.NoError(t, err)
	env.manager = manager

	return env
}

func (env *testEnv) generated(platforms ...publisher.Platform) content.GeneratedContent {
	return content.GeneratedContent{
		BrandID:         env.brandID,
		OrganizationID:  env.orgID,
		Content:         "Our new feature ships today.",
		TargetPlatforms: platforms,
	}
}

func TestManager_QueueContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("review mode holds the item for approval", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)

		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		require.NoError(t, err)
		assert.Equal(t, content.StatusPending, item.Status)
		assert.Equal(t, content.ApprovalPending, item.ApprovalStatus)
		require.Len(t, item.Variations, 1)
		assert.Equal(t, publisher.PlatformTwitter, item.Variations[0].Platform)
		assert.Equal(t, content.VariationPending, item.Variations[0].Status)
	})

	t.Run("unmapped platforms are skipped, not errors", func(t *testing.T) {
		t.Parallel()

		// Twitter has an account, LinkedIn does not.
		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)

		item, err := env.manager.QueueContent(ctx,
			env.generated(publisher.PlatformTwitter, publisher.PlatformLinkedIn),
			content.QueueOptions{})
		require.NoError(t, err)
		require.Len(t, item.Variations, 1)
		assert.Equal(t, publisher.PlatformTwitter, item.Variations[0].Platform)
	})

	t.Run("no mappable platform at all is an error", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview)

		_, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		assert.ErrorIs(t, err, content.ErrNoVariations)
	})

	t.Run("platform-specific text and character accounting", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter, publisher.PlatformLinkedIn)

		generated := env.generated(publisher.PlatformTwitter, publisher.PlatformLinkedIn)
		generated.PlatformContent = map[publisher.Platform]string{
			publisher.PlatformTwitter: "Short tweet.",
		}

		item, err := env.manager.QueueContent(ctx, generated, content.QueueOptions{})
		require.NoError(t, err)
		require.Len(t, item.Variations, 2)

		for _, v := range item.Variations {
			switch v.Platform {
			case publisher.PlatformTwitter:
				assert.Equal(t, "Short tweet.", v.Content)
				assert.Equal(t, len("Short tweet."), v.CharacterCount)
			case publisher.PlatformLinkedIn:
				// Falls back to the canonical body.
				assert.Equal(t, generated.Content, v.Content)
			}
			assert.True(t, v.IsWithinLimit)
		}
	})

	t.Run("auto post mode with schedule starts scheduled", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeAutoPost, publisher.PlatformTwitter)
		at := time.Now().Add(time.Hour)

		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter),
			content.QueueOptions{ScheduledFor: &at})
		require.NoError(t, err)
		assert.Equal(t, content.StatusScheduled, item.Status)
		assert.Equal(t, content.ApprovalAutoApproved, item.ApprovalStatus)
	})

	t.Run("auto queue mode skips the approval click", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeAutoQueue, publisher.PlatformTwitter)

		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		require.NoError(t, err)
		assert.Equal(t, content.StatusPending, item.Status)
		assert.Equal(t, content.ApprovalPending, item.ApprovalStatus)
	})

	t.Run("missing brand id is a validation error", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)
		generated := env.generated(publisher.PlatformTwitter)
		generated.BrandID = uuid.Nil

		_, err := env.manager.QueueContent(ctx, generated, content.QueueOptions{})
		assert.Error(t, err)
	})
}

func TestManager_ApproveReject(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("approve marks the item approved", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)
		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		require.NoError(t, err)

		approved, err := env.manager.Approve(ctx, env.orgID, item.ID, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, content.ApprovalApproved, approved.ApprovalStatus)
		assert.Equal(t, content.StatusPending, approved.Status)
	})

	t.Run("approve with past schedule enqueues an immediate publish job", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)
		past := time.Now().Add(-time.Minute)
		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter),
			content.QueueOptions{ScheduledFor: &past})
		require.NoError(t, err)
		require.Equal(t, content.StatusPending, item.Status)

		approved, err := env.manager.Approve(ctx, env.orgID, item.ID, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, content.StatusScheduled, approved.Status)

		page, err := env.queue.List(ctx, jobs.ListParams{OrganizationID: env.orgID})
		require.NoError(t, err)
		require.Len(t, page.Jobs, 1)

		job := page.Jobs[0]
		assert.Equal(t, content.PublishJobType, job.Type)
		assert.Equal(t, jobs.PriorityHigh, job.Priority)

		var payload content.PublishJobPayload
		require.NoError(t, json.Unmarshal(job.Payload, &payload))
		assert.Equal(t, item.ID, payload.ContentID)
	})

	t.Run("double approve is rejected", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)
		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		require.NoError(t, err)

		_, err = env.manager.Approve(ctx, env.orgID, item.ID, uuid.New())
		require.NoError(t, err)
		_, err = env.manager.Approve(ctx, env.orgID, item.ID, uuid.New())
		assert.ErrorIs(t, err, content.ErrNotPendingApproval)
	})

	t.Run("reject is terminal and keeps the reason", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)
		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		require.NoError(t, err)

		rejected, err := env.manager.Reject(ctx, env.orgID, item.ID, "off brand")
		require.NoError(t, err)
		assert.Equal(t, content.StatusRejected, rejected.Status)
		assert.Equal(t, content.ApprovalRejected, rejected.ApprovalStatus)
		require.NotNil(t, rejected.RejectionReason)
		assert.Equal(t, "off brand", *rejected.RejectionReason)

		// A rejected item can never be scheduled.
		_, err = env.manager.Schedule(ctx, env.orgID, item.ID, time.Now().Add(time.Hour))
		assert.Error(t, err)
	})

	t.Run("cross-tenant access reports not found", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)
		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		require.NoError(t, err)

		_, err = env.manager.Approve(ctx, uuid.New(), item.ID, uuid.New())
		assert.ErrorIs(t, err, content.ErrItemNotFound)
	})
}

func TestManager_Schedule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("approved item moves to scheduled", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)
		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		require.NoError(t, err)
		_, err = env.manager.Approve(ctx, env.orgID, item.ID, uuid.New())
		require.NoError(t, err)

		at := time.Now().Add(time.Hour)
		scheduled, err := env.manager.Schedule(ctx, env.orgID, item.ID, at)
		require.NoError(t, err)
		assert.Equal(t, content.StatusScheduled, scheduled.Status)
		require.NotNil(t, scheduled.ScheduledFor)
		assert.True(t, scheduled.ScheduledFor.Equal(at))
	})

	t.Run("past time is rejected", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)
		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		require.NoError(t, err)

		_, err = env.manager.Schedule(ctx, env.orgID, item.ID, time.Now().Add(-time.Minute))
		assert.ErrorIs(t, err, content.ErrScheduleInPast)
	})

	t.Run("unapproved item cannot be scheduled in review mode", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)
		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		require.NoError(t, err)

		_, err = env.manager.Schedule(ctx, env.orgID, item.ID, time.Now().Add(time.Hour))
		assert.ErrorIs(t, err, content.ErrNotApproved)
	})

	t.Run("auto queue items schedule without approval", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeAutoQueue, publisher.PlatformTwitter)
		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		require.NoError(t, err)
		require.Equal(t, content.ApprovalPending, item.ApprovalStatus)

		scheduled, err := env.manager.Schedule(ctx, env.orgID, item.ID, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, content.StatusScheduled, scheduled.Status)
	})

	t.Run("unschedule returns the item to pending", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)
		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		require.NoError(t, err)
		_, err = env.manager.Approve(ctx, env.orgID, item.ID, uuid.New())
		require.NoError(t, err)
		_, err = env.manager.Schedule(ctx, env.orgID, item.ID, time.Now().Add(time.Hour))
		require.NoError(t, err)

		unscheduled, err := env.manager.Unschedule(ctx, env.orgID, item.ID)
		require.NoError(t, err)
		assert.Equal(t, content.StatusPending, unscheduled.Status)
		assert.Nil(t, unscheduled.ScheduledFor)
	})
}

func TestManager_PublishNow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("without dispatcher configured", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)
		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		require.NoError(t, err)

		_, err = env.manager.PublishNow(ctx, env.orgID, item.ID)
		assert.Error(t, err)
	})

	t.Run("rejected items are never dispatched", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, autopilot.ModeReview, publisher.PlatformTwitter)
		item, err := env.manager.QueueContent(ctx, env.generated(publisher.PlatformTwitter), content.QueueOptions{})
		require.NoError(t, err)
		_, err = env.manager.Reject(ctx, env.orgID, item.ID, "")
		require.NoError(t, err)

		called := false
		manager, err := content.NewManager(env.store, env.configs, env.accounts, env.queue,
			content.WithDispatcher(dispatcherFunc(func(ctx context.Context, _ *content.Item) ([]content.DispatchResult, error) {
				called = true
				return nil, nil
			})))
		require.NoError(t, err)

		_, err = manager.PublishNow(ctx, env.orgID, item.ID)
		assert.ErrorIs(t, err, content.ErrNotPublishable)
		assert.False(t, called)
	})
}

type dispatcherFunc func(ctx context.Context, item *content.Item) ([]content.DispatchResult, error)

func (f dispatcherFunc) DispatchItem(ctx context.Context, item *content.Item) ([]content.DispatchResult, error) {
	return f(ctx, item)
}
