package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/postflowhq/postflow/pkg/autopilot"
	"github.com/postflowhq/postflow/pkg/jobs"
	"github.com/postflowhq/postflow/pkg/publisher"
	"github.com/postflowhq/postflow/pkg/statemachine"
	"github.com/postflowhq/postflow/pkg/validator"
)

// PublishJobType is the background job kind that publishes one content item.
const PublishJobType = jobs.Type("publish_content")

// PublishJobPayload is the payload of a PublishJobType job.
type PublishJobPayload struct {
	ContentID      uuid.UUID `json:"content_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	BrandID        uuid.UUID `json:"brand_id"`
}

// ValidatePublishJobPayload is the schema registered for PublishJobType.
func ValidatePublishJobPayload(payload json.RawMessage) validator.ValidationErrors {
	var p PublishJobPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		var errs validator.ValidationErrors
		errs.Add("payload", "must be a valid publish job payload")
		return errs
	}
	return validator.Extract(validator.Apply(
		validator.RequiredUUID("content_id", p.ContentID),
		validator.RequiredUUID("organization_id", p.OrganizationID),
		validator.RequiredUUID("brand_id", p.BrandID),
	))
}

// Enqueuer is the slice of the job queue the manager needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, params jobs.EnqueueParams) (*jobs.Job, error)
}

// DispatchResult is the per-platform outcome of an immediate publish.
type DispatchResult struct {
	Platform       publisher.Platform `json:"platform"`
	Success        bool               `json:"success"`
	PlatformPostID string             `json:"platform_post_id,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// Dispatcher performs the actual platform dispatch of an item's variations.
// Implemented by the publish scheduler; the manager stays free of any
// platform API knowledge.
type Dispatcher interface {
	DispatchItem(ctx context.Context, item *Item) ([]DispatchResult, error)
}

// Manager drives content items through the approval workflow: queueing
// generated content, approve/reject, scheduling, and immediate publishing.
type Manager struct {
	store      Store
	configs    autopilot.Source
	accounts   publisher.AccountSource
	enqueuer   Enqueuer
	dispatcher Dispatcher
	workflow   *statemachine.Machine
	logger     *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the manager's logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDispatcher wires the immediate-publish dispatcher. Without it,
// PublishNow returns an error; everything else works.
func WithDispatcher(d Dispatcher) ManagerOption {
	return func(m *Manager) {
		m.dispatcher = d
	}
}

// NewManager creates a content queue manager.
func NewManager(store Store, configs autopilot.Source, accounts publisher.AccountSource, enqueuer Enqueuer, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if configs == nil {
		return nil, fmt.Errorf("autopilot source cannot be nil")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account source cannot be nil")
	}
	if enqueuer == nil {
		return nil, fmt.Errorf("enqueuer cannot be nil")
	}

	m := &Manager{
		store:    store,
		configs:  configs,
		accounts: accounts,
		enqueuer: enqueuer,
		workflow: newWorkflow(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// QueueContent validates generated content and creates the item plus one
// variation per target platform that has both text and a mapped social
// account. Platforms without a mapped account are skipped and logged, never
// an error: a brand connecting a platform later should not block today's
// content.
func (m *Manager) QueueContent(ctx context.Context, generated GeneratedContent, opts QueueOptions) (*Item, error) {
	if err := validator.Apply(
		validator.RequiredUUID("brand_id", generated.BrandID),
		validator.RequiredUUID("organization_id", generated.OrganizationID),
		validator.Required("content", generated.Content),
		validator.NonEmptySlice("target_platforms", generated.TargetPlatforms),
	); err != nil {
		return nil, err
	}

	contentType := generated.ContentType
	if contentType == "" {
		contentType = TypePost
	}

	cfg, err := m.configs.Get(ctx, generated.BrandID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve autopilot config for brand %s: %w", generated.BrandID, err)
	}

	now := time.Now()
	status, approval := initialState(cfg.ApprovalMode, opts.ScheduledFor != nil, opts.AutoApprove)

	item := &Item{
		ID:              uuid.New(),
		OrganizationID:  generated.OrganizationID,
		BrandID:         generated.BrandID,
		Content:         generated.Content,
		ContentType:     contentType,
		Category:        generated.Category,
		TargetPlatforms: generated.TargetPlatforms,
		Status:          status,
		ApprovalStatus:  approval,
		ScheduledFor:    opts.ScheduledFor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, platform := range generated.TargetPlatforms {
		account, err := m.accounts.Account(ctx, generated.BrandID, platform)
		if err != nil {
			m.logger.InfoContext(ctx, "skipping platform without mapped account",
				slog.String("brand_id", generated.BrandID.String()),
				slog.String("platform", platform.String()))
			continue
		}

		text, ok := generated.PlatformContent[platform]
		if !ok || text == "" {
			text = generated.Content
		}

		item.Variations = append(item.Variations, Variation{
			ID:              uuid.New(),
			ItemID:          item.ID,
			Platform:        platform,
			Content:         text,
			Hashtags:        generated.Hashtags[platform],
			CharacterCount:  len([]rune(text)),
			IsWithinLimit:   publisher.WithinLimit(platform, text),
			TargetAccountID: account.ID,
			ScheduledAt:     opts.ScheduledFor,
			Status:          VariationPending,
		})
	}

	if len(item.Variations) == 0 {
		return nil, ErrNoVariations
	}

	if err := m.store.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create content item: %w", err)
	}

	m.logger.InfoContext(ctx, "content queued",
		slog.String("content_id", item.ID.String()),
		slog.String("brand_id", item.BrandID.String()),
		slog.String("status", string(item.Status)),
		slog.Int("variations", len(item.Variations)))

	return item, nil
}

// Approve marks a pending item approved by the given actor. When the item
// already carries a past schedule time, publishing is kicked off right away
// through a high-priority job instead of waiting for the next tick.
func (m *Manager) Approve(ctx context.Context, orgID, itemID, actorID uuid.UUID) (*Item, error) {
	item, err := m.store.GetItem(ctx, orgID, itemID)
	if err != nil {
		return nil, err
	}

	if item.ApprovalStatus != ApprovalPending {
		return nil, fmt.Errorf("%w: item %s is %s", ErrNotPendingApproval, itemID, item.ApprovalStatus)
	}

	item.ApprovalStatus = ApprovalApproved
	item.UpdatedAt = time.Now()

	duePast := item.ScheduledFor != nil && item.ScheduledFor.Before(time.Now())
	if item.ScheduledFor != nil && item.Status == StatusPending {
		next, err := fire(ctx, m.workflow, item.Status, eventSchedule)
		if err != nil {
			return nil, err
		}
		item.Status = next
	}

	if err := m.store.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update content item %s: %w", itemID, err)
	}

	if duePast {
		if _, err := m.enqueuer.Enqueue(ctx, jobs.EnqueueParams{
			Type:           PublishJobType,
			OrganizationID: orgID,
			BrandID:        &item.BrandID,
			Priority:       jobs.PriorityHigh,
			Payload: PublishJobPayload{
				ContentID:      item.ID,
				OrganizationID: item.OrganizationID,
				BrandID:        item.BrandID,
			},
		}); err != nil {
			// The item stays scheduled; the next publish tick picks it up.
			m.logger.ErrorContext(ctx, "failed to enqueue publish job after approval",
				slog.String("content_id", item.ID.String()),
				slog.String("error", err.Error()))
		}
	}

	m.logger.InfoContext(ctx, "content approved",
		slog.String("content_id", item.ID.String()),
		slog.String("actor_id", actorID.String()))

	return item, nil
}

// Reject marks a pending item rejected. Terminal: the item is retained for
// audit but never scheduled or dispatched.
func (m *Manager) Reject(ctx context.Context, orgID, itemID uuid.UUID, reason string) (*Item, error) {
	item, err := m.store.GetItem(ctx, orgID, itemID)
	if err != nil {
		return nil, err
	}

	if item.ApprovalStatus != ApprovalPending {
		return nil, fmt.Errorf("%w: item %s is %s", ErrNotPendingApproval, itemID, item.ApprovalStatus)
	}

	next, err := fire(ctx, m.workflow, item.Status, eventReject)
	if err != nil {
		return nil, err
	}

	item.Status = next
	item.ApprovalStatus = ApprovalRejected
	if reason != "" {
		item.RejectionReason = &reason
	}
	item.UpdatedAt = time.Now()

	if err := m.store.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update content item %s: %w", itemID, err)
	}

	m.logger.InfoContext(ctx, "content rejected",
		slog.String("content_id", item.ID.String()))

	return item, nil
}

// Schedule sets the item's publish time. Requires the item to have cleared
// review, except under auto-queue where a schedule time alone suffices.
func (m *Manager) Schedule(ctx context.Context, orgID, itemID uuid.UUID, at time.Time) (*Item, error) {
	if at.Before(time.Now()) {
		return nil, ErrScheduleInPast
	}

	item, err := m.store.GetItem(ctx, orgID, itemID)
	if err != nil {
		return nil, err
	}

	if !item.ApprovalStatus.Approved() {
		cfg, err := m.configs.Get(ctx, item.BrandID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve autopilot config for brand %s: %w", item.BrandID, err)
		}
		if cfg.ApprovalMode != autopilot.ModeAutoQueue {
			return nil, fmt.Errorf("%w: item %s is %s", ErrNotApproved, itemID, item.ApprovalStatus)
		}
	}

	if item.Status == StatusPending {
		next, err := fire(ctx, m.workflow, item.Status, eventSchedule)
		if err != nil {
			return nil, err
		}
		item.Status = next
	} else if item.Status != StatusScheduled {
		return nil, fmt.Errorf("%w: item %s is %s", ErrNotPublishable, itemID, item.Status)
	}

	item.ScheduledFor = &at
	item.UpdatedAt = time.Now()
	for i := range item.Variations {
		if item.Variations[i].Status == VariationPending {
			item.Variations[i].ScheduledAt = &at
			if err := m.store.UpdateVariation(ctx, &item.Variations[i]); err != nil {
				return nil, fmt.Errorf("failed to update variation %s: %w", item.Variations[i].ID, err)
			}
		}
	}

	if err := m.store.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update content item %s: %w", itemID, err)
	}

	return item, nil
}

// Unschedule returns a scheduled item to the pending queue before it is
// due. Items already past dispatch cannot be pulled back.
func (m *Manager) Unschedule(ctx context.Context, orgID, itemID uuid.UUID) (*Item, error) {
	item, err := m.store.GetItem(ctx, orgID, itemID)
	if err != nil {
		return nil, err
	}

	next, err := fire(ctx, m.workflow, item.Status, eventUnschedule)
	if err != nil {
		return nil, err
	}

	item.Status = next
	item.ScheduledFor = nil
	item.UpdatedAt = time.Now()

	if err := m.store.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update content item %s: %w", itemID, err)
	}

	return item, nil
}

// PublishNow bypasses scheduling and dispatches every variation
// immediately, returning per-platform results. Valid from any state except
// published and rejected.
func (m *Manager) PublishNow(ctx context.Context, orgID, itemID uuid.UUID) ([]DispatchResult, error) {
	if m.dispatcher == nil {
		return nil, fmt.Errorf("no dispatcher configured")
	}

	item, err := m.store.GetItem(ctx, orgID, itemID)
	if err != nil {
		return nil, err
	}

	if item.Status == StatusPublished || item.Status == StatusRejected {
		return nil, fmt.Errorf("%w: item %s is %s", ErrNotPublishable, itemID, item.Status)
	}

	results, err := m.dispatcher.DispatchItem(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch content item %s: %w", itemID, err)
	}

	return results, nil
}

// Get returns an item with its variations within the organization scope.
func (m *Manager) Get(ctx context.Context, orgID, itemID uuid.UUID) (*Item, error) {
	return m.store.GetItem(ctx, orgID, itemID)
}

// List returns items matching the params, newest first.
func (m *Manager) List(ctx context.Context, params ListParams) ([]Item, error) {
	return m.store.ListItems(ctx, params)
}
