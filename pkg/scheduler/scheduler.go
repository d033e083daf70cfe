// Package scheduler dispatches due content to social platforms on a
// recurring tick, enforcing each brand's autopilot posting policy.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/postflowhq/postflow/pkg/autopilot"
	"github.com/postflowhq/postflow/pkg/content"
	"github.com/postflowhq/postflow/pkg/publisher"
	"github.com/postflowhq/postflow/pkg/publog"
)

// Default tunables.
const (
	DefaultMaxAttempts     = 3
	DefaultConcurrency     = 4
	DefaultDispatchTimeout = 30 * time.Second
)

// Scheduler runs the publish tick: it selects due content, applies the
// brand's autopilot policy and platform rate limits, and dispatches each
// variation through the publisher registry, recording every attempt in the
// publishing log.
//
// The tick is idempotent. Rate-limit and posting-day misses leave items
// scheduled without a log entry, so running it every minute (or twice in
// the same minute) only ever publishes what is actually due and allowed.
type Scheduler struct {
	items    content.Store
	log      publog.Store
	configs  autopilot.Source
	accounts publisher.AccountSource
	registry *publisher.Registry

	maxAttempts     int
	concurrency     int
	dispatchTimeout time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxAttempts sets how many dispatch attempts a variation gets before
// it fails permanently. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(s *Scheduler) {
		if n >= 1 {
			s.maxAttempts = n
		}
	}
}

// WithConcurrency bounds how many brand+platform pairs dispatch at once.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n >= 1 {
			s.concurrency = n
		}
	}
}

// WithDispatchTimeout caps a single platform publish call.
func WithDispatchTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.dispatchTimeout = d
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a publish scheduler.
func New(items content.Store, log publog.Store, configs autopilot.Source, accounts publisher.AccountSource, registry *publisher.Registry, opts ...Option) (*Scheduler, error) {
	if items == nil {
		return nil, errors.New("content store cannot be nil")
	}
	if log == nil {
		return nil, errors.New("publishing log cannot be nil")
	}
	if configs == nil {
		return nil, errors.New("autopilot source cannot be nil")
	}
	if accounts == nil {
		return nil, errors.New("account source cannot be nil")
	}
	if registry == nil {
		return nil, errors.New("publisher registry cannot be nil")
	}

	s := &Scheduler{
		items:           items,
		log:             log,
		configs:         configs,
		accounts:        accounts,
		registry:        registry,
		maxAttempts:     DefaultMaxAttempts,
		concurrency:     DefaultConcurrency,
		dispatchTimeout: DefaultDispatchTimeout,
		logger:          slog.Default(),
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// pairKey groups work units that must dispatch one at a time: the
// daily-cap and spacing checks read the publishing log, so two concurrent
// dispatches for the same brand+platform could both pass a limit only one
// of them should.
type pairKey struct {
	brandID  string
	platform publisher.Platform
}

// unit is one variation of one due item queued for dispatch.
type unit struct {
	item      *content.Item
	variation *content.Variation
}

// tickState tracks per-item mutations across concurrently running pairs.
type tickState struct {
	mu      sync.Mutex
	touched map[string]*content.Item
}

// Tick runs one pass of the publish schedule. It returns an error only on
// infrastructure failures (store unreachable); per-variation dispatch
// failures are recorded in the publishing log, not returned.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()

	due, err := s.items.ListDue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list due content: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	// Pointers into this slice are shared between pairs; each pair touches
	// only its own variations, the state mutex guards item-level flags.
	items := make([]*content.Item, len(due))
	for i := range due {
		items[i] = &due[i]
	}

	pairs := make(map[pairKey][]unit)
	for _, item := range items {
		for i := range item.Variations {
			v := &item.Variations[i]
			if v.Status != content.VariationPending && v.Status != content.VariationRetryPending {
				continue
			}
			key := pairKey{brandID: item.BrandID.String(), platform: v.Platform}
			pairs[key] = append(pairs[key], unit{item: item, variation: v})
		}
	}

	state := &tickState{touched: make(map[string]*content.Item)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for key, units := range pairs {
		g.Go(func() error {
			return s.dispatchPair(gctx, now, key, units, state)
		})
	}
	// A failing pair must not block resolution of the pairs that finished:
	// a dispatched variation without item finalization would leave the item
	// scheduled forever.
	tickErr := g.Wait()
	if err := s.resolveItems(ctx, items); err != nil {
		tickErr = errors.Join(tickErr, err)
	}
	return tickErr
}

// dispatchPair runs one brand+platform pair's due variations in order,
// oldest schedule first, re-checking the rate limits before each dispatch
// so a success earlier in the pair counts against the next one.
func (s *Scheduler) dispatchPair(ctx context.Context, now time.Time, key pairKey, units []unit, state *tickState) error {
	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i].variation.ScheduledAt, units[j].variation.ScheduledAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.Before(*b)
	})

	brandID := units[0].item.BrandID

	cfg, err := s.configs.Get(ctx, brandID)
	if err != nil {
		if errors.Is(err, autopilot.ErrConfigNotFound) {
			// A brand without a config row has autopilot off; its content
			// stays scheduled until someone configures the brand.
			return nil
		}
		return fmt.Errorf("failed to resolve autopilot config for brand %s: %w", brandID, err)
	}

	if !cfg.Enabled {
		return nil
	}
	if !cfg.PostingDays.Allows(now.Weekday()) {
		return nil
	}

	if !cfg.PlatformEnabled(key.platform) {
		for _, u := range units {
			s.failVariation(ctx, now, u, "platform disabled for brand", true, state)
		}
		return nil
	}

	for _, u := range units {
		allowed, err := s.withinLimits(ctx, now, cfg, brandID, key.platform)
		if err != nil {
			return err
		}
		if !allowed {
			// The rest of the pair is rate limited too; leave everything
			// scheduled for the next tick.
			return nil
		}
		if err := s.dispatchUnit(ctx, now, u, state); err != nil {
			return err
		}
	}

	return nil
}

// withinLimits applies the brand's daily cap and minimum spacing against
// the publishing log, the single source of truth for both.
func (s *Scheduler) withinLimits(ctx context.Context, now time.Time, cfg *autopilot.Config, brandID uuid.UUID, platform publisher.Platform) (bool, error) {
	if cfg.MaxPostsPerDay > 0 {
		count, err := s.log.CountSuccessSince(ctx, brandID, platform, now.Add(-24*time.Hour))
		if err != nil {
			return false, fmt.Errorf("failed to count published posts for brand %s: %w", brandID, err)
		}
		if count >= cfg.MaxPostsPerDay {
			return false, nil
		}
	}

	if cfg.MinHoursBetween > 0 {
		last, err := s.log.LastSuccessAt(ctx, brandID, platform)
		if err != nil {
			return false, fmt.Errorf("failed to read last publish time for brand %s: %w", brandID, err)
		}
		if last != nil && now.Sub(*last) < cfg.MinSpacing() {
			return false, nil
		}
	}

	return true, nil
}

// dispatchUnit publishes one variation and records the attempt.
func (s *Scheduler) dispatchUnit(ctx context.Context, now time.Time, u unit, state *tickState) error {
	item, v := u.item, u.variation

	account, err := s.accounts.Account(ctx, item.BrandID, v.Platform)
	if err != nil {
		if errors.Is(err, publisher.ErrNoAccountMapped) {
			// The account was disconnected after queueing. Permanent until
			// someone reconnects; no point burning attempts on it.
			s.failVariation(ctx, now, u, "no social account mapped", true, state)
			return nil
		}
		return fmt.Errorf("failed to resolve account for brand %s on %s: %w", item.BrandID, v.Platform, err)
	}

	pub, err := s.registry.Resolve(v.Platform)
	if err != nil {
		s.failVariation(ctx, now, u, err.Error(), true, state)
		return nil
	}

	dctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	result, err := pub.Publish(dctx, *account, publisher.Post{
		Text:     v.Content,
		Hashtags: v.Hashtags,
	})
	cancel()

	if err != nil {
		terminal := false
		state.mu.Lock()
		v.AttemptCount++
		if v.AttemptCount >= s.maxAttempts {
			terminal = true
		}
		state.mu.Unlock()

		s.failVariation(ctx, now, u, err.Error(), terminal, state)

		s.logger.ErrorContext(ctx, "publish dispatch failed",
			slog.String("content_id", item.ID.String()),
			slog.String("platform", v.Platform.String()),
			slog.Int("attempt", v.AttemptCount),
			slog.String("error", err.Error()))
		return nil
	}

	state.mu.Lock()
	v.Status = content.VariationPublished
	v.PublishedPostID = &result.PlatformPostID
	v.AttemptCount++
	state.touched[item.ID.String()] = item
	state.mu.Unlock()

	if err := s.items.UpdateVariation(ctx, v); err != nil {
		return fmt.Errorf("failed to persist variation %s: %w", v.ID, err)
	}

	entry := &publog.Entry{
		ID:             uuid.New(),
		OrganizationID: item.OrganizationID,
		BrandID:        item.BrandID,
		ContentID:      item.ID,
		VariationID:    v.ID,
		Platform:       v.Platform,
		Status:         publog.StatusSuccess,
		AttemptedAt:    now,
		PlatformPostID: &result.PlatformPostID,
	}
	if err := s.log.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append publishing log entry: %w", err)
	}

	s.logger.InfoContext(ctx, "content published",
		slog.String("content_id", item.ID.String()),
		slog.String("platform", v.Platform.String()),
		slog.String("platform_post_id", result.PlatformPostID))

	return nil
}

// failVariation records a failed attempt. Terminal failures flip the
// variation to failed and flag the item for review; transient ones keep
// the variation pending so the next tick retries it.
func (s *Scheduler) failVariation(ctx context.Context, now time.Time, u unit, reason string, terminal bool, state *tickState) {
	item, v := u.item, u.variation

	state.mu.Lock()
	v.LastError = &reason
	if terminal {
		v.Status = content.VariationFailed
		item.NeedsAttention = true
	} else {
		v.Status = content.VariationRetryPending
	}
	state.touched[item.ID.String()] = item
	state.mu.Unlock()

	if err := s.items.UpdateVariation(ctx, v); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist variation failure",
			slog.String("variation_id", v.ID.String()),
			slog.String("error", err.Error()))
	}

	status := publog.StatusRetryPending
	if terminal {
		status = publog.StatusFailed
	}
	entry := &publog.Entry{
		ID:             uuid.New(),
		OrganizationID: item.OrganizationID,
		BrandID:        item.BrandID,
		ContentID:      item.ID,
		VariationID:    v.ID,
		Platform:       v.Platform,
		Status:         status,
		AttemptedAt:    now,
		Error:          &reason,
	}
	if err := s.log.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to append publishing log entry",
			slog.String("variation_id", v.ID.String()),
			slog.String("error", err.Error()))
	}
}

// resolveItems finalizes items whose variations have all reached a
// terminal state: published when at least one succeeded, failed otherwise.
// Items with pending variations stay scheduled for the next tick.
func (s *Scheduler) resolveItems(ctx context.Context, items []*content.Item) error {
	var errs []error
	for _, item := range items {
		anySuccess, anyPending := false, false
		for i := range item.Variations {
			switch item.Variations[i].Status {
			case content.VariationPublished:
				anySuccess = true
			case content.VariationPending, content.VariationRetryPending:
				anyPending = true
			}
		}

		if anyPending {
			if item.NeedsAttention {
				item.UpdatedAt = s.now()
				if err := s.items.UpdateItem(ctx, item); err != nil {
					errs = append(errs, fmt.Errorf("failed to persist item %s: %w", item.ID, err))
				}
			}
			continue
		}

		event := content.EventFail
		if anySuccess {
			event = content.EventPublish
		}
		next, err := content.Transition(ctx, item.Status, event)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to finalize item %s: %w", item.ID, err))
			continue
		}
		item.Status = next
		if !anySuccess {
			item.NeedsAttention = true
		}
		item.UpdatedAt = s.now()

		if err := s.items.UpdateItem(ctx, item); err != nil {
			errs = append(errs, fmt.Errorf("failed to persist item %s: %w", item.ID, err))
			continue
		}

		s.logger.InfoContext(ctx, "content item finalized",
			slog.String("content_id", item.ID.String()),
			slog.String("status", string(item.Status)))
	}
	return errors.Join(errs...)
}

// DispatchItem publishes every pending variation of the item right away,
// skipping schedule and rate-limit gates. Backs the manual publish-now
// action and the high-priority publish job.
func (s *Scheduler) DispatchItem(ctx context.Context, item *content.Item) ([]content.DispatchResult, error) {
	if item == nil {
		return nil, errors.New("item cannot be nil")
	}

	now := s.now()
	state := &tickState{touched: make(map[string]*content.Item)}
	results := make([]content.DispatchResult, 0, len(item.Variations))

	for i := range item.Variations {
		v := &item.Variations[i]
		if v.Status != content.VariationPending && v.Status != content.VariationRetryPending {
			continue
		}
		if v.Status == content.VariationRetryPending {
			v.Status = content.VariationPending
		}

		if err := s.dispatchUnit(ctx, now, unit{item: item, variation: v}, state); err != nil {
			return nil, err
		}

		res := content.DispatchResult{Platform: v.Platform, Success: v.Status == content.VariationPublished}
		if v.PublishedPostID != nil {
			res.PlatformPostID = *v.PublishedPostID
		}
		if !res.Success {
			res.Error = "dispatch failed"
			if v.LastError != nil {
				res.Error = *v.LastError
			}
		}
		results = append(results, res)
	}

	if err := s.resolveItems(ctx, []*content.Item{item}); err != nil {
		return results, err
	}

	return results, nil
}
