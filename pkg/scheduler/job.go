package scheduler

import (
	"context"
	"fmt"

	"github.com/postflowhq/postflow/pkg/content"
	"github.com/postflowhq/postflow/pkg/jobs"
)

// NewPublishJobHandler returns the background job handler for
// content.PublishJobType. Approving an item whose schedule time already
// passed enqueues one of these at high priority so the item does not wait
// for the next tick.
func NewPublishJobHandler(s *Scheduler, items content.Store) jobs.Handler {
	return jobs.NewHandler(content.PublishJobType, func(ctx context.Context, payload content.PublishJobPayload) error {
		item, err := items.GetItem(ctx, payload.OrganizationID, payload.ContentID)
		if err != nil {
			return fmt.Errorf("failed to load content item %s: %w", payload.ContentID, err)
		}

		if item.Status == content.StatusPublished || item.Status == content.StatusRejected {
			// Someone else got here first; nothing to do.
			return nil
		}

		if _, err := s.DispatchItem(ctx, item); err != nil {
			return fmt.Errorf("failed to dispatch content item %s: %w", payload.ContentID, err)
		}
		return nil
	})
}
