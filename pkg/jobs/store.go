package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence surface for jobs. Implementations must make
// ClaimNextJob atomic: two concurrent claims must never both receive the
// same job.
type Store interface {
	// CreateJob inserts a new job.
	CreateJob(ctx context.Context, job *Job) error

	// GetJob returns the job by id within the organization scope, or
	// ErrJobNotFound when it does not exist there.
	GetJob(ctx context.Context, orgID, jobID uuid.UUID) (*Job, error)

	// ListJobs returns jobs matching the params, creation time descending
	// with id as tiebreak, cursor-paginated.
	ListJobs(ctx context.Context, params ListParams) (*Page, error)

	// CountActiveJobs returns how many pending or running jobs the
	// organization has. Feeds admission control.
	CountActiveJobs(ctx context.Context, orgID uuid.UUID) (int, error)

	// ClaimNextJob atomically transitions the next eligible pending job
	// (priority desc, runAt asc, createdAt asc, runAt <= now) to running
	// and returns it. Returns ErrNoJobToClaim when nothing is eligible.
	ClaimNextJob(ctx context.Context, now time.Time) (*Job, error)

	// CompleteJob transitions a running job to completed.
	CompleteJob(ctx context.Context, jobID uuid.UUID) error

	// FailJob transitions a running job to failed and records the error.
	FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error

	// CancelJob transitions a pending job to cancelled within the
	// organization scope. Returns ErrNotCancellable for any other state.
	CancelJob(ctx context.Context, orgID, jobID uuid.UUID) error
}
