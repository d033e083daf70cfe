package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/postflowhq/postflow/pkg/validator"
)

// DefaultOrgJobLimit caps outstanding (pending + running) jobs per organization.
const DefaultOrgJobLimit = 25

// PayloadValidator checks a raw payload against the schema of one job type.
// A nil or empty return means the payload is valid.
type PayloadValidator func(payload json.RawMessage) validator.ValidationErrors

// Queue is the job submission and inspection API. Execution happens in
// Worker; the queue itself never runs handlers.
type Queue struct {
	store       Store
	orgJobLimit int
	logger      *slog.Logger

	mu         sync.RWMutex
	validators map[Type]PayloadValidator
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithOrgJobLimit overrides the per-organization outstanding job limit.
func WithOrgJobLimit(limit int) QueueOption {
	return func(q *Queue) {
		if limit > 0 {
			q.orgJobLimit = limit
		}
	}
}

// WithQueueLogger sets the logger used for queue operations.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// NewQueue creates a job queue backed by the given store.
func NewQueue(store Store, opts ...QueueOption) (*Queue, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	q := &Queue{
		store:       store,
		orgJobLimit: DefaultOrgJobLimit,
		logger:      slog.Default(),
		validators:  make(map[Type]PayloadValidator),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

// RegisterType registers a job type and its payload schema. Jobs of
// unregistered types are rejected at enqueue time.
func (q *Queue) RegisterType(jobType Type, validate PayloadValidator) error {
	if validate == nil {
		return fmt.Errorf("validator for job type %q cannot be nil", jobType)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.validators[jobType]; exists {
		return fmt.Errorf("%w: %q", ErrTypeAlreadyRegistered, jobType)
	}

	q.validators[jobType] = validate
	return nil
}

// Enqueue validates the payload, runs admission control, and inserts a
// pending job. Validation and admission failures are synchronous and leave
// no partial state behind.
func (q *Queue) Enqueue(ctx context.Context, params EnqueueParams) (*Job, error) {
	if params.Payload == nil {
		return nil, ErrPayloadNil
	}

	payload, err := json.Marshal(params.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of type %T: %w", params.Payload, err)
	}

	q.mu.RLock()
	validate, ok := q.validators[params.Type]
	q.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTypeNotRegistered, params.Type)
	}

	if issues := validate(payload); len(issues) > 0 {
		return nil, &PayloadValidationError{Type: params.Type, Issues: issues}
	}

	if err := q.checkAdmission(ctx, params.OrganizationID); err != nil {
		return nil, err
	}

	priority := params.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("invalid priority %q", priority)
	}

	now := time.Now()
	runAt := params.RunAt
	if runAt.IsZero() {
		runAt = now
	}

	job := &Job{
		ID:             uuid.New(),
		Type:           params.Type,
		OrganizationID: params.OrganizationID,
		BrandID:        params.BrandID,
		Payload:        payload,
		Priority:       priority,
		Status:         StatusPending,
		RunAt:          runAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := q.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job of type %q: %w", job.Type, err)
	}

	q.logger.InfoContext(ctx, "job enqueued",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)),
		slog.String("organization_id", job.OrganizationID.String()),
		slog.String("priority", string(job.Priority)))

	return job, nil
}

// List returns a stable-ordered, cursor-paginated page of the
// organization's jobs. An empty result is a valid page, never an error.
func (q *Queue) List(ctx context.Context, params ListParams) (*Page, error) {
	if params.Limit <= 0 || params.Limit > MaxPageSize {
		params.Limit = MaxPageSize
	}
	return q.store.ListJobs(ctx, params)
}

// Retry creates a new pending job from a failed one: same type, payload,
// and brand, priority raised to high, with a back-reference to the original.
// The failed record is never touched. Admission control applies to the new
// job like any other submission.
func (q *Queue) Retry(ctx context.Context, orgID, jobID uuid.UUID) (*Job, error) {
	original, err := q.store.GetJob(ctx, orgID, jobID)
	if err != nil {
		return nil, err
	}

	if original.Status != StatusFailed {
		return nil, fmt.Errorf("%w: job %s is %s", ErrNotRetryable, jobID, original.Status)
	}

	if err := q.checkAdmission(ctx, orgID); err != nil {
		return nil, err
	}

	now := time.Now()
	retry := &Job{
		ID:             uuid.New(),
		Type:           original.Type,
		OrganizationID: original.OrganizationID,
		BrandID:        original.BrandID,
		Payload:        original.Payload,
		Priority:       PriorityHigh,
		Status:         StatusPending,
		RunAt:          now,
		RetriedFrom:    &original.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := q.store.CreateJob(ctx, retry); err != nil {
		return nil, fmt.Errorf("failed to create retry for job %s: %w", jobID, err)
	}

	q.logger.InfoContext(ctx, "job retried",
		slog.String("job_id", retry.ID.String()),
		slog.String("retried_from", original.ID.String()),
		slog.String("organization_id", orgID.String()))

	return retry, nil
}

// Cancel transitions a pending job to cancelled. Running jobs cannot be
// interrupted mid-flight.
func (q *Queue) Cancel(ctx context.Context, orgID, jobID uuid.UUID) error {
	if err := q.store.CancelJob(ctx, orgID, jobID); err != nil {
		return err
	}

	q.logger.InfoContext(ctx, "job cancelled",
		slog.String("job_id", jobID.String()),
		slog.String("organization_id", orgID.String()))

	return nil
}

// checkAdmission enforces the per-organization outstanding job limit.
func (q *Queue) checkAdmission(ctx context.Context, orgID uuid.UUID) error {
	count, err := q.store.CountActiveJobs(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to count active jobs for organization %s: %w", orgID, err)
	}

	if count >= q.orgJobLimit {
		return &TooManyJobsError{
			OrganizationID: orgID,
			CurrentCount:   count,
			Limit:          q.orgJobLimit,
		}
	}

	return nil
}
