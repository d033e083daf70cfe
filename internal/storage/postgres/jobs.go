package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/postflowhq/postflow/pkg/jobs"
)

// JobStore is the PostgreSQL jobs.Store. Claim atomicity rides on
// FOR UPDATE SKIP LOCKED, so any number of workers can poll the same
// table without handing out a job twice.
type JobStore struct {
	pool *pgxpool.Pool
}

// NewJobStore creates a jobs store backed by the given pool.
func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

const jobColumns = `id, type, organization_id, brand_id, payload, priority, status, run_at, attempt_count, last_error, retried_from, created_at, updated_at`

func scanJob(row pgx.Row) (*jobs.Job, error) {
	var job jobs.Job
	err := row.Scan(
		&job.ID, &job.Type, &job.OrganizationID, &job.BrandID, &job.Payload,
		&job.Priority, &job.Status, &job.RunAt, &job.AttemptCount,
		&job.LastError, &job.RetriedFrom, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *JobStore) CreateJob(ctx context.Context, job *jobs.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, job.ID, job.Type, job.OrganizationID, job.BrandID, job.Payload,
		job.Priority, job.Status, job.RunAt, job.AttemptCount,
		job.LastError, job.RetriedFrom, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, orgID, jobID uuid.UUID) (*jobs.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE id = $1 AND organization_id = $2
	`, jobID, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, jobs.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to fetch job: %w", err)
	}
	return job, nil
}

func (s *JobStore) ListJobs(ctx context.Context, params jobs.ListParams) (*jobs.Page, error) {
	limit := params.Limit
	if limit <= 0 || limit > jobs.MaxPageSize {
		limit = jobs.MaxPageSize
	}

	where := "organization_id = $1"
	args := []any{params.OrganizationID}

	if params.Status != "" {
		args = append(args, params.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if params.Type != "" {
		args = append(args, params.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if params.BrandID != uuid.Nil {
		args = append(args, params.BrandID)
		where += fmt.Sprintf(" AND brand_id = $%d", len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	if params.Cursor != "" {
		at, id, err := decodeCursor(params.Cursor)
		if err != nil {
			return nil, jobs.ErrInvalidCursor
		}
		args = append(args, at, id)
		where += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, limit)
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	page := &jobs.Page{Total: total}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		page.Jobs = append(page.Jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	if len(page.Jobs) == limit {
		last := page.Jobs[len(page.Jobs)-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}

	return page, nil
}

func (s *JobStore) CountActiveJobs(ctx context.Context, orgID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM jobs
		WHERE organization_id = $1 AND status IN ('pending', 'running')
	`, orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}
	return count, nil
}

func (s *JobStore) ClaimNextJob(ctx context.Context, now time.Time) (*jobs.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `
		UPDATE jobs SET status = 'running', attempt_count = attempt_count + 1, updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND run_at <= $1
			ORDER BY
				CASE priority WHEN 'high' THEN 2 WHEN 'normal' THEN 1 ELSE 0 END DESC,
				run_at ASC,
				created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, jobs.ErrNoJobToClaim
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

func (s *JobStore) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'running'
	`, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return jobs.ErrJobNotFound
	}
	return nil
}

func (s *JobStore) FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'failed', last_error = $2, updated_at = now()
		WHERE id = $1 AND status = 'running'
	`, jobID, errorMsg)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return jobs.ErrJobNotFound
	}
	return nil
}

func (s *JobStore) CancelJob(ctx context.Context, orgID, jobID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND status = 'pending'
	`, jobID, orgID)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either absent in this org or not pending; look again to report
		// the right error.
		if _, err := s.GetJob(ctx, orgID, jobID); err != nil {
			return err
		}
		return jobs.ErrNotCancellable
	}
	return nil
}
