package jobs

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store for tests and local development. The single
// mutex makes every operation, including ClaimNextJob, atomic.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[uuid.UUID]*Job),
	}
}

// CreateJob implements Store.
func (s *MemoryStore) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job with ID %s already exists", job.ID)
	}

	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	return nil
}

// GetJob implements Store.
func (s *MemoryStore) GetJob(ctx context.Context, orgID, jobID uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	// A job belonging to another organization reports the same error as a
	// nonexistent one.
	if !exists || job.OrganizationID != orgID {
		return nil, ErrJobNotFound
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements Store.
func (s *MemoryStore) ListJobs(ctx context.Context, params ListParams) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Job
	for _, job := range s.jobs {
		if job.OrganizationID != params.OrganizationID {
			continue
		}
		if params.Status != "" && job.Status != params.Status {
			continue
		}
		if params.Type != "" && job.Type != params.Type {
			continue
		}
		if params.BrandID != uuid.Nil && (job.BrandID == nil || *job.BrandID != params.BrandID) {
			continue
		}
		matched = append(matched, *job)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	total := len(matched)

	if params.Cursor != "" {
		at, id, err := decodeJobCursor(params.Cursor)
		if err != nil {
			return nil, err
		}
		idx := 0
		for idx < len(matched) {
			j := matched[idx]
			if j.CreatedAt.Before(at) || (j.CreatedAt.Equal(at) && j.ID.String() < id) {
				break
			}
			idx++
		}
		matched = matched[idx:]
	}

	limit := params.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	page := &Page{Total: total}
	if len(matched) > limit {
		page.Jobs = matched[:limit]
		last := matched[limit-1]
		page.NextCursor = encodeJobCursor(last.CreatedAt, last.ID)
	} else {
		page.Jobs = matched
	}

	return page, nil
}

// CountActiveJobs implements Store.
func (s *MemoryStore) CountActiveJobs(ctx context.Context, orgID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, job := range s.jobs {
		if job.OrganizationID == orgID && job.Status.Active() {
			count++
		}
	}
	return count, nil
}

// ClaimNextJob implements Store. The store mutex guarantees two concurrent
// claims never receive the same job.
func (s *MemoryStore) ClaimNextJob(ctx context.Context, now time.Time) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *Job
	for _, job := range s.jobs {
		if job.Status != StatusPending || job.RunAt.After(now) {
			continue
		}
		if best == nil || claimOrderBefore(job, best) {
			best = job
		}
	}

	if best == nil {
		return nil, ErrNoJobToClaim
	}

	best.Status = StatusRunning
	best.AttemptCount++
	best.UpdatedAt = now

	jobCopy := *best
	return &jobCopy, nil
}

// claimOrderBefore reports whether a should be claimed before b:
// priority desc, runAt asc, createdAt asc.
func claimOrderBefore(a, b *Job) bool {
	if a.Priority.rank() != b.Priority.rank() {
		return a.Priority.rank() > b.Priority.rank()
	}
	if !a.RunAt.Equal(b.RunAt) {
		return a.RunAt.Before(b.RunAt)
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// CompleteJob implements Store.
func (s *MemoryStore) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	return s.transition(jobID, StatusRunning, StatusCompleted, nil)
}

// FailJob implements Store.
func (s *MemoryStore) FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error {
	return s.transition(jobID, StatusRunning, StatusFailed, &errorMsg)
}

// CancelJob implements Store.
func (s *MemoryStore) CancelJob(ctx context.Context, orgID, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.OrganizationID != orgID {
		return ErrJobNotFound
	}

	if job.Status != StatusPending {
		return fmt.Errorf("%w: job %s is %s", ErrNotCancellable, jobID, job.Status)
	}

	job.Status = StatusCancelled
	job.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) transition(jobID uuid.UUID, from, to Status, errorMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}

	if job.Status != from {
		return fmt.Errorf("job %s is %s, expected %s", jobID, job.Status, from)
	}

	job.Status = to
	job.LastError = errorMsg
	job.UpdatedAt = time.Now()
	return nil
}

func encodeJobCursor(at time.Time, id uuid.UUID) string {
	raw := fmt.Sprintf("%d:%s", at.UnixNano(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeJobCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", ErrInvalidCursor
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return time.Time{}, "", ErrInvalidCursor
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", ErrInvalidCursor
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return time.Time{}, "", ErrInvalidCursor
	}
	return time.Unix(0, nanos), parts[1], nil
}
