package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of background work a job performs. Types are
// registered together with their payload schema before any job of that
// type can be enqueued.
type Type string

// Priority orders pending jobs for execution.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Valid reports whether the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// rank maps priority to an orderable weight, higher runs first.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the status counts against the organization's
// admission-control limit.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning
}

// Job is a unit of asynchronous background work scoped to one organization.
// A failed job is never mutated back to pending; Retry creates a sibling
// job and leaves the failed record immutable for audit.
type Job struct {
	ID             uuid.UUID       `json:"id"`
	Type           Type            `json:"type"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	BrandID        *uuid.UUID      `json:"brand_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Priority       Priority        `json:"priority"`
	Status         Status          `json:"status"`
	RunAt          time.Time       `json:"run_at"`
	AttemptCount   int             `json:"attempt_count"`
	LastError      *string         `json:"last_error,omitempty"`
	RetriedFrom    *uuid.UUID      `json:"retried_from,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// EnqueueParams describes a job submission.
type EnqueueParams struct {
	Type           Type
	OrganizationID uuid.UUID
	BrandID        *uuid.UUID
	Payload        any
	Priority       Priority  // defaults to PriorityNormal
	RunAt          time.Time // defaults to now
}

// ListParams filters and paginates job listings. Zero-value filters are ignored.
type ListParams struct {
	OrganizationID uuid.UUID
	Status         Status
	Type           Type
	BrandID        uuid.UUID
	Limit          int // capped at MaxPageSize
	Cursor         string
}

// MaxPageSize caps List page sizes.
const MaxPageSize = 100

// Page is one page of jobs plus the total match count.
type Page struct {
	Jobs       []Job  `json:"jobs"`
	Total      int    `json:"total"`
	NextCursor string `json:"next_cursor,omitempty"`
}
