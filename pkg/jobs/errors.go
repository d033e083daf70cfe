package jobs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/postflowhq/postflow/pkg/validator"
)

var (
	// ErrStoreNil is returned when a nil store is provided.
	ErrStoreNil = errors.New("store cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload.
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrTypeNotRegistered is returned when enqueueing a job type with no registered schema.
	ErrTypeNotRegistered = errors.New("no payload schema registered for job type")

	// ErrTypeAlreadyRegistered is returned when registering a duplicate job type.
	ErrTypeAlreadyRegistered = errors.New("job type already registered")

	// ErrJobNotFound is returned when a job does not exist in the caller's
	// organization scope. Jobs belonging to other organizations report the
	// same error so existence never leaks across tenants.
	ErrJobNotFound = errors.New("job not found")

	// ErrNotRetryable is returned when retrying a job that is not in failed state.
	ErrNotRetryable = errors.New("only failed jobs can be retried")

	// ErrNotCancellable is returned when cancelling a job that is not pending.
	ErrNotCancellable = errors.New("only pending jobs can be cancelled")

	// ErrInvalidCursor is returned when a pagination cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid pagination cursor")

	// ErrNoJobToClaim signals an empty queue to the worker; it is expected
	// on most ticks and never logged as a failure.
	ErrNoJobToClaim = errors.New("no job available to claim")

	// ErrNoHandlers is returned when a worker starts with no handlers registered.
	ErrNoHandlers = errors.New("no job handlers registered")

	// ErrHandlerNotFound is returned when a claimed job has no registered handler.
	ErrHandlerNotFound = errors.New("no handler registered for job type")
)

// TooManyJobsError is returned when an organization already has the maximum
// number of outstanding (pending + running) jobs.
type TooManyJobsError struct {
	OrganizationID uuid.UUID
	CurrentCount   int
	Limit          int
}

func (e *TooManyJobsError) Error() string {
	return fmt.Sprintf("organization %s has %d outstanding jobs, limit is %d",
		e.OrganizationID, e.CurrentCount, e.Limit)
}

// IsTooManyJobs reports whether err carries a TooManyJobsError.
func IsTooManyJobs(err error) bool {
	var e *TooManyJobsError
	return errors.As(err, &e)
}

// PayloadValidationError is returned when a job payload fails its type's
// schema, carrying the individual field-level issues.
type PayloadValidationError struct {
	Type   Type
	Issues validator.ValidationErrors
}

func (e *PayloadValidationError) Error() string {
	return fmt.Sprintf("invalid payload for job type %q: %s", e.Type, e.Issues.Error())
}

func (e *PayloadValidationError) Unwrap() error {
	return e.Issues
}

// IsPayloadValidation reports whether err carries a PayloadValidationError.
func IsPayloadValidation(err error) bool {
	var e *PayloadValidationError
	return errors.As(err, &e)
}
