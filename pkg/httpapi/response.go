package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/postflowhq/postflow/pkg/content"
	"github.com/postflowhq/postflow/pkg/jobs"
	"github.com/postflowhq/postflow/pkg/publog"
	"github.com/postflowhq/postflow/pkg/statemachine"
	"github.com/postflowhq/postflow/pkg/validator"
)

// envelope is the standard JSON response body.
type envelope struct {
	Code  string         `json:"code,omitempty"`
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *errorDetail   `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
	Meta    map[string]any      `json:"meta,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any, meta map[string]any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Code: "ok", Data: data, Meta: meta})
}

// respondError maps domain errors onto HTTP statuses and the error
// envelope. Unknown errors become opaque 500s so internals never leak.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	detail := &errorDetail{Code: "internal_error", Message: "internal server error"}

	var tooMany *jobs.TooManyJobsError
	var badPayload *jobs.PayloadValidationError
	var fieldErrs validator.ValidationErrors

	switch {
	case errors.As(err, &tooMany):
		status = http.StatusTooManyRequests
		detail.Code = "too_many_jobs"
		detail.Message = tooMany.Error()
		detail.Meta = map[string]any{
			"organization_id": tooMany.OrganizationID.String(),
			"current_count":   tooMany.CurrentCount,
			"limit":           tooMany.Limit,
		}
		w.Header().Set("Retry-After", strconv.Itoa(30))

	case errors.As(err, &badPayload):
		status = http.StatusUnprocessableEntity
		detail.Code = "invalid_payload"
		detail.Message = badPayload.Error()
		detail.Details = badPayload.Issues.ToMap()

	case errors.As(err, &fieldErrs):
		status = http.StatusUnprocessableEntity
		detail.Code = "validation_error"
		detail.Message = "request validation failed"
		detail.Details = fieldErrs.ToMap()

	case errors.Is(err, jobs.ErrJobNotFound),
		errors.Is(err, content.ErrItemNotFound):
		status = http.StatusNotFound
		detail.Code = "not_found"
		detail.Message = err.Error()

	case errors.Is(err, jobs.ErrNotRetryable),
		errors.Is(err, jobs.ErrNotCancellable),
		errors.Is(err, content.ErrNotPendingApproval),
		errors.Is(err, content.ErrNotApproved),
		errors.Is(err, content.ErrNotPublishable),
		// Workflow transition refusals are client state errors, not faults.
		statemachine.IsNoTransitionAvailableError(err),
		statemachine.IsTransitionRejectedError(err):
		status = http.StatusConflict
		detail.Code = "invalid_state"
		detail.Message = err.Error()

	case errors.Is(err, content.ErrScheduleInPast),
		errors.Is(err, content.ErrNoVariations),
		errors.Is(err, jobs.ErrTypeNotRegistered),
		errors.Is(err, jobs.ErrInvalidCursor),
		errors.Is(err, publog.ErrInvalidCursor):
		status = http.StatusUnprocessableEntity
		detail.Code = "unprocessable"
		detail.Message = err.Error()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Code: detail.Code, Error: detail})
}

func respondBadRequest(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(envelope{
		Code:  "bad_request",
		Error: &errorDetail{Code: "bad_request", Message: message},
	})
}
