package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/postflowhq/postflow/pkg/jobs"
)

type enqueueJobRequest struct {
	Type     string          `json:"type"`
	BrandID  *uuid.UUID      `json:"brand_id,omitempty"`
	Payload  json.RawMessage `json:"payload"`
	Priority string          `json:"priority,omitempty"`
	RunAt    *time.Time      `json:"run_at,omitempty"`
}

func (s *Server) handleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}

	priority := jobs.PriorityNormal
	if req.Priority != "" {
		priority = jobs.Priority(req.Priority)
		if !priority.Valid() {
			respondBadRequest(w, "unknown priority "+strconv.Quote(req.Priority))
			return
		}
	}

	params := jobs.EnqueueParams{
		Type:           jobs.Type(req.Type),
		OrganizationID: organizationID(r.Context()),
		BrandID:        req.BrandID,
		Payload:        req.Payload,
		Priority:       priority,
	}
	if req.RunAt != nil {
		params.RunAt = *req.RunAt
	}

	job, err := s.jobs.Enqueue(r.Context(), params)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, job, nil)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := jobs.ListParams{
		OrganizationID: organizationID(r.Context()),
		Status:         jobs.Status(q.Get("status")),
		Type:           jobs.Type(q.Get("type")),
		Cursor:         q.Get("cursor"),
	}
	if raw := q.Get("brand_id"); raw != "" {
		brandID, err := uuid.Parse(raw)
		if err != nil {
			respondBadRequest(w, "invalid brand_id")
			return
		}
		params.BrandID = brandID
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			respondBadRequest(w, "invalid limit")
			return
		}
		params.Limit = limit
	}

	page, err := s.jobs.List(r.Context(), params)
	if err != nil {
		respondError(w, err)
		return
	}

	meta := map[string]any{"total": page.Total}
	if page.NextCursor != "" {
		meta["next_cursor"] = page.NextCursor
	}
	respondJSON(w, http.StatusOK, page.Jobs, meta)
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondBadRequest(w, "invalid job id")
		return
	}

	job, err := s.jobs.Retry(r.Context(), organizationID(r.Context()), jobID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, job, nil)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondBadRequest(w, "invalid job id")
		return
	}

	if err := s.jobs.Cancel(r.Context(), organizationID(r.Context()), jobID); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": string(jobs.StatusCancelled)}, nil)
}
