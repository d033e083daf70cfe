package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/postflowhq/postflow/pkg/content"
	"github.com/postflowhq/postflow/pkg/publisher"
)

type queueContentRequest struct {
	BrandID         uuid.UUID           `json:"brand_id"`
	Content         string              `json:"content"`
	ContentType     string              `json:"content_type,omitempty"`
	Category        string              `json:"category,omitempty"`
	TargetPlatforms []string            `json:"target_platforms"`
	PlatformContent map[string]string   `json:"platform_content,omitempty"`
	Hashtags        map[string][]string `json:"hashtags,omitempty"`
	ScheduledFor    *time.Time          `json:"scheduled_for,omitempty"`
	AutoApprove     bool                `json:"auto_approve,omitempty"`
}

func (s *Server) handleQueueContent(w http.ResponseWriter, r *http.Request) {
	var req queueContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}

	platforms := make([]publisher.Platform, 0, len(req.TargetPlatforms))
	for _, raw := range req.TargetPlatforms {
		p := publisher.Platform(raw)
		if !p.Valid() {
			respondBadRequest(w, "unknown platform "+strconv.Quote(raw))
			return
		}
		platforms = append(platforms, p)
	}

	generated := content.GeneratedContent{
		OrganizationID:  organizationID(r.Context()),
		BrandID:         req.BrandID,
		Content:         req.Content,
		ContentType:     content.ContentType(req.ContentType),
		Category:        req.Category,
		TargetPlatforms: platforms,
	}
	if len(req.PlatformContent) > 0 {
		generated.PlatformContent = make(map[publisher.Platform]string, len(req.PlatformContent))
		for raw, text := range req.PlatformContent {
			generated.PlatformContent[publisher.Platform(raw)] = text
		}
	}
	if len(req.Hashtags) > 0 {
		generated.Hashtags = make(map[publisher.Platform][]string, len(req.Hashtags))
		for raw, tags := range req.Hashtags {
			generated.Hashtags[publisher.Platform(raw)] = tags
		}
	}

	item, err := s.content.QueueContent(r.Context(), generated, content.QueueOptions{
		ScheduledFor: req.ScheduledFor,
		AutoApprove:  req.AutoApprove,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, item, nil)
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondBadRequest(w, "invalid content id")
		return
	}

	item, err := s.content.Get(r.Context(), organizationID(r.Context()), itemID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, item, nil)
}

func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := content.ListParams{
		OrganizationID: organizationID(r.Context()),
		Status:         content.ItemStatus(q.Get("status")),
		NeedsAttention: q.Get("needs_attention") == "true",
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

	items, err := s.content.List(r.Context(), params)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, items, map[string]any{"total": len(items)})
}

type approveContentRequest struct {
	ActorID uuid.UUID `json:"actor_id"`
}

func (s *Server) handleApproveContent(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondBadRequest(w, "invalid content id")
		return
	}

	var req approveContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}

	item, err := s.content.Approve(r.Context(), organizationID(r.Context()), itemID, req.ActorID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, item, nil)
}

type rejectContentRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleRejectContent(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondBadRequest(w, "invalid content id")
		return
	}

	var req rejectContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}

	item, err := s.content.Reject(r.Context(), organizationID(r.Context()), itemID, req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, item, nil)
}

type scheduleContentRequest struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

func (s *Server) handleScheduleContent(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondBadRequest(w, "invalid content id")
		return
	}

	var req scheduleContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if req.ScheduledFor.IsZero() {
		respondBadRequest(w, "scheduled_for is required")
		return
	}

	item, err := s.content.Schedule(r.Context(), organizationID(r.Context()), itemID, req.ScheduledFor)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, item, nil)
}

func (s *Server) handleUnscheduleContent(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondBadRequest(w, "invalid content id")
		return
	}

	item, err := s.content.Unschedule(r.Context(), organizationID(r.Context()), itemID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, item, nil)
}

func (s *Server) handlePublishContent(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondBadRequest(w, "invalid content id")
		return
	}

	results, err := s.content.PublishNow(r.Context(), organizationID(r.Context()), itemID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, results, nil)
}
