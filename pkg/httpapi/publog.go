package httpapi

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/postflowhq/postflow/pkg/publisher"
	"github.com/postflowhq/postflow/pkg/publog"
)

func (s *Server) handleListPublishingLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := publog.Filter{
		OrganizationID: organizationID(r.Context()),
		Platform:       publisher.Platform(q.Get("platform")),
		Status:         publog.Status(q.Get("status")),
		Cursor:         q.Get("cursor"),
	}
	if raw := q.Get("brand_id"); raw != "" {
		brandID, err := uuid.Parse(raw)
		if err != nil {
			respondBadRequest(w, "invalid brand_id")
			return
		}
		filter.BrandID = brandID
	}
	if raw := q.Get("content_id"); raw != "" {
		contentID, err := uuid.Parse(raw)
		if err != nil {
			respondBadRequest(w, "invalid content_id")
			return
		}
		filter.ContentID = contentID
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			respondBadRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	page, err := s.publog.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}

	meta := map[string]any{"total": page.Total}
	if page.NextCursor != "" {
		meta["next_cursor"] = page.NextCursor
	}
	respondJSON(w, http.StatusOK, page.Entries, meta)
}
