package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/reclaim-app/reclaim/internal/ai"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
)

// QueryInterpreter turns a natural-language query into structured filters.
type QueryInterpreter interface {
	Interpret(ctx context.Context, query string) (*ai.Filters, error)
}

// AIHandler handles natural-language search.
type AIHandler struct {
	DB          *sql.DB
	Interpreter QueryInterpreter
	Geocoder    Geocoder
}

type aiSearchRequest struct {
	Query string `json:"query"`
}

type aiSearchResponse struct {
	Filters *ai.Filters  `json:"filters,omitempty"`
	Items   []model.Item `json:"items"`
	Message string       `json:"message,omitempty"`
}

// Search handles POST /ai/search. A model or geocoder outage degrades to a
// plain keyword search instead of failing the request.
func (h *AIHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req aiSearchRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Query) == "" {
		jsonError(w, http.StatusBadRequest, "query required")
		return
	}

	resp := aiSearchResponse{}
	filter := store.ItemFilter{Limit: 50}

	if h.Interpreter != nil {
		filters, err := h.Interpreter.Interpret(r.Context(), req.Query)
		if err != nil {
			slog.Warn("query interpretation failed", "error", err)
		} else {
			resp.Filters = filters
			if filters.Type != "" {
				filter.Types = []string{filters.Type}
			}
			if filters.Category != "" {
				filter.Categories = []string{filters.Category}
			}
			filter.Search = strings.Join(filters.Keywords, " ")
			if filters.Location != "" {
				h.applyLocation(r.Context(), &filter, filters.Location)
			}
		}
	}

	if resp.Filters == nil {
		filter.Search = req.Query
		resp.Message = "showing keyword results"
	}

	items, err := store.ListItems(r.Context(), h.DB, filter, viewerID(r))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "search failed")
		return
	}

	// A multi-keyword LIKE can be too strict; retry with the single most
	// distinctive keyword before giving up.
	if len(items) == 0 && resp.Filters != nil && len(resp.Filters.Keywords) > 1 {
		filter.Search = resp.Filters.Keywords[0]
		items, err = store.ListItems(r.Context(), h.DB, filter, viewerID(r))
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "search failed")
			return
		}
		resp.Message = "broadened search to " + filter.Search
	}

	resp.Items = items
	jsonResponse(w, http.StatusOK, resp)
}

// applyLocation converts a place name to a bounding box. On failure the
// location falls back to text matching.
func (h *AIHandler) applyLocation(ctx context.Context, filter *store.ItemFilter, location string) {
	if h.Geocoder == nil {
		filter.Location = location
		return
	}

	places, err := h.Geocoder.Search(ctx, location)
	if err != nil || len(places) == 0 || places[0].Box == nil {
		if err != nil {
			slog.Warn("geocoding search location failed", "location", location, "error", err)
		}
		filter.Location = location
		return
	}
	filter.Box = places[0].Box
}
