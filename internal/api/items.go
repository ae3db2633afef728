package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/reclaim-app/reclaim/internal/auth"
	"github.com/reclaim-app/reclaim/internal/geocode"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
)

// Geocoder resolves place names and coordinates. The production value is a
// Nominatim client; tests plug in a fake.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]geocode.Place, error)
	Reverse(ctx context.Context, lat, lng float64) (*geocode.Address, error)
}

// ItemsHandler handles item listing, posting and interaction endpoints.
type ItemsHandler struct {
	DB       *sql.DB
	Geocoder Geocoder
}

type createItemRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        string         `json:"type"`
	Category    string         `json:"category"`
	Images      []string       `json:"images"`
	Location    model.Location `json:"location"`
	Date        string         `json:"date"`
}

type updateItemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type voteRequest struct {
	Value int `json:"value"`
}

type voteResponse struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
	MyVote    int `json:"myVote"`
}

// viewerID returns the authenticated user's id, or 0 for anonymous requests.
func viewerID(r *http.Request) int64 {
	if claims := GetClaims(r.Context()); claims != nil {
		return claims.UserID
	}
	return 0
}

// splitParam splits a comma-separated query parameter into non-empty values.
func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseItemDate accepts an RFC 3339 timestamp or a bare date. Empty means
// "now" and is left for the store to fill in.
func parseItemDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// parseBox parses "south,west,north,east" into a bounding box.
func parseBox(s string) (*model.Box, bool) {
	if s == "" {
		return nil, true
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, false
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		vals[i] = v
	}
	return &model.Box{South: vals[0], West: vals[1], North: vals[2], East: vals[3]}, true
}

// List handles GET /items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	box, ok := parseBox(q.Get("box"))
	if !ok {
		jsonError(w, http.StatusBadRequest, "box must be south,west,north,east")
		return
	}

	filter := store.ItemFilter{
		Types:      splitParam(q.Get("type")),
		Categories: splitParam(q.Get("category")),
		Search:     q.Get("search"),
		Location:   q.Get("location"),
		Country:    q.Get("country"),
		State:      q.Get("state"),
		City:       q.Get("city"),
		Box:        box,
	}
	for _, t := range filter.Types {
		if !model.ValidItemType(t) {
			jsonError(w, http.StatusBadRequest, "invalid item type "+t)
			return
		}
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	items, err := store.ListItems(r.Context(), h.DB, filter, viewerID(r))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		jsonError(w, http.StatusBadRequest, "title required")
		return
	}
	if !model.ValidItemType(req.Type) {
		jsonError(w, http.StatusBadRequest, "type must be lost or found")
		return
	}
	if !model.ValidCategory(req.Category) {
		jsonError(w, http.StatusBadRequest, "unknown category")
		return
	}

	date, err := parseItemDate(req.Date)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid date")
		return
	}

	h.enrichLocation(r.Context(), &req.Location)

	item, err := store.CreateItem(r.Context(), h.DB, store.CreateItemParams{
		UserID:      claims.UserID,
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Category:    req.Category,
		Images:      req.Images,
		Location:    req.Location,
		Date:        date,
	})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	slog.Info("item posted", "item_id", item.ID, "type", item.Type, "user_id", claims.UserID)
	jsonResponse(w, http.StatusCreated, item)
}

// enrichLocation fills in missing address fields from coordinates. Geocoding
// failures are logged and ignored; a posting never fails because the geocoder
// is down.
func (h *ItemsHandler) enrichLocation(ctx context.Context, loc *model.Location) {
	if h.Geocoder == nil || loc.Lat == nil || loc.Lng == nil {
		return
	}
	if loc.City != "" && loc.Country != "" {
		return
	}

	addr, err := h.Geocoder.Reverse(ctx, *loc.Lat, *loc.Lng)
	if err != nil {
		slog.Warn("reverse geocoding failed", "error", err)
		return
	}
	if addr == nil {
		return
	}
	if loc.City == "" {
		loc.City = addr.City
	}
	if loc.State == "" {
		loc.State = addr.State
	}
	if loc.Country == "" {
		loc.Country = addr.Country
	}
}

// Get handles GET /items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item ID")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id, viewerID(r))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// canModifyItem reports whether the caller owns the item or moderates.
func canModifyItem(claims *auth.Claims, item *model.Item) bool {
	return claims != nil && (claims.UserID == item.UserID || model.RoleAtLeast(claims.Role, model.RoleAdmin))
}

// Update handles PUT /items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item ID")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id, 0)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if !canModifyItem(GetClaims(r.Context()), item) {
		jsonError(w, http.StatusForbidden, "not your item")
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		req.Title = item.Title
	}
	if req.Description == "" {
		req.Description = item.Description
	}
	if req.Category == "" {
		req.Category = item.Category
	} else if !model.ValidCategory(req.Category) {
		jsonError(w, http.StatusBadRequest, "unknown category")
		return
	}

	if err := store.UpdateItem(r.Context(), h.DB, id, req.Title, req.Description, req.Category); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	updated, err := store.GetItem(r.Context(), h.DB, id, viewerID(r))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item ID")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id, 0)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if !canModifyItem(GetClaims(r.Context()), item) {
		jsonError(w, http.StatusForbidden, "not your item")
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	slog.Info("item deleted", "item_id", id, "user_id", GetClaims(r.Context()).UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// Vote handles POST /items/{id}/vote. Repeating a vote removes it.
func (h *ItemsHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item ID")
		return
	}

	var req voteRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Value != 1 && req.Value != -1 {
		jsonError(w, http.StatusBadRequest, "value must be 1 or -1")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id, 0)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	up, down, mine, err := store.ToggleVote(r.Context(), h.DB, id, GetClaims(r.Context()).UserID, req.Value)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to record vote")
		return
	}
	jsonResponse(w, http.StatusOK, voteResponse{Upvotes: up, Downvotes: down, MyVote: mine})
}

// Matches handles GET /items/{id}/matches.
func (h *ItemsHandler) Matches(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item ID")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id, 0)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	matches, err := store.FindMatches(r.Context(), h.DB, id, viewerID(r), 10)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to find matches")
		return
	}
	jsonResponse(w, http.StatusOK, matches)
}

// ListMine handles GET /items/user/me.
func (h *ItemsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	me := GetClaims(r.Context()).UserID
	items, err := store.ListItemsByUser(r.Context(), h.DB, me, me)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// ListByUser handles GET /items/user/{id}.
func (h *ItemsHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	items, err := store.ListItemsByUser(r.Context(), h.DB, id, viewerID(r))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	jsonResponse(w, http.StatusOK, items)
}
