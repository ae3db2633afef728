package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/reclaim-app/reclaim/internal/store"
)

// UsersHandler handles public profiles and self-service profile updates.
type UsersHandler struct {
	DB *sql.DB
}

// publicProfile hides everything other members have no business seeing.
type publicProfile struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

type updateProfileRequest struct {
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture"`
}

// Get handles GET /users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	jsonResponse(w, http.StatusOK, publicProfile{
		ID:             user.ID,
		Name:           user.Name,
		ProfilePicture: user.ProfilePicture,
		CreatedAt:      user.CreatedAt.Format("2006-01-02"),
	})
}

// UpdateProfile handles PUT /users/profile.
func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil || user == nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if req.Name == "" {
		req.Name = user.Name
	}
	if req.ProfilePicture == "" {
		req.ProfilePicture = user.ProfilePicture
	}

	if err := store.UpdateUserProfile(r.Context(), h.DB, claims.UserID, req.Name, req.ProfilePicture); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	updated, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil || updated == nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}
