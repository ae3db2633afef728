package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
)

// CommentsHandler handles item comment threads.
type CommentsHandler struct {
	DB *sql.DB
}

type createCommentRequest struct {
	Content string `json:"content"`
}

// List handles GET /items/{id}/comments.
func (h *CommentsHandler) List(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item ID")
		return
	}

	comments, err := store.ListComments(r.Context(), h.DB, itemID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list comments")
		return
	}
	jsonResponse(w, http.StatusOK, comments)
}

// Create handles POST /items/{id}/comments.
func (h *CommentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item ID")
		return
	}

	var req createCommentRequest
	if err := decodeJSON(r, &req); err != nil || req.Content == "" {
		jsonError(w, http.StatusBadRequest, "content required")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, itemID, 0)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	comment, err := store.CreateComment(r.Context(), h.DB, itemID, GetClaims(r.Context()).UserID, req.Content)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create comment")
		return
	}
	jsonResponse(w, http.StatusCreated, comment)
}

// Delete handles DELETE /comments/{id}. Authors and moderators may delete.
func (h *CommentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid comment ID")
		return
	}

	comment, err := store.GetComment(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get comment")
		return
	}
	if comment == nil {
		jsonError(w, http.StatusNotFound, "comment not found")
		return
	}

	claims := GetClaims(r.Context())
	if claims.UserID != comment.UserID && !model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		jsonError(w, http.StatusForbidden, "not your comment")
		return
	}

	if err := store.DeleteComment(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete comment")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "comment deleted"})
}
