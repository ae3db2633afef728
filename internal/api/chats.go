package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/reclaim-app/reclaim/internal/store"
)

// ChatsHandler handles the REST side of messaging; realtime delivery lives in
// the chat package.
type ChatsHandler struct {
	DB *sql.DB
}

type createChatRequest struct {
	ItemID int64 `json:"itemId"`
}

type unreadResponse struct {
	Unread int `json:"unread"`
}

// List handles GET /chats.
func (h *ChatsHandler) List(w http.ResponseWriter, r *http.Request) {
	chats, err := store.ListChats(r.Context(), h.DB, GetClaims(r.Context()).UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	jsonResponse(w, http.StatusOK, chats)
}

// Create handles POST /chats: opens (or returns) the conversation about an item.
func (h *ChatsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := decodeJSON(r, &req); err != nil || req.ItemID == 0 {
		jsonError(w, http.StatusBadRequest, "itemId required")
		return
	}

	chat, err := store.GetOrCreateChat(r.Context(), h.DB, req.ItemID, GetClaims(r.Context()).UserID)
	if errors.Is(err, store.ErrChatWithSelf) {
		jsonError(w, http.StatusBadRequest, "cannot start a chat about your own item")
		return
	}
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to open chat")
		return
	}
	jsonResponse(w, http.StatusOK, chat)
}

// loadChatID parses the chat ID and verifies the caller's membership.
func (h *ChatsHandler) loadChatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid chat ID")
		return 0, false
	}

	ok, err := store.IsParticipant(r.Context(), h.DB, id, GetClaims(r.Context()).UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to check chat")
		return 0, false
	}
	if !ok {
		jsonError(w, http.StatusForbidden, "not a participant of this chat")
		return 0, false
	}
	return id, true
}

// Get handles GET /chats/{id}.
func (h *ChatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loadChatID(w, r)
	if !ok {
		return
	}

	chat, err := store.GetChat(r.Context(), h.DB, id, GetClaims(r.Context()).UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get chat")
		return
	}
	if chat == nil {
		jsonError(w, http.StatusNotFound, "chat not found")
		return
	}
	jsonResponse(w, http.StatusOK, chat)
}

// MarkRead handles POST /chats/{id}/read.
func (h *ChatsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loadChatID(w, r)
	if !ok {
		return
	}

	if err := store.MarkRead(r.Context(), h.DB, id, GetClaims(r.Context()).UserID); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to mark chat read")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "marked read"})
}

// Unread handles GET /chats/unread.
func (h *ChatsHandler) Unread(w http.ResponseWriter, r *http.Request) {
	count, err := store.UnreadCount(r.Context(), h.DB, GetClaims(r.Context()).UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to count unread messages")
		return
	}
	jsonResponse(w, http.StatusOK, unreadResponse{Unread: count})
}
