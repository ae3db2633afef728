package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
)

// ClaimsHandler handles the ownership claim workflow.
type ClaimsHandler struct {
	DB *sql.DB
}

type createClaimRequest struct {
	ItemID  int64  `json:"itemId"`
	Answers string `json:"answers"`
	Proof   string `json:"proof"`
}

type claimStatusRequest struct {
	Status string `json:"status"`
}

type claimMessageRequest struct {
	Message string `json:"message"`
}

// Create handles POST /claims.
func (h *ClaimsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID == 0 || req.Answers == "" {
		jsonError(w, http.StatusBadRequest, "itemId and answers required")
		return
	}

	claim, err := store.CreateClaim(r.Context(), h.DB, req.ItemID, GetClaims(r.Context()).UserID, req.Answers, req.Proof)
	switch {
	case errors.Is(err, store.ErrOwnItem):
		jsonError(w, http.StatusBadRequest, "cannot claim your own item")
		return
	case errors.Is(err, store.ErrDuplicateClaim):
		jsonError(w, http.StatusConflict, "you already have an active claim on this item")
		return
	case errors.Is(err, store.ErrItemNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
		return
	case err != nil:
		jsonError(w, http.StatusInternalServerError, "failed to create claim")
		return
	}

	slog.Info("claim filed", "claim_id", claim.ID, "item_id", req.ItemID)
	jsonResponse(w, http.StatusCreated, claim)
}

// loadClaimForCaller fetches a claim and checks the caller is its claimant,
// the item's owner, or a moderator.
func (h *ClaimsHandler) loadClaimForCaller(w http.ResponseWriter, r *http.Request) *model.Claim {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid claim ID")
		return nil
	}

	claim, err := store.GetClaim(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get claim")
		return nil
	}
	if claim == nil {
		jsonError(w, http.StatusNotFound, "claim not found")
		return nil
	}

	claims := GetClaims(r.Context())
	if claims.UserID == claim.ClaimantID || model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		return claim
	}
	item, err := store.GetItem(r.Context(), h.DB, claim.ItemID, 0)
	if err != nil || item == nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return nil
	}
	if item.UserID != claims.UserID {
		jsonError(w, http.StatusForbidden, "not involved in this claim")
		return nil
	}
	return claim
}

// Get handles GET /claims/{id}.
func (h *ClaimsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claim := h.loadClaimForCaller(w, r)
	if claim == nil {
		return
	}
	jsonResponse(w, http.StatusOK, claim)
}

// UpdateStatus handles PUT /claims/{id}: the item owner approves or rejects.
// Approval opens a chat between owner and claimant so they can arrange the
// handover.
func (h *ClaimsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid claim ID")
		return
	}

	var req claimStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != model.ClaimStatusApproved && req.Status != model.ClaimStatusRejected {
		jsonError(w, http.StatusBadRequest, "status must be approved or rejected")
		return
	}

	claim, err := store.GetClaim(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get claim")
		return
	}
	if claim == nil {
		jsonError(w, http.StatusNotFound, "claim not found")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, claim.ItemID, 0)
	if err != nil || item == nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	callerClaims := GetClaims(r.Context())
	if item.UserID != callerClaims.UserID && !model.RoleAtLeast(callerClaims.Role, model.RoleAdmin) {
		jsonError(w, http.StatusForbidden, "only the item owner can decide a claim")
		return
	}

	updated, err := store.AdvanceClaim(r.Context(), h.DB, id, req.Status)
	if errors.Is(err, store.ErrInvalidTransition) {
		jsonError(w, http.StatusConflict, "claim is not pending")
		return
	}
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update claim")
		return
	}

	if updated.Status == model.ClaimStatusApproved {
		if _, err := store.GetOrCreateChat(r.Context(), h.DB, claim.ItemID, claim.ClaimantID); err != nil {
			slog.Error("opening chat for approved claim", "claim_id", id, "error", err)
		}
	}

	slog.Info("claim decided", "claim_id", id, "status", updated.Status)
	jsonResponse(w, http.StatusOK, updated)
}

// Resolve handles POST /claims/{id}/resolve: the item owner confirms the
// handover happened.
func (h *ClaimsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid claim ID")
		return
	}

	claim, err := store.GetClaim(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get claim")
		return
	}
	if claim == nil {
		jsonError(w, http.StatusNotFound, "claim not found")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, claim.ItemID, 0)
	if err != nil || item == nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	callerClaims := GetClaims(r.Context())
	if item.UserID != callerClaims.UserID && !model.RoleAtLeast(callerClaims.Role, model.RoleAdmin) {
		jsonError(w, http.StatusForbidden, "only the item owner can resolve a claim")
		return
	}

	resolved, err := store.ResolveClaim(r.Context(), h.DB, id)
	if errors.Is(err, store.ErrInvalidTransition) {
		jsonError(w, http.StatusConflict, "only approved claims can be resolved")
		return
	}
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to resolve claim")
		return
	}

	slog.Info("item returned", "claim_id", id, "item_id", claim.ItemID)
	jsonResponse(w, http.StatusOK, resolved)
}

// Message handles POST /claims/{id}/message: a follow-up on the claim thread.
func (h *ClaimsHandler) Message(w http.ResponseWriter, r *http.Request) {
	claim := h.loadClaimForCaller(w, r)
	if claim == nil {
		return
	}

	var req claimMessageRequest
	if err := decodeJSON(r, &req); err != nil || req.Message == "" {
		jsonError(w, http.StatusBadRequest, "message required")
		return
	}

	msg, err := store.AddClaimMessage(r.Context(), h.DB, claim.ID, GetClaims(r.Context()).UserID, req.Message)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to add message")
		return
	}
	jsonResponse(w, http.StatusCreated, msg)
}

// Messages handles GET /claims/{id}/message.
func (h *ClaimsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	claim := h.loadClaimForCaller(w, r)
	if claim == nil {
		return
	}

	messages, err := store.ListClaimMessages(r.Context(), h.DB, claim.ID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	jsonResponse(w, http.StatusOK, messages)
}

// ListByItem handles GET /claims/item/{id}: the owner reviews claims on
// their item.
func (h *ClaimsHandler) ListByItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item ID")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, itemID, 0)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	callerClaims := GetClaims(r.Context())
	if item.UserID != callerClaims.UserID && !model.RoleAtLeast(callerClaims.Role, model.RoleAdmin) {
		jsonError(w, http.StatusForbidden, "not your item")
		return
	}

	claims, err := store.ListClaimsByItem(r.Context(), h.DB, itemID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list claims")
		return
	}
	jsonResponse(w, http.StatusOK, claims)
}

// ListMine handles GET /claims/user/me.
func (h *ClaimsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims, err := store.ListClaimsByClaimant(r.Context(), h.DB, GetClaims(r.Context()).UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list claims")
		return
	}
	jsonResponse(w, http.StatusOK, claims)
}
