package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
)

// AdminHandler handles the moderation endpoints.
type AdminHandler struct {
	DB *sql.DB
}

type statsResponse struct {
	Users         int `json:"users"`
	LostItems     int `json:"lostItems"`
	FoundItems    int `json:"foundItems"`
	ResolvedItems int `json:"resolvedItems"`
	PendingClaims int `json:"pendingClaims"`
	ChatMessages  int `json:"chatMessages"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// Stats handles GET /admin/stats. The counts are independent, so they run
// concurrently.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var stats statsResponse

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		stats.Users, err = store.CountUsers(ctx, h.DB)
		return err
	})
	g.Go(func() (err error) {
		stats.LostItems, err = store.CountItemsByType(ctx, h.DB, model.ItemTypeLost)
		return err
	})
	g.Go(func() (err error) {
		stats.FoundItems, err = store.CountItemsByType(ctx, h.DB, model.ItemTypeFound)
		return err
	})
	g.Go(func() (err error) {
		stats.ResolvedItems, err = store.CountResolvedItems(ctx, h.DB)
		return err
	})
	g.Go(func() (err error) {
		stats.PendingClaims, err = store.CountClaimsByStatus(ctx, h.DB, model.ClaimStatusPending)
		return err
	})
	g.Go(func() (err error) {
		stats.ChatMessages, err = store.CountMessages(ctx, h.DB)
		return err
	})

	if err := g.Wait(); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to gather stats")
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// ListUsers handles GET /admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	jsonResponse(w, http.StatusOK, users)
}

// DeleteUser handles DELETE /admin/users/{id}. Super admins are untouchable,
// and nobody deletes themselves by accident.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	claims := GetClaims(r.Context())
	if claims.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete your own account")
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
	if user.Role == model.RoleSuperAdmin {
		jsonError(w, http.StatusForbidden, "cannot delete a super admin")
		return
	}

	if err := store.DeleteUser(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	slog.Info("user deleted by admin", "user_id", id, "admin_id", claims.UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

// UpdateRole handles PUT /admin/users/{id}/role. Only a super admin can mint
// or demote admins.
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil || !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "role must be user, admin or super_admin")
		return
	}

	claims := GetClaims(r.Context())
	if claims.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot change your own role")
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
	if user.Role == model.RoleSuperAdmin {
		jsonError(w, http.StatusForbidden, "cannot change a super admin's role")
		return
	}

	if err := store.UpdateUserRole(r.Context(), h.DB, id, req.Role); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update role")
		return
	}

	slog.Info("role changed", "user_id", id, "role", req.Role, "admin_id", claims.UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "role updated"})
}

// ListItems handles GET /admin/items: includes soft-deleted postings.
func (h *AdminHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListAllItems(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// DeleteItem handles DELETE /admin/items/{id}.
func (h *AdminHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
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

	if err := store.DeleteItem(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	slog.Info("item removed by admin", "item_id", id, "admin_id", GetClaims(r.Context()).UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}
