package api

import (
	"database/sql"
	"net/http"

	"github.com/reclaim-app/reclaim/internal/auth"
	"github.com/reclaim-app/reclaim/internal/chat"
	"github.com/reclaim-app/reclaim/internal/media"
	"github.com/reclaim-app/reclaim/internal/model"
)

// Deps carries everything the router wires into handlers. Optional fields
// may be nil; the affected endpoints then degrade or report themselves
// unconfigured.
type Deps struct {
	DB          *sql.DB
	JWTSecret   string
	Google      *auth.GoogleVerifier
	Geocoder    Geocoder
	Interpreter QueryInterpreter
	Media       *media.Store
	Hub         *chat.Hub
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(deps Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: deps.DB, JWTSecret: deps.JWTSecret, Google: deps.Google}
	itemsHandler := &ItemsHandler{DB: deps.DB, Geocoder: deps.Geocoder}
	commentsHandler := &CommentsHandler{DB: deps.DB}
	claimsHandler := &ClaimsHandler{DB: deps.DB}
	chatsHandler := &ChatsHandler{DB: deps.DB}
	usersHandler := &UsersHandler{DB: deps.DB}
	adminHandler := &AdminHandler{DB: deps.DB}
	uploadHandler := &UploadHandler{Media: deps.Media}
	aiHandler := &AIHandler{DB: deps.DB, Interpreter: deps.Interpreter, Geocoder: deps.Geocoder}

	authMW := AuthMiddleware(deps.JWTSecret, deps.DB)
	optionalMW := OptionalAuthMiddleware(deps.JWTSecret, deps.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireSuperAdmin := RequireRole(model.RoleSuperAdmin)

	// Auth.
	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.HandleFunc("POST /auth/google", authHandler.GoogleLogin)
	mux.Handle("GET /auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("POST /auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Items: browsing is public, posting and interacting require a login.
	// /items/user/{id} overlaps /items/{id}/matches and /items/{id}/comments
	// under ServeMux precedence (neither pattern wins /items/user/matches),
	// so a single two-segment pattern dispatches on the literal.
	mux.Handle("GET /items", optionalMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("GET /items/user/me", authMW(http.HandlerFunc(itemsHandler.ListMine)))
	mux.Handle("GET /items/{id}", optionalMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("DELETE /items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))
	mux.Handle("GET /items/{first}/{second}", optionalMW(itemSubtree(itemsHandler, commentsHandler)))
	mux.Handle("POST /items/{id}/vote", authMW(http.HandlerFunc(itemsHandler.Vote)))
	mux.Handle("POST /items/{id}/comments", authMW(http.HandlerFunc(commentsHandler.Create)))
	mux.Handle("DELETE /comments/{id}", authMW(http.HandlerFunc(commentsHandler.Delete)))

	// Claims. /claims/item/{id} and /claims/{id}/message overlap the same
	// way, so the GET side goes through a dispatcher too.
	mux.Handle("POST /claims", authMW(http.HandlerFunc(claimsHandler.Create)))
	mux.Handle("GET /claims/user/me", authMW(http.HandlerFunc(claimsHandler.ListMine)))
	mux.Handle("GET /claims/{id}", authMW(http.HandlerFunc(claimsHandler.Get)))
	mux.Handle("PUT /claims/{id}", authMW(http.HandlerFunc(claimsHandler.UpdateStatus)))
	mux.Handle("GET /claims/{first}/{second}", authMW(claimSubtree(claimsHandler)))
	mux.Handle("PUT /claims/{id}/resolve", authMW(http.HandlerFunc(claimsHandler.Resolve)))
	mux.Handle("POST /claims/{id}/message", authMW(http.HandlerFunc(claimsHandler.Message)))

	// Chats.
	mux.Handle("GET /chats", authMW(http.HandlerFunc(chatsHandler.List)))
	mux.Handle("POST /chats", authMW(http.HandlerFunc(chatsHandler.Create)))
	mux.Handle("GET /chats/unread", authMW(http.HandlerFunc(chatsHandler.Unread)))
	mux.Handle("GET /chats/{id}", authMW(http.HandlerFunc(chatsHandler.Get)))
	mux.Handle("PUT /chats/{id}/read", authMW(http.HandlerFunc(chatsHandler.MarkRead)))

	// Users.
	mux.Handle("PUT /users/profile", authMW(http.HandlerFunc(usersHandler.UpdateProfile)))
	mux.Handle("GET /users/{id}", optionalMW(http.HandlerFunc(usersHandler.Get)))

	// Admin.
	mux.Handle("GET /admin/stats", authMW(requireAdmin(http.HandlerFunc(adminHandler.Stats))))
	mux.Handle("GET /admin/users", authMW(requireAdmin(http.HandlerFunc(adminHandler.ListUsers))))
	mux.Handle("DELETE /admin/users/{id}", authMW(requireAdmin(http.HandlerFunc(adminHandler.DeleteUser))))
	mux.Handle("PUT /admin/users/{id}/role", authMW(requireSuperAdmin(http.HandlerFunc(adminHandler.UpdateRole))))
	mux.Handle("GET /admin/items", authMW(requireAdmin(http.HandlerFunc(adminHandler.ListItems))))
	mux.Handle("DELETE /admin/items/{id}", authMW(requireAdmin(http.HandlerFunc(adminHandler.DeleteItem))))

	// Uploads.
	if deps.Media != nil {
		mux.Handle("POST /upload", authMW(http.HandlerFunc(uploadHandler.Upload)))
		mux.HandleFunc("GET /uploads/{name}", uploadHandler.Serve)
	}

	// AI search.
	mux.Handle("POST /ai/search", optionalMW(http.HandlerFunc(aiHandler.Search)))

	// Realtime chat.
	if deps.Hub != nil {
		mux.Handle("GET /ws", authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deps.Hub.ServeWS(w, r, GetClaims(r.Context()).UserID)
		})))
	}

	return LoggingMiddleware(mux)
}

// itemSubtree routes the two-segment GET paths under /items that ServeMux
// cannot keep apart as separate patterns.
func itemSubtree(items *ItemsHandler, comments *CommentsHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		first, second := r.PathValue("first"), r.PathValue("second")
		switch {
		case first == "user":
			r.SetPathValue("id", second)
			items.ListByUser(w, r)
		case second == "matches":
			r.SetPathValue("id", first)
			items.Matches(w, r)
		case second == "comments":
			r.SetPathValue("id", first)
			comments.List(w, r)
		default:
			jsonError(w, http.StatusNotFound, "not found")
		}
	}
}

// claimSubtree does the same for /claims/item/{id} and /claims/{id}/message.
func claimSubtree(claims *ClaimsHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		first, second := r.PathValue("first"), r.PathValue("second")
		switch {
		case first == "item":
			r.SetPathValue("id", second)
			claims.ListByItem(w, r)
		case second == "message":
			r.SetPathValue("id", first)
			claims.Messages(w, r)
		default:
			jsonError(w, http.StatusNotFound, "not found")
		}
	}
}
