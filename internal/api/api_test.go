package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/reclaim-app/reclaim/internal/auth"
	"github.com/reclaim-app/reclaim/internal/db"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, *sql.DB) {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(Deps{DB: database, JWTSecret: testJWTSecret})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, database
}

// registerUser creates an account through the API and returns its token.
func registerUser(t *testing.T, server *httptest.Server, name string) (string, *model.User) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"name":     name,
		"email":    name + "@example.com",
		"password": "password123",
	})
	resp, err := http.Post(server.URL+"/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: %d", resp.StatusCode)
	}

	var session struct {
		Token string      `json:"token"`
		User  *model.User `json:"user"`
	}
	json.NewDecoder(resp.Body).Decode(&session)
	if session.Token == "" {
		t.Fatal("empty token from register")
	}
	return session.Token, session.User
}

// makeAdmin promotes a user directly in the database.
func makeAdmin(t *testing.T, database *sql.DB, userID int64, role string) {
	t.Helper()
	if err := store.UpdateUserRole(context.Background(), database, userID, role); err != nil {
		t.Fatalf("promoting user: %v", err)
	}
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func doJSON(t *testing.T, req *http.Request, out any) int {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestRegisterAndLogin(t *testing.T) {
	server, _ := setupTestServer(t)
	registerUser(t, server, "alice")

	// Wrong password.
	body, _ := json.Marshal(map[string]string{"email": "alice@example.com", "password": "wrong-password"})
	resp, _ := http.Post(server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Correct password.
	body, _ = json.Marshal(map[string]string{"email": "alice@example.com", "password": "password123"})
	resp, _ = http.Post(server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Duplicate email.
	body, _ = json.Marshal(map[string]string{"name": "other", "email": "alice@example.com", "password": "password123"})
	resp, _ = http.Post(server.URL+"/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPasswordsAreHashed(t *testing.T) {
	server, database := setupTestServer(t)
	_, user := registerUser(t, server, "alice")

	stored, err := store.GetUser(context.Background(), database, user.ID)
	if err != nil || stored == nil {
		t.Fatalf("getting user: %v", err)
	}
	if stored.PasswordHash == "password123" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
}

func TestItemsRequireAuthToPost(t *testing.T) {
	server, _ := setupTestServer(t)

	req, _ := authRequest("POST", server.URL+"/items", "", map[string]string{"title": "x"})
	if status := doJSON(t, req, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", status)
	}

	// Browsing is public.
	resp, _ := http.Get(server.URL + "/items")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for anonymous browse, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func createItemViaAPI(t *testing.T, server *httptest.Server, token, title, itemType, category string) *model.Item {
	t.Helper()
	req, _ := authRequest("POST", server.URL+"/items", token, map[string]any{
		"title":       title,
		"description": "test item",
		"type":        itemType,
		"category":    category,
		"location":    map[string]any{"city": "Paris", "country": "France"},
	})
	var item model.Item
	if status := doJSON(t, req, &item); status != http.StatusCreated {
		t.Fatalf("creating item: %d", status)
	}
	return &item
}

func TestItemFlow(t *testing.T) {
	server, _ := setupTestServer(t)
	token, _ := registerUser(t, server, "alice")

	item := createItemViaAPI(t, server, token, "Lost Phone", model.ItemTypeLost, "Electronics")
	createItemViaAPI(t, server, token, "Found Keys", model.ItemTypeFound, "Keys")

	// Filter by type.
	var items []model.Item
	req, _ := authRequest("GET", server.URL+"/items?type=lost", token, nil)
	if status := doJSON(t, req, &items); status != http.StatusOK {
		t.Fatalf("listing items: %d", status)
	}
	if len(items) != 1 || items[0].Title != "Lost Phone" {
		t.Errorf("expected only the lost item, got %+v", items)
	}

	// Filter by category and city.
	req, _ = authRequest("GET", server.URL+"/items?category=Keys&city=Paris", token, nil)
	doJSON(t, req, &items)
	if len(items) != 1 || items[0].Category != "Keys" {
		t.Errorf("expected only the keys item, got %+v", items)
	}

	// Malformed box is rejected.
	req, _ = authRequest("GET", server.URL+"/items?box=1,2,3", token, nil)
	if status := doJSON(t, req, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad box, got %d", status)
	}

	// Update own item.
	req, _ = authRequest("PUT", server.URL+"/items/"+itoa(item.ID), token, map[string]string{"title": "Lost iPhone"})
	var updated model.Item
	if status := doJSON(t, req, &updated); status != http.StatusOK {
		t.Fatalf("updating item: %d", status)
	}
	if updated.Title != "Lost iPhone" {
		t.Errorf("expected updated title, got %q", updated.Title)
	}

	// Another user cannot update it.
	otherToken, _ := registerUser(t, server, "bob")
	req, _ = authRequest("PUT", server.URL+"/items/"+itoa(item.ID), otherToken, map[string]string{"title": "Mine now"})
	if status := doJSON(t, req, nil); status != http.StatusForbidden {
		t.Errorf("expected 403, got %d", status)
	}
}

func TestVoteToggle(t *testing.T) {
	server, _ := setupTestServer(t)
	token, _ := registerUser(t, server, "alice")
	voterToken, _ := registerUser(t, server, "bob")

	item := createItemViaAPI(t, server, token, "Lost Phone", model.ItemTypeLost, "Electronics")

	var vote voteResponse
	req, _ := authRequest("POST", server.URL+"/items/"+itoa(item.ID)+"/vote", voterToken, map[string]int{"value": 1})
	doJSON(t, req, &vote)
	if vote.Upvotes != 1 || vote.MyVote != 1 {
		t.Errorf("expected upvote recorded, got %+v", vote)
	}

	// Same vote again removes it.
	req, _ = authRequest("POST", server.URL+"/items/"+itoa(item.ID)+"/vote", voterToken, map[string]int{"value": 1})
	doJSON(t, req, &vote)
	if vote.Upvotes != 0 || vote.MyVote != 0 {
		t.Errorf("expected vote removed, got %+v", vote)
	}

	// Invalid value.
	req, _ = authRequest("POST", server.URL+"/items/"+itoa(item.ID)+"/vote", voterToken, map[string]int{"value": 2})
	if status := doJSON(t, req, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
}

func TestClaimWorkflow(t *testing.T) {
	server, _ := setupTestServer(t)
	ownerToken, _ := registerUser(t, server, "owner")
	claimantToken, claimant := registerUser(t, server, "claimant")

	item := createItemViaAPI(t, server, ownerToken, "Found Wallet", model.ItemTypeFound, "Accessories")

	// Claim own item is refused.
	req, _ := authRequest("POST", server.URL+"/claims", ownerToken, map[string]any{"itemId": item.ID, "answers": "mine"})
	if status := doJSON(t, req, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for own item, got %d", status)
	}

	// File a claim.
	var claim model.Claim
	req, _ = authRequest("POST", server.URL+"/claims", claimantToken, map[string]any{"itemId": item.ID, "answers": "has my initials"})
	if status := doJSON(t, req, &claim); status != http.StatusCreated {
		t.Fatalf("creating claim: %d", status)
	}

	// Claimant cannot decide their own claim.
	req, _ = authRequest("PUT", server.URL+"/claims/"+itoa(claim.ID), claimantToken, map[string]string{"status": "approved"})
	if status := doJSON(t, req, nil); status != http.StatusForbidden {
		t.Errorf("expected 403, got %d", status)
	}

	// Resolving before approval is refused.
	req, _ = authRequest("PUT", server.URL+"/claims/"+itoa(claim.ID)+"/resolve", ownerToken, nil)
	if status := doJSON(t, req, nil); status != http.StatusConflict {
		t.Errorf("expected 409 before approval, got %d", status)
	}

	// Owner approves; a chat opens for the claimant.
	var approved model.Claim
	req, _ = authRequest("PUT", server.URL+"/claims/"+itoa(claim.ID), ownerToken, map[string]string{"status": "approved"})
	if status := doJSON(t, req, &approved); status != http.StatusOK {
		t.Fatalf("approving claim: %d", status)
	}
	if approved.Status != model.ClaimStatusApproved {
		t.Errorf("expected approved, got %q", approved.Status)
	}

	var chats []model.Chat
	req, _ = authRequest("GET", server.URL+"/chats", claimantToken, nil)
	doJSON(t, req, &chats)
	if len(chats) != 1 {
		t.Fatalf("expected a chat after approval, got %d", len(chats))
	}
	found := false
	for _, p := range chats[0].Participants {
		if p.ID == claimant.ID {
			found = true
		}
	}
	if !found {
		t.Error("claimant missing from chat participants")
	}

	// Approving again conflicts.
	req, _ = authRequest("PUT", server.URL+"/claims/"+itoa(claim.ID), ownerToken, map[string]string{"status": "rejected"})
	if status := doJSON(t, req, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for decided claim, got %d", status)
	}

	// Owner resolves the handover; the item closes.
	var resolved model.Claim
	req, _ = authRequest("PUT", server.URL+"/claims/"+itoa(claim.ID)+"/resolve", ownerToken, nil)
	if status := doJSON(t, req, &resolved); status != http.StatusOK {
		t.Fatalf("resolving claim: %d", status)
	}
	if resolved.Status != model.ClaimStatusCompleted {
		t.Errorf("expected completed, got %q", resolved.Status)
	}

	var gotItem model.Item
	req, _ = authRequest("GET", server.URL+"/items/"+itoa(item.ID), ownerToken, nil)
	doJSON(t, req, &gotItem)
	if gotItem.Status != model.ItemStatusResolved {
		t.Errorf("expected item resolved, got %q", gotItem.Status)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	server, _ := setupTestServer(t)
	token, _ := registerUser(t, server, "alice")

	req, _ := authRequest("GET", server.URL+"/auth/me", token, nil)
	if status := doJSON(t, req, nil); status != http.StatusOK {
		t.Fatalf("expected 200 before logout, got %d", status)
	}

	req, _ = authRequest("POST", server.URL+"/auth/logout", token, nil)
	if status := doJSON(t, req, nil); status != http.StatusOK {
		t.Fatalf("logout: %d", status)
	}

	req, _ = authRequest("GET", server.URL+"/auth/me", token, nil)
	if status := doJSON(t, req, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", status)
	}
}

func TestAdminGating(t *testing.T) {
	server, database := setupTestServer(t)
	userToken, _ := registerUser(t, server, "alice")
	staleToken, admin := registerUser(t, server, "boss")
	makeAdmin(t, database, admin.ID, model.RoleAdmin)

	// Regular user is refused.
	req, _ := authRequest("GET", server.URL+"/admin/stats", userToken, nil)
	if status := doJSON(t, req, nil); status != http.StatusForbidden {
		t.Errorf("expected 403, got %d", status)
	}

	// A token minted before the promotion still carries the old role.
	req, _ = authRequest("GET", server.URL+"/admin/stats", staleToken, nil)
	if status := doJSON(t, req, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for stale token, got %d", status)
	}

	// A fresh login picks up the new role.
	body, _ := json.Marshal(map[string]string{"email": "boss@example.com", "password": "password123"})
	resp, _ := http.Post(server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	var session sessionResponse
	json.NewDecoder(resp.Body).Decode(&session)
	resp.Body.Close()

	var stats statsResponse
	req, _ = authRequest("GET", server.URL+"/admin/stats", session.Token, nil)
	if status := doJSON(t, req, &stats); status != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", status)
	}
	if stats.Users != 2 {
		t.Errorf("expected 2 users in stats, got %d", stats.Users)
	}

	// Role changes need super_admin, not admin.
	req, _ = authRequest("PUT", server.URL+"/admin/users/1/role", session.Token, map[string]string{"role": "admin"})
	if status := doJSON(t, req, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for admin changing roles, got %d", status)
	}
}

func TestCommentsFlow(t *testing.T) {
	server, _ := setupTestServer(t)
	token, _ := registerUser(t, server, "alice")
	otherToken, _ := registerUser(t, server, "bob")

	item := createItemViaAPI(t, server, token, "Lost Phone", model.ItemTypeLost, "Electronics")

	var comment model.Comment
	req, _ := authRequest("POST", server.URL+"/items/"+itoa(item.ID)+"/comments", otherToken, map[string]string{"content": "saw it downtown"})
	if status := doJSON(t, req, &comment); status != http.StatusCreated {
		t.Fatalf("creating comment: %d", status)
	}

	var comments []model.Comment
	req, _ = authRequest("GET", server.URL+"/items/"+itoa(item.ID)+"/comments", "", nil)
	doJSON(t, req, &comments)
	if len(comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(comments))
	}

	// Only the author (or a moderator) may delete.
	req, _ = authRequest("DELETE", server.URL+"/comments/"+itoa(comment.ID), token, nil)
	if status := doJSON(t, req, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for non-author, got %d", status)
	}
	req, _ = authRequest("DELETE", server.URL+"/comments/"+itoa(comment.ID), otherToken, nil)
	if status := doJSON(t, req, nil); status != http.StatusOK {
		t.Errorf("expected 200 for author, got %d", status)
	}
}

// The two-segment GET paths under /items and /claims share a shape
// (/items/user/{id} vs /items/{id}/matches), so they go through one
// dispatching pattern. Exercise every branch of both subtrees.
func TestSubtreeRouting(t *testing.T) {
	server, _ := setupTestServer(t)
	ownerToken, owner := registerUser(t, server, "owner")
	claimantToken, _ := registerUser(t, server, "claimant")

	item := createItemViaAPI(t, server, ownerToken, "Found Keys", model.ItemTypeFound, "Accessories")

	var items []model.Item
	req, _ := authRequest("GET", server.URL+"/items/user/"+itoa(owner.ID), "", nil)
	if status := doJSON(t, req, &items); status != http.StatusOK {
		t.Fatalf("items by user: %d", status)
	}
	if len(items) != 1 || items[0].ID != item.ID {
		t.Errorf("expected the owner's item, got %+v", items)
	}

	req, _ = authRequest("GET", server.URL+"/items/"+itoa(item.ID)+"/matches", "", nil)
	if status := doJSON(t, req, nil); status != http.StatusOK {
		t.Errorf("item matches: %d", status)
	}

	req, _ = authRequest("GET", server.URL+"/items/"+itoa(item.ID)+"/comments", "", nil)
	if status := doJSON(t, req, nil); status != http.StatusOK {
		t.Errorf("item comments: %d", status)
	}

	req, _ = authRequest("GET", server.URL+"/items/"+itoa(item.ID)+"/bogus", "", nil)
	if status := doJSON(t, req, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown subresource, got %d", status)
	}

	var claim model.Claim
	req, _ = authRequest("POST", server.URL+"/claims", claimantToken, map[string]any{"itemId": item.ID, "answers": "blue keychain"})
	if status := doJSON(t, req, &claim); status != http.StatusCreated {
		t.Fatalf("creating claim: %d", status)
	}

	var claims []model.Claim
	req, _ = authRequest("GET", server.URL+"/claims/item/"+itoa(item.ID), ownerToken, nil)
	if status := doJSON(t, req, &claims); status != http.StatusOK {
		t.Fatalf("claims by item: %d", status)
	}
	if len(claims) != 1 || claims[0].ID != claim.ID {
		t.Errorf("expected the filed claim, got %+v", claims)
	}

	req, _ = authRequest("POST", server.URL+"/claims/"+itoa(claim.ID)+"/message", claimantToken, map[string]string{"message": "when can we meet?"})
	if status := doJSON(t, req, nil); status != http.StatusCreated {
		t.Fatalf("posting claim message: %d", status)
	}

	var messages []model.ClaimMessage
	req, _ = authRequest("GET", server.URL+"/claims/"+itoa(claim.ID)+"/message", ownerToken, nil)
	if status := doJSON(t, req, &messages); status != http.StatusOK {
		t.Fatalf("claim messages: %d", status)
	}
	if len(messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(messages))
	}
}

// The web client posts the Google credential as "token".
func TestGoogleLoginTokenField(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(auth.GoogleProfile{
			Sub:   "g-123",
			Email: "guser@example.com",
			Name:  "Google User",
		})
	}))
	t.Cleanup(ts.Close)

	database := db.NewTestDB(t)
	router := NewRouter(Deps{DB: database, JWTSecret: testJWTSecret, Google: auth.NewGoogleVerifier(ts.URL, "")})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	var session struct {
		Token string      `json:"token"`
		User  *model.User `json:"user"`
	}
	req, _ := authRequest("POST", server.URL+"/auth/google", "", map[string]string{"token": "credential", "name": "Google User"})
	if status := doJSON(t, req, &session); status != http.StatusOK {
		t.Fatalf("google login: %d", status)
	}
	if session.Token == "" || session.User == nil || session.User.Email != "guser@example.com" {
		t.Errorf("expected a session for the google user, got %+v", session)
	}

	// Neither credential field present is a 400.
	req, _ = authRequest("POST", server.URL+"/auth/google", "", map[string]string{"name": "Nobody"})
	if status := doJSON(t, req, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 without a credential, got %d", status)
	}
}

func TestChatMarkRead(t *testing.T) {
	server, _ := setupTestServer(t)
	ownerToken, _ := registerUser(t, server, "owner")
	finderToken, _ := registerUser(t, server, "finder")

	item := createItemViaAPI(t, server, ownerToken, "Lost Cat", model.ItemTypeLost, "Pets")

	var chat model.Chat
	req, _ := authRequest("POST", server.URL+"/chats", finderToken, map[string]any{"itemId": item.ID})
	if status := doJSON(t, req, &chat); status != http.StatusOK {
		t.Fatalf("opening chat: %d", status)
	}

	req, _ = authRequest("PUT", server.URL+"/chats/"+itoa(chat.ID)+"/read", finderToken, nil)
	if status := doJSON(t, req, nil); status != http.StatusOK {
		t.Errorf("mark read: %d", status)
	}

	// Non-participants cannot touch the chat.
	outsiderToken, _ := registerUser(t, server, "outsider")
	req, _ = authRequest("PUT", server.URL+"/chats/"+itoa(chat.ID)+"/read", outsiderToken, nil)
	if status := doJSON(t, req, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for outsider, got %d", status)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
