package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/reclaim-app/reclaim/internal/model"
)

// testUser creates a user with a unique email for test fixtures.
func testUser(t *testing.T, db *sql.DB, name string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), db, name,
		fmt.Sprintf("%s@example.com", name), "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("creating test user %s: %v", name, err)
	}
	return u
}

// testItem creates a found item owned by the given user.
func testItem(t *testing.T, db *sql.DB, userID int64, title, itemType string) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), db, CreateItemParams{
		UserID:   userID,
		Title:    title,
		Type:     itemType,
		Category: "Electronics",
	})
	if err != nil {
		t.Fatalf("creating test item %s: %v", title, err)
	}
	return item
}
