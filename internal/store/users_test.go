package store

import (
	"context"
	"testing"

	"github.com/reclaim-app/reclaim/internal/db"
	"github.com/reclaim-app/reclaim/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "Alice", "alice@example.com", "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got == nil {
		t.Fatal("expected user, got nil")
	}
	if got.Email != "alice@example.com" || got.Role != model.RoleUser {
		t.Errorf("unexpected user: %+v", got)
	}

	byEmail, err := GetUserByEmail(ctx, database, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Errorf("expected user %d by email, got %+v", user.ID, byEmail)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "Alice", "alice@example.com", "hash", model.RoleUser); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := CreateUser(ctx, database, "Other", "alice@example.com", "hash", model.RoleUser); err == nil {
		t.Error("expected error for duplicate email")
	}
}

func TestCreateGoogleUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateGoogleUser(ctx, database, "Bob", "bob@example.com", "google-123", "https://example.com/pic.jpg")
	if err != nil {
		t.Fatalf("CreateGoogleUser: %v", err)
	}

	got, err := GetUserByGoogleID(ctx, database, "google-123")
	if err != nil {
		t.Fatalf("GetUserByGoogleID: %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("expected user %d by google id, got %+v", user.ID, got)
	}
	if got.ProfilePicture != "https://example.com/pic.jpg" {
		t.Errorf("unexpected profile picture: %q", got.ProfilePicture)
	}
}

func TestUpdateUserProfile(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := testUser(t, database, "alice")
	if err := UpdateUserProfile(ctx, database, user.ID, "Alice Renamed", "/uploads/new.jpg"); err != nil {
		t.Fatalf("UpdateUserProfile: %v", err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.Name != "Alice Renamed" || got.ProfilePicture != "/uploads/new.jpg" {
		t.Errorf("unexpected user after update: %+v", got)
	}
}

func TestUpdateUserRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := testUser(t, database, "alice")
	if err := UpdateUserRole(ctx, database, user.ID, model.RoleAdmin); err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	got, _ := GetUser(ctx, database, user.ID)
	if got.Role != model.RoleAdmin {
		t.Errorf("expected admin, got %q", got.Role)
	}
}

func TestDeleteUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := testUser(t, database, "alice")
	if err := DeleteUser(ctx, database, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	// Deleted users no longer authenticate by email.
	got, err := GetUserByEmail(ctx, database, user.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got != nil {
		t.Errorf("expected no user by email after delete, got %+v", got)
	}

	// The email becomes reusable.
	if _, err := CreateUser(ctx, database, "Alice Again", user.Email, "hash", model.RoleUser); err != nil {
		t.Errorf("expected email reusable after delete: %v", err)
	}
}

func TestGetMissingUser(t *testing.T) {
	database := db.NewTestDB(t)

	got, err := GetUser(context.Background(), database, 9999)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing user, got %+v", got)
	}
}
