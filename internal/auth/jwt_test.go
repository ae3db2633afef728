package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/reclaim-app/reclaim/internal/model"
)

func testUser() *model.User {
	return &model.User{ID: 7, Email: "admin@example.com", Role: model.RoleAdmin}
}

func TestTokenRoundTrip(t *testing.T) {
	secret := "test-secret-key"

	token, err := GenerateToken(secret, testUser())
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if claims.UserID != 7 {
		t.Errorf("expected user_id 7, got %d", claims.UserID)
	}
	if claims.Email != "admin@example.com" {
		t.Errorf("expected email 'admin@example.com', got %q", claims.Email)
	}
	if claims.Role != model.RoleAdmin {
		t.Errorf("expected role 'admin', got %q", claims.Role)
	}
	if claims.ID == "" {
		t.Error("expected a session id in the JTI claim")
	}

	expiry := time.Until(claims.ExpiresAt.Time)
	if expiry < TokenExpiry-time.Minute || expiry > TokenExpiry+time.Minute {
		t.Errorf("expected expiry about %v out, got %v", TokenExpiry, expiry)
	}
}

func TestUniqueSessionIDs(t *testing.T) {
	secret := "test"
	a, _ := GenerateToken(secret, testUser())
	b, _ := GenerateToken(secret, testUser())

	ca, _ := ValidateToken(secret, a)
	cb, _ := ValidateToken(secret, b)
	if ca.ID == cb.ID {
		t.Error("expected distinct JTIs for separate logins")
	}
}

func TestValidateTokenRejects(t *testing.T) {
	token, _ := GenerateToken("secret1", testUser())

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "secret2", token},
		{"garbage", "secret1", "not-a-token"},
		{"truncated", "secret1", token[:strings.LastIndex(token, ".")]},
	}
	for _, tt := range tests {
		if _, err := ValidateToken(tt.secret, tt.token); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
