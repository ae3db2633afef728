package model

import "testing"

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role     string
		minimum  string
		expected bool
	}{
		{RoleSuperAdmin, RoleSuperAdmin, true},
		{RoleSuperAdmin, RoleAdmin, true},
		{RoleSuperAdmin, RoleUser, true},
		{RoleAdmin, RoleSuperAdmin, false},
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleUser, true},
		{RoleUser, RoleSuperAdmin, false},
		{RoleUser, RoleAdmin, false},
		{RoleUser, RoleUser, true},
		// Unknown roles fail-closed.
		{"unknown", RoleUser, false},
		{RoleSuperAdmin, "unknown", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got := RoleAtLeast(tt.role, tt.minimum)
		if got != tt.expected {
			t.Errorf("RoleAtLeast(%q, %q) = %v, want %v", tt.role, tt.minimum, got, tt.expected)
		}
	}
}

func TestClaimStatusCanAdvance(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{ClaimStatusPending, ClaimStatusApproved, true},
		{ClaimStatusPending, ClaimStatusRejected, true},
		{ClaimStatusApproved, ClaimStatusCompleted, true},
		// Everything else is forbidden: the workflow never moves backwards
		// and terminal states stay terminal.
		{ClaimStatusPending, ClaimStatusCompleted, false},
		{ClaimStatusPending, ClaimStatusPending, false},
		{ClaimStatusApproved, ClaimStatusRejected, false},
		{ClaimStatusApproved, ClaimStatusPending, false},
		{ClaimStatusRejected, ClaimStatusCompleted, false},
		{ClaimStatusRejected, ClaimStatusApproved, false},
		{ClaimStatusCompleted, ClaimStatusApproved, false},
		{ClaimStatusCompleted, ClaimStatusPending, false},
		{"", ClaimStatusApproved, false},
	}

	for _, tt := range tests {
		got := ClaimStatusCanAdvance(tt.from, tt.to)
		if got != tt.expected {
			t.Errorf("ClaimStatusCanAdvance(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.expected)
		}
	}
}

func TestValidCategory(t *testing.T) {
	for _, c := range Categories {
		if !ValidCategory(c) {
			t.Errorf("expected %q to be a valid category", c)
		}
	}
	if ValidCategory("Bicycles") {
		t.Error("expected unknown category to be invalid")
	}
	if ValidCategory("") {
		t.Error("expected empty category to be invalid")
	}
}

func TestValidItemType(t *testing.T) {
	if !ValidItemType(ItemTypeLost) || !ValidItemType(ItemTypeFound) {
		t.Error("expected lost and found to be valid types")
	}
	if ValidItemType("stolen") {
		t.Error("expected unknown type to be invalid")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"", true},
		{"not-an-email", true},
		{"a@b", false},
		{"user@example.com", false},
		{"User Name <user@example.com>", true},
	}

	for _, tt := range tests {
		err := ValidateEmail(tt.email)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
		}
	}
}
