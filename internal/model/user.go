package model

import (
	"fmt"
	"net/mail"
	"time"
)

// User represents an account. Users signed in with Google have no password.
type User struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	GoogleID       string     `json:"-"`
	Role           string     `json:"role"`
	ProfilePicture string     `json:"profile_picture,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleSuperAdmin: 3,
		RoleAdmin:      2,
		RoleUser:       1,
	}
	return levels[role] >= levels[minimum]
}

// ValidRole reports whether s is a known role.
func ValidRole(s string) bool {
	return s == RoleSuperAdmin || s == RoleAdmin || s == RoleUser
}

// ValidatePassword enforces the minimum password policy.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

// ValidateEmail checks that s parses as a plain address.
func ValidateEmail(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return fmt.Errorf("invalid email address")
	}
	return nil
}
