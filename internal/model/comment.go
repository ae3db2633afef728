package model

import "time"

// Comment is a public note on an item.
type Comment struct {
	ID        int64      `json:"id"`
	ItemID    int64      `json:"item_id"`
	UserID    int64      `json:"user_id"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// Joined fields (not always populated).
	UserName           string `json:"user_name,omitempty"`
	UserProfilePicture string `json:"user_profile_picture,omitempty"`
}
