package model

import "time"

// Item represents a lost or found report.
type Item struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Images      []string  `json:"images"`
	Location    Location  `json:"location"`
	Date        time.Time `json:"date"`
	Status      string    `json:"status"`
	Upvotes     int       `json:"upvotes"`
	Downvotes   int       `json:"downvotes"`
	// MyVote is 1, -1 or 0, relative to the requesting user.
	MyVote    int        `json:"my_vote"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// Joined fields (not always populated).
	UserName string `json:"user_name,omitempty"`
}

// Location describes where an item was lost or found. Coordinates are
// optional; Lat/Lng of nil mean the report only carries an address string.
type Location struct {
	Address string   `json:"address,omitempty"`
	City    string   `json:"city,omitempty"`
	State   string   `json:"state,omitempty"`
	Country string   `json:"country,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Box is a geographic bounding rectangle used to constrain item searches.
type Box struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Item types.
const (
	ItemTypeLost  = "lost"
	ItemTypeFound = "found"
)

// Item statuses.
const (
	ItemStatusOpen     = "open"
	ItemStatusResolved = "resolved"
)

// Categories lists the accepted item categories.
var Categories = []string{
	"Electronics",
	"Accessories",
	"Documents",
	"Clothing",
	"Keys",
	"Other",
}

// ValidItemType reports whether s is a known item type.
func ValidItemType(s string) bool {
	return s == ItemTypeLost || s == ItemTypeFound
}

// ValidCategory reports whether s is a known category.
func ValidCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}
