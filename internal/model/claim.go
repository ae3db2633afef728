package model

import "time"

// Claim is a user's assertion of ownership against a found item, or a
// retrieval offer against a lost one.
type Claim struct {
	ID         int64     `json:"id"`
	ItemID     int64     `json:"item_id"`
	ClaimantID int64     `json:"claimant_id"`
	Message    string    `json:"message"`
	ProofURL   string    `json:"proof_url,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	ClaimantName string `json:"claimant_name,omitempty"`
	ItemTitle    string `json:"item_title,omitempty"`
	ItemType     string `json:"item_type,omitempty"`
}

// ClaimMessage is a follow-up message on a claim thread.
type ClaimMessage struct {
	ID        int64     `json:"id"`
	ClaimID   int64     `json:"claim_id"`
	SenderID  int64     `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Claim statuses. The workflow is linear and only moves forward:
// pending -> approved or rejected, approved -> completed.
const (
	ClaimStatusPending   = "pending"
	ClaimStatusApproved  = "approved"
	ClaimStatusRejected  = "rejected"
	ClaimStatusCompleted = "completed"
)

// ClaimStatusCanAdvance reports whether a claim may move from one status to
// another. Rejected and completed are terminal.
func ClaimStatusCanAdvance(from, to string) bool {
	switch from {
	case ClaimStatusPending:
		return to == ClaimStatusApproved || to == ClaimStatusRejected
	case ClaimStatusApproved:
		return to == ClaimStatusCompleted
	default:
		return false
	}
}
