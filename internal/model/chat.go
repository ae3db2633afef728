package model

import "time"

// Chat is a two-party message thread tied to an item.
type Chat struct {
	ID           int64     `json:"id"`
	ItemID       int64     `json:"item_id"`
	Participants []User    `json:"participants"`
	Messages     []Message `json:"messages"`
	Unread       int       `json:"unread"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message is a single chat message. ClientID is the sender-generated
// idempotency key used to suppress duplicate deliveries.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	SenderID  int64     `json:"sender_id"`
	Content   string    `json:"content"`
	ClientID  string    `json:"client_id,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}
