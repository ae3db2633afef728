// Package chat runs the realtime messaging layer on top of websockets.
// Messages are persisted before they are fanned out, so a dropped socket
// never loses data.
package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/reclaim-app/reclaim/internal/store"
)

const (
	// EventJoinRoom subscribes the connection to a chat's messages.
	EventJoinRoom = "join_room"
	// EventSendMessage persists and fans out a new message.
	EventSendMessage = "send_message"
	// EventReceiveMessage delivers a stored message to subscribers.
	EventReceiveMessage = "receive_message"
	// EventError reports a rejected client action.
	EventError = "error"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JoinPayload is the client request to subscribe to a chat.
type JoinPayload struct {
	ChatID int64 `json:"chatId"`
}

// SendPayload is the client request to send a message. The sender is taken
// from the authenticated connection, never from the payload. ClientID is an
// optional idempotency key for retries.
type SendPayload struct {
	ChatID   int64  `json:"chatId"`
	Text     string `json:"text"`
	ClientID string `json:"clientId,omitempty"`
}

// ErrorPayload tells a client why an action was rejected.
type ErrorPayload struct {
	Message string `json:"message"`
}

type delivery struct {
	chatID int64
	data   []byte
	// only restricts delivery to a single client, used for idempotent
	// retries where the room has already seen the message.
	only *client
}

type joinRequest struct {
	client *client
	chatID int64
}

// Hub tracks connected clients and their room subscriptions. All room state
// is owned by the Run goroutine; other goroutines talk to it over channels.
type Hub struct {
	db     *sql.DB
	logger *slog.Logger

	rooms   map[int64]map[*client]bool
	clients map[*client]bool

	register   chan *client
	unregister chan *client
	join       chan joinRequest
	deliveries chan delivery

	// done is closed when Run exits so senders to the channels above
	// never block against a hub that is no longer draining them.
	done chan struct{}
}

func NewHub(db *sql.DB, logger *slog.Logger) *Hub {
	return &Hub{
		db:         db,
		logger:     logger,
		rooms:      make(map[int64]map[*client]bool),
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		join:       make(chan joinRequest),
		deliveries: make(chan delivery, 64),
		done:       make(chan struct{}),
	}
}

// Run owns the room maps. It exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true

		case c := <-h.unregister:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			h.drop(c)

		case req := <-h.join:
			if h.rooms[req.chatID] == nil {
				h.rooms[req.chatID] = make(map[*client]bool)
			}
			h.rooms[req.chatID][req.client] = true
			req.client.rooms[req.chatID] = true

		case d := <-h.deliveries:
			if d.only != nil {
				d.only.enqueue(h, d.data)
				continue
			}
			for c := range h.rooms[d.chatID] {
				c.enqueue(h, d.data)
			}
		}
	}
}

// drop removes a client from all hub state and signals its pumps to stop.
// Only the Run goroutine may call this.
func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	for chatID := range c.rooms {
		h.leaveRoom(c, chatID)
	}
	close(c.done)
}

func (h *Hub) leaveRoom(c *client, chatID int64) {
	room := h.rooms[chatID]
	if room == nil {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, chatID)
	}
}

// handleJoin verifies room membership before subscribing the connection.
func (h *Hub) handleJoin(ctx context.Context, c *client, payload JoinPayload) {
	ok, err := store.IsParticipant(ctx, h.db, payload.ChatID, c.userID)
	if err != nil {
		h.logger.Error("checking chat membership", "chat_id", payload.ChatID, "error", err)
		c.sendError("could not join chat")
		return
	}
	if !ok {
		h.logger.Warn("join refused for non-participant",
			"chat_id", payload.ChatID, "user_id", c.userID)
		c.sendError("not a participant of this chat")
		return
	}
	select {
	case h.join <- joinRequest{client: c, chatID: payload.ChatID}:
	case <-h.done:
	}
}

// handleSend persists the message and fans it out. A retry carrying a known
// client id returns the stored message to the sender only.
func (h *Hub) handleSend(ctx context.Context, c *client, payload SendPayload) {
	if payload.Text == "" {
		c.sendError("message text is required")
		return
	}

	ok, err := store.IsParticipant(ctx, h.db, payload.ChatID, c.userID)
	if err != nil || !ok {
		c.sendError("not a participant of this chat")
		return
	}

	msg, created, err := store.AppendMessage(ctx, h.db, payload.ChatID, c.userID, payload.Text, payload.ClientID)
	if err != nil {
		h.logger.Error("storing chat message", "chat_id", payload.ChatID, "error", err)
		c.sendError("could not store message")
		return
	}

	data, err := marshalEvent(EventReceiveMessage, msg)
	if err != nil {
		h.logger.Error("encoding chat message", "error", err)
		return
	}

	d := delivery{chatID: payload.ChatID, data: data}
	if !created {
		d.only = c
	}
	select {
	case h.deliveries <- d:
	case <-h.done:
	case <-time.After(5 * time.Second):
		h.logger.Error("delivery queue stalled", "chat_id", payload.ChatID)
	}
}

func marshalEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
