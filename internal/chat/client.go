package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 8 * 1024
	sendQueueSize  = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is token-authenticated, not cookie-authenticated, so
	// cross-origin upgrades carry no ambient credentials.
	CheckOrigin: func(*http.Request) bool { return true },
}

// client is one websocket connection belonging to an authenticated user.
// send is never closed; the hub signals shutdown by closing done, which
// keeps concurrent senders from hitting a closed channel.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64
	send   chan []byte
	done   chan struct{}
	rooms  map[int64]bool
}

// ServeWS upgrades an authenticated request and starts the connection pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		rooms:  make(map[int64]bool),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	// The request context dies when the handler returns, so the pump runs
	// on its own context for the life of the connection.
	go c.readPump(context.Background())
}

// enqueue hands data to the client's write pump. A client whose queue is full
// is too slow to keep; it gets dropped rather than blocking the hub. Only the
// hub's Run goroutine may call this.
func (c *client) enqueue(h *Hub, data []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- data:
	default:
		h.logger.Warn("dropping slow websocket client", "user_id", c.userID)
		h.drop(c)
	}
}

func (c *client) sendError(msg string) {
	data, err := marshalEvent(EventError, ErrorPayload{Message: msg})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
	}
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "user_id", c.userID, "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.sendError("malformed message")
			continue
		}

		switch env.Event {
		case EventJoinRoom:
			var payload JoinPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				c.sendError("malformed join payload")
				continue
			}
			c.hub.handleJoin(ctx, c, payload)

		case EventSendMessage:
			var payload SendPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				c.sendError("malformed send payload")
				continue
			}
			c.hub.handleSend(ctx, c, payload)

		default:
			c.sendError("unknown event " + env.Event)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
