package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reclaim-app/reclaim/internal/db"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
)

type hubFixture struct {
	server *httptest.Server
	chatID int64
	owner  *model.User
	caller *model.User
	other  *model.User
}

// newHubFixture starts a hub over a test database with one chat between
// owner and caller, plus a third user outside the chat. The test server
// authenticates via a ?user= query parameter.
func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()

	database := db.NewTestDB(t)
	ctx := context.Background()

	owner := createUser(t, database, "owner")
	caller := createUser(t, database, "caller")
	other := createUser(t, database, "other")

	item, err := store.CreateItem(ctx, database, store.CreateItemParams{
		UserID: owner.ID, Title: "Found Keys", Description: "by the fountain",
		Type: model.ItemTypeFound, Category: "Keys",
	})
	if err != nil {
		t.Fatalf("creating item: %v", err)
	}
	conv, err := store.GetOrCreateChat(ctx, database, item.ID, caller.ID)
	if err != nil {
		t.Fatalf("creating chat: %v", err)
	}

	hub := NewHub(database, slog.New(slog.NewTextHandler(io.Discard, nil)))
	hubCtx, cancel := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	t.Cleanup(cancel)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
		if err != nil {
			http.Error(w, "bad user", http.StatusBadRequest)
			return
		}
		hub.ServeWS(w, r, userID)
	}))
	t.Cleanup(server.Close)

	return &hubFixture{server: server, chatID: conv.ID, owner: owner, caller: caller, other: other}
}

func createUser(t *testing.T, database *sql.DB, name string) *model.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), database, name, name+"@example.com", "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("creating user %s: %v", name, err)
	}
	return user
}

func (f *hubFixture) dial(t *testing.T, userID int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?user=" + strconv.FormatInt(userID, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}
	if err := conn.WriteJSON(Envelope{Event: event, Data: data}); err != nil {
		t.Fatalf("writing %s: %v", event, err)
	}
}

func receive(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("reading envelope: %v", err)
	}
	return env
}

// Once Run exits, connection pumps must be able to finish instead of
// blocking forever on the hub's channels.
func TestShutdownReleasesConnections(t *testing.T) {
	database := db.NewTestDB(t)
	hub := NewHub(database, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, 1)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	cancel()
	<-stopped

	// The shutdown signal the pumps select on must be raised.
	select {
	case <-hub.done:
	case <-time.After(time.Second):
		t.Fatal("hub done signal not raised after Run exited")
	}

	// The live connection gets closed rather than left hanging.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to be closed on shutdown")
	}

	// A pump reporting its exit after shutdown must return promptly.
	c := &client{hub: hub, done: make(chan struct{}), rooms: make(map[int64]bool)}
	released := make(chan struct{})
	go func() {
		select {
		case hub.unregister <- c:
		case <-hub.done:
		}
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("unregister blocked after shutdown")
	}
}

func TestSendMessageReachesRoom(t *testing.T) {
	f := newHubFixture(t)

	ownerConn := f.dial(t, f.owner.ID)
	callerConn := f.dial(t, f.caller.ID)

	send(t, ownerConn, EventJoinRoom, JoinPayload{ChatID: f.chatID})
	send(t, callerConn, EventJoinRoom, JoinPayload{ChatID: f.chatID})
	// Joins are async; give the hub a beat to register both.
	time.Sleep(100 * time.Millisecond)

	send(t, callerConn, EventSendMessage, SendPayload{ChatID: f.chatID, Text: "is this yours?"})

	for _, conn := range []*websocket.Conn{ownerConn, callerConn} {
		env := receive(t, conn)
		if env.Event != EventReceiveMessage {
			t.Fatalf("expected %s, got %s", EventReceiveMessage, env.Event)
		}
		var msg model.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			t.Fatalf("unmarshaling message: %v", err)
		}
		if msg.Content != "is this yours?" {
			t.Errorf("unexpected content %q", msg.Content)
		}
		if msg.SenderID != f.caller.ID {
			t.Errorf("expected sender %d, got %d", f.caller.ID, msg.SenderID)
		}
	}
}

func TestRetryDeliveredToSenderOnly(t *testing.T) {
	f := newHubFixture(t)

	ownerConn := f.dial(t, f.owner.ID)
	callerConn := f.dial(t, f.caller.ID)

	send(t, ownerConn, EventJoinRoom, JoinPayload{ChatID: f.chatID})
	send(t, callerConn, EventJoinRoom, JoinPayload{ChatID: f.chatID})
	time.Sleep(100 * time.Millisecond)

	payload := SendPayload{ChatID: f.chatID, Text: "hello", ClientID: "retry-1"}
	send(t, callerConn, EventSendMessage, payload)
	send(t, callerConn, EventSendMessage, payload)

	// The sender sees the message twice (original plus retry confirmation)
	// with the same stored id.
	first := receive(t, callerConn)
	second := receive(t, callerConn)
	var a, b model.Message
	json.Unmarshal(first.Data, &a)
	json.Unmarshal(second.Data, &b)
	if a.ID != b.ID {
		t.Errorf("expected retry to confirm message %d, got %d", a.ID, b.ID)
	}

	// The room sees it exactly once.
	receive(t, ownerConn)
	ownerConn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var extra Envelope
	if err := ownerConn.ReadJSON(&extra); err == nil {
		t.Errorf("expected no duplicate broadcast, got %+v", extra)
	}
}

func TestJoinRefusedForNonParticipant(t *testing.T) {
	f := newHubFixture(t)

	conn := f.dial(t, f.other.ID)
	send(t, conn, EventJoinRoom, JoinPayload{ChatID: f.chatID})

	env := receive(t, conn)
	if env.Event != EventError {
		t.Fatalf("expected %s, got %s", EventError, env.Event)
	}
}

func TestSendRefusedForNonParticipant(t *testing.T) {
	f := newHubFixture(t)

	conn := f.dial(t, f.other.ID)
	send(t, conn, EventSendMessage, SendPayload{ChatID: f.chatID, Text: "let me in"})

	env := receive(t, conn)
	if env.Event != EventError {
		t.Fatalf("expected %s, got %s", EventError, env.Event)
	}
}
