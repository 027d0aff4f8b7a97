package socket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automarked/automarked-sub000/internal/models"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// newWSServer runs handler for every incoming websocket connection and
// returns the ws:// endpoint.
func newWSServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func mustFrame(t *testing.T, event string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(models.Envelope{Type: event, Data: data})
	require.NoError(t, err)
	return frame
}

func TestEmitWhileDisconnectedIsNoOp(t *testing.T) {
	sess := NewSession("ws://localhost:0", zerolog.New(io.Discard))

	err := sess.Emit(models.EventSendMessage, models.SendMessagePayload{
		SenderID: "a", ReceiverID: "b", Message: "hi",
	})

	assert.NoError(t, err)
	assert.False(t, sess.Connected())
}

func TestConnectAndDispatchInboundEvent(t *testing.T) {
	msg := models.Message{ID: "m1", SenderID: "user-2", ReceiverID: "user-1", Text: "hello"}
	endpoint := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, mustFrame(t, models.EventNewMessage, msg))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sess := NewSession(endpoint, zerolog.New(io.Discard))
	received := make(chan json.RawMessage, 1)
	sess.On(models.EventNewMessage, func(data json.RawMessage) {
		received <- data
	})

	require.NoError(t, sess.Connect(context.Background(), "user-1"))
	defer sess.Close()
	assert.True(t, sess.Connected())

	select {
	case data := <-received:
		var got models.Message
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "m1", got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}
}

func TestInvalidInboundPayloadDropped(t *testing.T) {
	valid := models.Message{ID: "m2", SenderID: "user-2", ReceiverID: "user-1", Text: "ok"}
	endpoint := newWSServer(t, func(conn *websocket.Conn) {
		// Missing required fields, then not JSON at all, then a valid frame.
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"newMessage","data":{"senderId":"x"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, mustFrame(t, models.EventNewMessage, valid))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sess := NewSession(endpoint, zerolog.New(io.Discard))
	received := make(chan json.RawMessage, 2)
	sess.On(models.EventNewMessage, func(data json.RawMessage) {
		received <- data
	})

	require.NoError(t, sess.Connect(context.Background(), "user-1"))
	defer sess.Close()

	select {
	case data := <-received:
		var got models.Message
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "m2", got.ID, "only the valid frame reaches handlers")
	case <-time.After(2 * time.Second):
		t.Fatal("valid frame never dispatched")
	}
	select {
	case <-received:
		t.Fatal("invalid frame was dispatched")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnknownInboundEventDropped(t *testing.T) {
	endpoint := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mystery","data":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, mustFrame(t, models.EventAllNotificationsRead, nil))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sess := NewSession(endpoint, zerolog.New(io.Discard))
	mystery := make(chan struct{}, 1)
	allRead := make(chan struct{}, 1)
	sess.On("mystery", func(json.RawMessage) { mystery <- struct{}{} })
	sess.On(models.EventAllNotificationsRead, func(json.RawMessage) { allRead <- struct{}{} })

	require.NoError(t, sess.Connect(context.Background(), "user-1"))
	defer sess.Close()

	select {
	case <-allRead:
	case <-time.After(2 * time.Second):
		t.Fatal("allNotificationsAsRead never dispatched")
	}
	select {
	case <-mystery:
		t.Fatal("unknown event was dispatched")
	default:
	}
}

func TestJoinRoomSendsFrame(t *testing.T) {
	frames := make(chan models.Envelope, 4)
	endpoint := newWSServer(t, func(conn *websocket.Conn) {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env models.Envelope
			if json.Unmarshal(raw, &env) == nil {
				frames <- env
			}
		}
	})

	sess := NewSession(endpoint, zerolog.New(io.Discard))
	require.NoError(t, sess.Connect(context.Background(), "user-1"))
	defer sess.Close()

	sess.JoinRoom("user-1", "user-2")

	select {
	case env := <-frames:
		assert.Equal(t, models.EventJoinRoom, env.Type)
		var p models.JoinRoomPayload
		require.NoError(t, json.Unmarshal(env.Data, &p))
		assert.Equal(t, "user-1", p.SenderID)
		assert.Equal(t, "user-2", p.ReceiverID)
	case <-time.After(2 * time.Second):
		t.Fatal("joinRoom frame never arrived")
	}
}

func TestConnectSameUserIsIdempotent(t *testing.T) {
	var conns int32
	endpoint := newWSServer(t, func(conn *websocket.Conn) {
		atomic.AddInt32(&conns, 1)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sess := NewSession(endpoint, zerolog.New(io.Discard))
	require.NoError(t, sess.Connect(context.Background(), "user-1"))
	defer sess.Close()
	require.NoError(t, sess.Connect(context.Background(), "user-1"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&conns))
}

func TestReconnectRejoinsRecordedRooms(t *testing.T) {
	var conns int32
	frames := make(chan models.Envelope, 8)
	endpoint := newWSServer(t, func(conn *websocket.Conn) {
		if atomic.AddInt32(&conns, 1) == 1 {
			// Accept the join, then drop the connection to force a redial.
			_, _, _ = conn.ReadMessage()
			conn.Close()
			return
		}
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env models.Envelope
			if json.Unmarshal(raw, &env) == nil {
				frames <- env
			}
		}
	})

	sess := NewSession(endpoint, zerolog.New(io.Discard))
	require.NoError(t, sess.Connect(context.Background(), "user-1"))
	defer sess.Close()

	sess.JoinRoom("user-1", "user-2")
	sess.JoinNotificationRoom("user-1")

	// After the forced drop the session must redial and re-issue both
	// subscriptions without any caller involvement.
	seen := map[string]bool{}
	deadline := time.After(10 * time.Second)
	for len(seen) < 2 {
		select {
		case env := <-frames:
			seen[env.Type] = true
		case <-deadline:
			t.Fatalf("rejoin incomplete, saw %v", seen)
		}
	}
	assert.True(t, seen[models.EventJoinRoom])
	assert.True(t, seen[models.EventJoinNotificationRoom])
	assert.GreaterOrEqual(t, atomic.LoadInt32(&conns), int32(2))
}
