package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/automarked/automarked-sub000/internal/models"
	"github.com/automarked/automarked-sub000/internal/observability"
)

const opsRoutingKey = "ws_events.sync"

// Handler consumes the raw payload of one inbound event. Handlers run on
// the session's dispatch goroutine, one at a time. An alias so that
// consumers can declare the same shape in their own narrow interfaces.
type Handler = func(data json.RawMessage)

// Session owns at most one live websocket connection per user. It is the
// single writer on the connection; dependent managers emit through it and
// subscribe to inbound events by name. Emits while disconnected are
// silent no-ops. A dropped connection is redialed with exponential
// backoff and every joined room is re-issued after the reconnect.
type Session struct {
	endpoint string
	logger   zerolog.Logger
	validate *validator.Validate

	mu          sync.Mutex
	writeMu     sync.Mutex
	userID      string
	conn        *websocket.Conn
	connID      string
	connectedAt time.Time
	gen         uint64
	done        chan struct{}
	handlers    map[string][]Handler
	rooms       map[string]models.JoinRoomPayload
	notifyRooms map[string]struct{}
}

// NewSession builds a session for the given ws endpoint, e.g.
// "ws://gateway:8090/ws". No connection is opened until Connect.
func NewSession(endpoint string, logger zerolog.Logger) *Session {
	return &Session{
		endpoint:    endpoint,
		logger:      logger.With().Str("component", "socket").Logger(),
		validate:    validator.New(),
		handlers:    make(map[string][]Handler),
		rooms:       make(map[string]models.JoinRoomPayload),
		notifyRooms: make(map[string]struct{}),
	}
}

// Connect opens the connection for userID. Calling it again with the
// same user while connected is a no-op; a different user tears the old
// connection down first. At most one connection is live per session.
func (s *Session) Connect(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.conn != nil && s.userID == userID {
		s.mu.Unlock()
		return nil
	}
	s.teardownLocked("user changed")
	s.userID = userID
	s.mu.Unlock()

	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.conn = conn
	s.connID = uuid.NewString()
	s.connectedAt = time.Now()
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	observability.IncWSActive("client")
	observability.IncWSEvent("client", "ws_connect")
	s.publishOps(context.Background(), "ws_connect", "")

	go s.readLoop(conn, gen, done)
	return nil
}

// Close releases the connection. The session can be reconnected later.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked("closed")
	return nil
}

// Connected reports whether a live connection exists.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// On subscribes a handler to an inbound event by name.
func (s *Session) On(event string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], h)
}

// Emit sends one event. While disconnected it is a silent no-op so that
// dependent managers never have to guard against a missing connection.
func (s *Session) Emit(event string, payload any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		s.logger.Debug().Str("event", event).Msg("emit skipped, not connected")
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(models.Envelope{Type: event, Data: data})
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, frame)
	s.writeMu.Unlock()
	if err != nil {
		observability.IncWSEvent("client", "ws_write_error")
		s.logger.Error().Err(err).Str("event", event).Msg("websocket write failed")
		return err
	}
	observability.IncWSEvent("client", event)
	return nil
}

// JoinRoom subscribes to a conversation room and records it so it is
// re-joined after a reconnect.
func (s *Session) JoinRoom(senderID, receiverID string) {
	payload := models.JoinRoomPayload{SenderID: senderID, ReceiverID: receiverID}
	s.mu.Lock()
	s.rooms[roomKey(senderID, receiverID)] = payload
	s.mu.Unlock()
	_ = s.Emit(models.EventJoinRoom, payload)
}

// JoinNotificationRoom subscribes to the user's notification room and
// records it for reconnects.
func (s *Session) JoinNotificationRoom(userID string) {
	s.mu.Lock()
	s.notifyRooms[userID] = struct{}{}
	s.mu.Unlock()
	_ = s.Emit(models.EventJoinNotificationRoom, models.JoinNotificationRoomPayload{UserID: userID})
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint+"?userId="+userID, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// teardownLocked invalidates the current read loop or reconnect
// supervisor and closes the connection if one is live. Caller holds s.mu.
func (s *Session) teardownLocked(reason string) {
	s.gen++
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if s.conn == nil {
		return
	}
	_ = s.conn.Close()
	s.conn = nil
	observability.DecWSActive("client")
	observability.IncWSEvent("client", "ws_disconnect")
	s.logger.Info().Str("reason", reason).Msg("websocket closed")
}

func (s *Session) readLoop(conn *websocket.Conn, gen uint64, done chan struct{}) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			stale := gen != s.gen
			if !stale {
				s.conn = nil
				observability.DecWSActive("client")
			}
			s.mu.Unlock()
			if stale {
				return
			}

			observability.IncWSEvent("client", "ws_error")
			s.logger.Warn().Err(err).Msg("websocket read failed, reconnecting")
			s.publishOps(context.Background(), "ws_error", err.Error())
			s.supervise(gen, done)
			return
		}
		s.dispatch(raw)
	}
}

// supervise redials with jittered exponential backoff until the session
// is closed or superseded, then rejoins every recorded room.
func (s *Session) supervise(gen uint64, done chan struct{}) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0

	for {
		select {
		case <-done:
			return
		case <-time.After(policy.NextBackOff()):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		conn, err := s.dial(ctx)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Msg("reconnect attempt failed")
			continue
		}

		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conn = conn
		s.connID = uuid.NewString()
		s.connectedAt = time.Now()
		s.mu.Unlock()

		observability.IncWSActive("client")
		observability.IncWSReconnect()
		s.publishOps(context.Background(), "ws_reconnect", "")
		s.rejoin()

		go s.readLoop(conn, gen, done)
		return
	}
}

func (s *Session) rejoin() {
	s.mu.Lock()
	rooms := make([]models.JoinRoomPayload, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	users := make([]string, 0, len(s.notifyRooms))
	for u := range s.notifyRooms {
		users = append(users, u)
	}
	s.mu.Unlock()

	for _, r := range rooms {
		_ = s.Emit(models.EventJoinRoom, r)
	}
	for _, u := range users {
		_ = s.Emit(models.EventJoinNotificationRoom, models.JoinNotificationRoomPayload{UserID: u})
	}
}

// dispatch parses and validates one inbound frame, then invokes the
// subscribed handlers in registration order. Malformed or unknown events
// are dropped.
func (s *Session) dispatch(raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		observability.IncWSEvent("client", "ws_malformed")
		s.logger.Warn().Err(err).Msg("dropping malformed frame")
		return
	}

	if !s.validInbound(env) {
		return
	}

	s.mu.Lock()
	handlers := append([]Handler(nil), s.handlers[env.Type]...)
	s.mu.Unlock()

	observability.IncWSEvent("client", env.Type)
	for _, h := range handlers {
		h(env.Data)
	}
}

// validInbound checks the payload of known inbound events against the
// typed models before any handler sees it.
func (s *Session) validInbound(env models.Envelope) bool {
	switch env.Type {
	case models.EventNewMessage:
		var msg models.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return s.rejectInbound(env.Type, err)
		}
		if err := s.validate.Struct(msg); err != nil {
			return s.rejectInbound(env.Type, err)
		}
	case models.EventNewNotification:
		var list []models.Notification
		if err := json.Unmarshal(env.Data, &list); err != nil {
			return s.rejectInbound(env.Type, err)
		}
		for _, n := range list {
			if err := s.validate.Struct(n); err != nil {
				return s.rejectInbound(env.Type, err)
			}
		}
	case models.EventAllNotificationsRead:
		// no payload
	default:
		s.logger.Debug().Str("event", env.Type).Msg("dropping unknown event")
		return false
	}
	return true
}

func (s *Session) rejectInbound(event string, err error) bool {
	observability.IncWSEvent("client", "ws_malformed")
	s.logger.Warn().Err(err).Str("event", event).Msg("dropping invalid payload")
	return false
}

func (s *Session) publishOps(ctx context.Context, event, reason string) {
	s.mu.Lock()
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "sync",
			"event":       event,
			"conn_id":     s.connID,
			"duration_ms": time.Since(s.connectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id": s.userID,
		},
	}
	s.mu.Unlock()

	_ = observability.PublishEvent(ctx, opsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, nil)
}

func roomKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
