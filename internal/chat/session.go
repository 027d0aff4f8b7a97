package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/automarked/automarked-sub000/internal/models"
	"github.com/automarked/automarked-sub000/internal/observability"
	"github.com/automarked/automarked-sub000/internal/rest"
)

// State is the lifecycle of the active conversation.
type State int

const (
	// StateIdle means no receiver is selected; Refresh loads the chat list.
	StateIdle State = iota
	// StateLoading means a history fetch for the selected receiver is in flight.
	StateLoading
	// StateReady means the message list for the selected receiver is populated.
	StateReady
)

// Socket is the outbound surface the session needs from the shared
// connection.
type Socket interface {
	Emit(event string, payload any) error
	JoinRoom(senderID, receiverID string)
	On(event string, h func(data json.RawMessage))
}

// Session manages the active conversation and the conversation list for
// one user. Sent messages are not appended locally; the gateway's
// newMessage echo is the single source of ordering truth.
type Session struct {
	userID string
	rest   rest.Client
	sock   Socket
	logger zerolog.Logger

	mu         sync.Mutex
	state      State
	receiverID string
	draft      string
	messages   []models.Message
	chats      []models.Chat
	unread     int
	gen        uint64
}

// NewSession wires a session for userID and subscribes it to live pushes.
func NewSession(userID string, restClient rest.Client, sock Socket, logger zerolog.Logger) *Session {
	s := &Session{
		userID: userID,
		rest:   restClient,
		sock:   sock,
		logger: logger.With().Str("component", "chat_session").Logger(),
	}
	sock.On(models.EventNewMessage, s.handleNewMessage)
	return s
}

// SetReceiver selects the active conversation: joins its room and loads
// the message history.
func (s *Session) SetReceiver(ctx context.Context, receiverID string) {
	s.mu.Lock()
	s.receiverID = receiverID
	s.state = StateLoading
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.sock.JoinRoom(s.userID, receiverID)
	s.loadHistory(ctx, receiverID, gen)
}

// ClearReceiver returns the session to Idle and discards the message list.
func (s *Session) ClearReceiver() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiverID = ""
	s.messages = nil
	s.state = StateIdle
	s.gen++
}

// Refresh performs exactly one fetch: the message history when a receiver
// is selected, otherwise the conversation list followed by an
// unread-count refresh.
func (s *Session) Refresh(ctx context.Context) {
	s.mu.Lock()
	receiverID := s.receiverID
	s.gen++
	gen := s.gen
	if receiverID != "" {
		s.state = StateLoading
	}
	s.mu.Unlock()

	if receiverID != "" {
		s.loadHistory(ctx, receiverID, gen)
		return
	}

	chats, err := s.rest.UserChats(ctx, s.userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("chat list fetch failed")
	} else {
		s.mu.Lock()
		if gen == s.gen {
			s.chats = chats
		}
		s.mu.Unlock()
	}
	s.RefreshUnread(ctx)
}

// RefreshUnread fetches the user's total unread-message count,
// independent of which room is open.
func (s *Session) RefreshUnread(ctx context.Context) {
	count, err := s.rest.UnreadMessages(ctx, s.userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("unread count fetch failed")
		return
	}
	s.mu.Lock()
	s.unread = count
	s.mu.Unlock()
	observability.SetUnreadMessages(count)
}

// SetDraft replaces the compose buffer.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// Draft returns the compose buffer.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Send emits the draft as a sendMessage event and clears the buffer
// synchronously, regardless of delivery outcome. A whitespace-only draft
// or a missing receiver is a silent no-op that leaves all state alone.
func (s *Session) Send() {
	s.mu.Lock()
	text := strings.TrimSpace(s.draft)
	receiverID := s.receiverID
	if text == "" || receiverID == "" {
		s.mu.Unlock()
		return
	}
	s.draft = ""
	s.mu.Unlock()

	err := s.sock.Emit(models.EventSendMessage, models.SendMessagePayload{
		SenderID:   s.userID,
		ReceiverID: receiverID,
		Message:    text,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("send failed")
	}
}

// State returns the current conversation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Receiver returns the selected counterpart, empty when Idle.
func (s *Session) Receiver() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receiverID
}

// Messages returns a copy of the active room's message list.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

// Chats returns a copy of the conversation summaries.
func (s *Session) Chats() []models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Chat(nil), s.chats...)
}

// Unread returns the last fetched global unread-message count.
func (s *Session) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// loadHistory applies the fetched history only if no newer fetch or
// receiver change superseded it in the meantime.
func (s *Session) loadHistory(ctx context.Context, receiverID string, gen uint64) {
	msgs, err := s.rest.Messages(ctx, s.userID, receiverID)
	if err != nil {
		s.logger.Error().Err(err).Str("receiver_id", receiverID).Msg("history fetch failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.logger.Debug().Str("receiver_id", receiverID).Msg("discarding stale history response")
		return
	}
	s.messages = msgs
	s.state = StateReady
}

// handleNewMessage appends a live push to the open room in arrival order.
func (s *Session) handleNewMessage(data json.RawMessage) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn().Err(err).Msg("dropping undecodable message push")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receiverID == "" {
		return
	}
	if !s.belongsToActiveRoom(msg) {
		return
	}
	s.messages = append(s.messages, msg)
}

// belongsToActiveRoom guards against cross-talk: every push arrives on
// the one shared connection, including messages for the notification
// counter while a different room is open. Caller holds s.mu.
func (s *Session) belongsToActiveRoom(msg models.Message) bool {
	if msg.SenderID == s.userID && msg.ReceiverID == s.receiverID {
		return true
	}
	return msg.SenderID == s.receiverID && msg.ReceiverID == s.userID
}
