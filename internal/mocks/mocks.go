package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/automarked/automarked-sub000/internal/models"
	"github.com/automarked/automarked-sub000/internal/repositories"
	"github.com/automarked/automarked-sub000/internal/rest"
)

type RESTClientMock struct {
	mock.Mock
}

func (m *RESTClientMock) Messages(ctx context.Context, senderID, receiverID string) ([]models.Message, error) {
	args := m.Called(ctx, senderID, receiverID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *RESTClientMock) UserChats(ctx context.Context, userID string) ([]models.Chat, error) {
	args := m.Called(ctx, userID)
	var chats []models.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]models.Chat)
	}
	return chats, args.Error(1)
}

func (m *RESTClientMock) UnreadMessages(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *RESTClientMock) Notifications(ctx context.Context, userID string) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *RESTClientMock) UnreadNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *RESTClientMock) MarkNotificationsRead(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *RESTClientMock) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *RESTClientMock) GroupMembers(ctx context.Context, companyID string) ([]string, error) {
	args := m.Called(ctx, companyID)
	var list []string
	if val := args.Get(0); val != nil {
		list = val.([]string)
	}
	return list, args.Error(1)
}

func (m *RESTClientMock) GroupAdd(ctx context.Context, companyID, userID string) ([]string, error) {
	args := m.Called(ctx, companyID, userID)
	var list []string
	if val := args.Get(0); val != nil {
		list = val.([]string)
	}
	return list, args.Error(1)
}

func (m *RESTClientMock) GroupRemove(ctx context.Context, companyID, userID string) ([]string, error) {
	args := m.Called(ctx, companyID, userID)
	var list []string
	if val := args.Get(0); val != nil {
		list = val.([]string)
	}
	return list, args.Error(1)
}

func (m *RESTClientMock) GroupClear(ctx context.Context, companyID string) ([]string, error) {
	args := m.Called(ctx, companyID)
	var list []string
	if val := args.Get(0); val != nil {
		list = val.([]string)
	}
	return list, args.Error(1)
}

// SocketFake records emits and room joins and lets tests push inbound
// events straight into the registered handlers.
type SocketFake struct {
	Emits      []EmittedEvent
	JoinedPair []models.JoinRoomPayload
	handlers   map[string][]func(data json.RawMessage)
}

type EmittedEvent struct {
	Event   string
	Payload any
}

func NewSocketFake() *SocketFake {
	return &SocketFake{handlers: make(map[string][]func(data json.RawMessage))}
}

func (s *SocketFake) Emit(event string, payload any) error {
	s.Emits = append(s.Emits, EmittedEvent{Event: event, Payload: payload})
	return nil
}

func (s *SocketFake) JoinRoom(senderID, receiverID string) {
	p := models.JoinRoomPayload{SenderID: senderID, ReceiverID: receiverID}
	s.JoinedPair = append(s.JoinedPair, p)
	_ = s.Emit(models.EventJoinRoom, p)
}

func (s *SocketFake) On(event string, h func(data json.RawMessage)) {
	s.handlers[event] = append(s.handlers[event], h)
}

// Push delivers a server event to every registered handler, encoding
// the payload the way the wire would.
func (s *SocketFake) Push(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	for _, h := range s.handlers[event] {
		h(data)
	}
}

// PushRaw delivers an already-encoded payload.
func (s *SocketFake) PushRaw(event string, data json.RawMessage) {
	for _, h := range s.handlers[event] {
		h(data)
	}
}

type MessageStoreMock struct {
	mock.Mock
}

func (m *MessageStoreMock) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageStoreMock) Conversation(ctx context.Context, userID, counterpartID string) ([]models.Message, error) {
	args := m.Called(ctx, userID, counterpartID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageStoreMock) UserChats(ctx context.Context, userID string) ([]models.Chat, error) {
	args := m.Called(ctx, userID)
	var chats []models.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]models.Chat)
	}
	return chats, args.Error(1)
}

func (m *MessageStoreMock) UnreadCount(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type NotificationStoreMock struct {
	mock.Mock
}

func (m *NotificationStoreMock) Append(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var stored models.Notification
	if val := args.Get(0); val != nil {
		stored = val.(models.Notification)
	}
	return stored, args.Error(1)
}

func (m *NotificationStoreMock) ForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationStoreMock) UnreadForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationStoreMock) MarkAllRead(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *NotificationStoreMock) Delete(ctx context.Context, userID, notificationID string) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

type GroupStoreMock struct {
	mock.Mock
}

func (m *GroupStoreMock) Members(ctx context.Context, companyID string) ([]string, error) {
	args := m.Called(ctx, companyID)
	var list []string
	if val := args.Get(0); val != nil {
		list = val.([]string)
	}
	return list, args.Error(1)
}

func (m *GroupStoreMock) Add(ctx context.Context, companyID, userID string) ([]string, error) {
	args := m.Called(ctx, companyID, userID)
	var list []string
	if val := args.Get(0); val != nil {
		list = val.([]string)
	}
	return list, args.Error(1)
}

func (m *GroupStoreMock) Remove(ctx context.Context, companyID, userID string) ([]string, error) {
	args := m.Called(ctx, companyID, userID)
	var list []string
	if val := args.Get(0); val != nil {
		list = val.([]string)
	}
	return list, args.Error(1)
}

func (m *GroupStoreMock) Clear(ctx context.Context, companyID string) ([]string, error) {
	args := m.Called(ctx, companyID)
	var list []string
	if val := args.Get(0); val != nil {
		list = val.([]string)
	}
	return list, args.Error(1)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastAllRead(userID string) {
	m.Called(userID)
}

var _ rest.Client = (*RESTClientMock)(nil)
var _ repositories.MessageStore = (*MessageStoreMock)(nil)
var _ repositories.NotificationStore = (*NotificationStoreMock)(nil)
var _ repositories.GroupStore = (*GroupStoreMock)(nil)
