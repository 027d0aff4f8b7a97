package models

import (
	"encoding/json"
	"time"
)

// Socket event names. Outbound events are emitted by the client,
// inbound events are pushed by the gateway.
const (
	EventJoinRoom             = "joinRoom"
	EventSendMessage          = "sendMessage"
	EventJoinNotificationRoom = "joinNotificationRoom"
	EventSendNotification     = "sendNotification"

	EventNewMessage           = "newMessage"
	EventNewNotification      = "newNotification"
	EventAllNotificationsRead = "allNotificationsAsRead"
)

// Envelope frames every event on the socket.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JoinRoomPayload asks the gateway to subscribe the connection to the
// conversation between sender and receiver.
type JoinRoomPayload struct {
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
}

// SendMessagePayload carries an outbound chat message.
type SendMessagePayload struct {
	SenderID   string    `json:"senderId" validate:"required"`
	ReceiverID string    `json:"receiverId" validate:"required"`
	Message    string    `json:"message" validate:"required"`
	Timestamp  time.Time `json:"timestamp"`
}

// JoinNotificationRoomPayload subscribes the connection to the user's
// personal notification room.
type JoinNotificationRoomPayload struct {
	UserID string `json:"userId" validate:"required"`
}

// SendNotificationPayload asks the gateway to persist a notification for
// UserID and echo it back to that user's room. Fire and forget from the
// sender's perspective.
type SendNotificationPayload struct {
	UserID string `json:"userId" validate:"required"`
	Title  string `json:"title"`
	Action string `json:"action"`
	Detail string `json:"detail"`
	Avatar string `json:"avatar"`
}
