package models

import "time"

// Message is a single chat message between two marketplace users.
// Messages are immutable once created; ordering is by creation time
// as assigned by the gateway.
type Message struct {
	ID         string    `db:"id" json:"id"`
	SenderID   string    `db:"sender_id" json:"senderId" validate:"required"`
	ReceiverID string    `db:"receiver_id" json:"receiverId" validate:"required"`
	Text       string    `db:"content" json:"message" validate:"required"`
	Read       bool      `db:"read" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Chat summarizes one conversation with a counterpart: who it is with,
// the latest message exchanged and how many messages the user has not
// viewed yet.
type Chat struct {
	ReceiverID          string   `json:"receiverId"`
	LastMessage         *Message `json:"lastMessage,omitempty"`
	UnreadMessagesCount int      `json:"unreadMessagesCount"`
}
