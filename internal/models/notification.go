package models

import "time"

// Notification is a per-user event record (listing viewed, sale update,
// store broadcast). Created by the gateway, marked read in bulk only and
// deleted individually.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId" validate:"required"`
	Title     string    `db:"title" json:"title"`
	Action    string    `db:"action" json:"action"`
	Detail    string    `db:"detail" json:"detail"`
	Avatar    string    `db:"avatar" json:"avatar"`
	Unread    bool      `db:"unread" json:"unread"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
