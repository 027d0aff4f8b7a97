package repositories

import (
	"context"

	"github.com/automarked/automarked-sub000/internal/models"
)

// MessageStore persists chat messages and derives conversation views.
type MessageStore interface {
	// Append stores a message, assigning id and creation time.
	Append(ctx context.Context, msg models.Message) (models.Message, error)
	// Conversation returns the ordered history between the two users and
	// marks the messages addressed to userID as read, so the pair's
	// contribution to the unread total is reconciled exactly once.
	Conversation(ctx context.Context, userID, counterpartID string) ([]models.Message, error)
	// UserChats returns one summary per distinct counterpart.
	UserChats(ctx context.Context, userID string) ([]models.Chat, error)
	// UnreadCount returns the user's total unread messages across all
	// conversations.
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// NotificationStore persists per-user notifications.
type NotificationStore interface {
	Append(ctx context.Context, n models.Notification) (models.Notification, error)
	// ForUser returns the full list in chronological order.
	ForUser(ctx context.Context, userID string) ([]models.Notification, error)
	UnreadForUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) error
	// Delete removes one notification. Deleting an id that does not
	// exist is not an error.
	Delete(ctx context.Context, userID, notificationID string) error
}

// GroupStore persists company notification-group subscriptions. Every
// mutation returns the authoritative subscriber list.
type GroupStore interface {
	Members(ctx context.Context, companyID string) ([]string, error)
	Add(ctx context.Context, companyID, userID string) ([]string, error)
	Remove(ctx context.Context, companyID, userID string) ([]string, error)
	Clear(ctx context.Context, companyID string) ([]string, error)
}
