package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/automarked/automarked-sub000/internal/models"
)

// Connect opens the gateway database and applies migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            sender_id TEXT NOT NULL,
            receiver_id TEXT NOT NULL,
            content TEXT NOT NULL,
            "read" BOOLEAN DEFAULT FALSE,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_id TEXT NOT NULL,
            title TEXT NOT NULL DEFAULT '',
            action TEXT NOT NULL DEFAULT '',
            detail TEXT NOT NULL DEFAULT '',
            avatar TEXT NOT NULL DEFAULT '',
            unread BOOLEAN DEFAULT TRUE,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS group_subscribers (
            company_id TEXT NOT NULL,
            user_id TEXT NOT NULL,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            PRIMARY KEY (company_id, user_id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver_unread
            ON messages (receiver_id) WHERE "read" = FALSE;`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// PostgresMessageStore is the sqlx-backed MessageStore.
type PostgresMessageStore struct {
	db *sqlx.DB
}

// NewPostgresMessageStore constructs the store.
func NewPostgresMessageStore(db *sqlx.DB) *PostgresMessageStore {
	return &PostgresMessageStore{db: db}
}

var _ MessageStore = (*PostgresMessageStore)(nil)

// Append inserts a message and returns it with id and timestamp set.
func (r *PostgresMessageStore) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	var stored models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, content) VALUES ($1, $2, $3)
         RETURNING id, sender_id, receiver_id, content, "read", created_at`,
		msg.SenderID, msg.ReceiverID, msg.Text).
		StructScan(&stored)
	return stored, err
}

// Conversation marks the user's side of the pair as read, then returns
// the full ordered history.
func (r *PostgresMessageStore) Conversation(ctx context.Context, userID, counterpartID string) ([]models.Message, error) {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE messages SET "read" = TRUE
         WHERE receiver_id = $1 AND sender_id = $2 AND "read" = FALSE`,
		userID, counterpartID); err != nil {
		return nil, err
	}

	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, sender_id, receiver_id, content, "read", created_at FROM messages
         WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
         ORDER BY created_at ASC`,
		userID, counterpartID)
	return msgs, err
}

// UserChats derives the summaries from the latest message per counterpart.
func (r *PostgresMessageStore) UserChats(ctx context.Context, userID string) ([]models.Chat, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, sender_id, receiver_id, content, "read", created_at FROM messages
         WHERE sender_id = $1 OR receiver_id = $1
         ORDER BY created_at ASC`,
		userID)
	if err != nil {
		return nil, err
	}

	byCounterpart := make(map[string]*models.Chat)
	var order []string
	for i := range msgs {
		m := msgs[i]
		counterpart := m.SenderID
		if counterpart == userID {
			counterpart = m.ReceiverID
		}

		chat, ok := byCounterpart[counterpart]
		if !ok {
			chat = &models.Chat{ReceiverID: counterpart}
			byCounterpart[counterpart] = chat
			order = append(order, counterpart)
		}
		last := m
		chat.LastMessage = &last
		if m.ReceiverID == userID && !m.Read {
			chat.UnreadMessagesCount++
		}
	}

	chats := make([]models.Chat, 0, len(order))
	for _, counterpart := range order {
		chats = append(chats, *byCounterpart[counterpart])
	}
	return chats, nil
}

// UnreadCount returns the user's total unread messages.
func (r *PostgresMessageStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND "read" = FALSE`, userID)
	return count, err
}

// PostgresNotificationStore is the sqlx-backed NotificationStore.
type PostgresNotificationStore struct {
	db *sqlx.DB
}

// NewPostgresNotificationStore constructs the store.
func NewPostgresNotificationStore(db *sqlx.DB) *PostgresNotificationStore {
	return &PostgresNotificationStore{db: db}
}

var _ NotificationStore = (*PostgresNotificationStore)(nil)

// Append inserts an unread notification.
func (r *PostgresNotificationStore) Append(ctx context.Context, n models.Notification) (models.Notification, error) {
	var stored models.Notification
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO notifications (user_id, title, action, detail, avatar) VALUES ($1, $2, $3, $4, $5)
         RETURNING id, user_id, title, action, detail, avatar, unread, created_at`,
		n.UserID, n.Title, n.Action, n.Detail, n.Avatar).
		StructScan(&stored)
	return stored, err
}

// ForUser returns the full list, chronological.
func (r *PostgresNotificationStore) ForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.SelectContext(ctx, &list,
		`SELECT id, user_id, title, action, detail, avatar, unread, created_at FROM notifications
         WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	return list, err
}

// UnreadForUser returns the unread subset, chronological.
func (r *PostgresNotificationStore) UnreadForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.SelectContext(ctx, &list,
		`SELECT id, user_id, title, action, detail, avatar, unread, created_at FROM notifications
         WHERE user_id = $1 AND unread = TRUE ORDER BY created_at ASC`, userID)
	return list, err
}

// MarkAllRead flips every unread flag for the user.
func (r *PostgresNotificationStore) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET unread = FALSE WHERE user_id = $1 AND unread = TRUE`, userID)
	return err
}

// Delete removes one notification; unknown ids are ignored.
func (r *PostgresNotificationStore) Delete(ctx context.Context, userID, notificationID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = $1 AND id = $2`, userID, notificationID)
	return err
}

// PostgresGroupStore is the sqlx-backed GroupStore.
type PostgresGroupStore struct {
	db *sqlx.DB
}

// NewPostgresGroupStore constructs the store.
func NewPostgresGroupStore(db *sqlx.DB) *PostgresGroupStore {
	return &PostgresGroupStore{db: db}
}

var _ GroupStore = (*PostgresGroupStore)(nil)

// Members returns the subscriber list in subscription order.
func (r *PostgresGroupStore) Members(ctx context.Context, companyID string) ([]string, error) {
	var list []string
	err := r.db.SelectContext(ctx, &list,
		`SELECT user_id FROM group_subscribers WHERE company_id = $1 ORDER BY created_at ASC`, companyID)
	return list, err
}

// Add subscribes a user; duplicates are ignored.
func (r *PostgresGroupStore) Add(ctx context.Context, companyID, userID string) ([]string, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO group_subscribers (company_id, user_id) VALUES ($1, $2)
         ON CONFLICT (company_id, user_id) DO NOTHING`, companyID, userID); err != nil {
		return nil, err
	}
	return r.Members(ctx, companyID)
}

// Remove unsubscribes a user.
func (r *PostgresGroupStore) Remove(ctx context.Context, companyID, userID string) ([]string, error) {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM group_subscribers WHERE company_id = $1 AND user_id = $2`, companyID, userID); err != nil {
		return nil, err
	}
	return r.Members(ctx, companyID)
}

// Clear drops the whole group.
func (r *PostgresGroupStore) Clear(ctx context.Context, companyID string) ([]string, error) {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM group_subscribers WHERE company_id = $1`, companyID); err != nil {
		return nil, err
	}
	return []string{}, nil
}
