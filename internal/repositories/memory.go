package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/automarked/automarked-sub000/internal/models"
)

// MemoryMessageStore is the in-memory message backend used by tests and
// local development when no database DSN is configured.
type MemoryMessageStore struct {
	mu       sync.Mutex
	messages []models.Message
}

// NewMemoryMessageStore builds an empty store.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{}
}

var _ MessageStore = (*MemoryMessageStore)(nil)

// Append stores a message with a fresh id and server-side timestamp.
func (s *MemoryMessageStore) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	msg.Read = false
	s.messages = append(s.messages, msg)
	return msg, nil
}

// Conversation returns the pair's history in creation order and marks
// the messages addressed to userID as read.
func (s *MemoryMessageStore) Conversation(ctx context.Context, userID, counterpartID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []models.Message
	for i := range s.messages {
		m := &s.messages[i]
		if !betweenUsers(*m, userID, counterpartID) {
			continue
		}
		if m.ReceiverID == userID {
			m.Read = true
		}
		history = append(history, *m)
	}
	return history, nil
}

// UserChats derives one summary per counterpart, most recent first.
func (s *MemoryMessageStore) UserChats(ctx context.Context, userID string) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCounterpart := make(map[string]*models.Chat)
	for i := range s.messages {
		m := s.messages[i]
		var counterpart string
		switch userID {
		case m.SenderID:
			counterpart = m.ReceiverID
		case m.ReceiverID:
			counterpart = m.SenderID
		default:
			continue
		}

		chat, ok := byCounterpart[counterpart]
		if !ok {
			chat = &models.Chat{ReceiverID: counterpart}
			byCounterpart[counterpart] = chat
		}
		last := m
		chat.LastMessage = &last
		if m.ReceiverID == userID && !m.Read {
			chat.UnreadMessagesCount++
		}
	}

	chats := make([]models.Chat, 0, len(byCounterpart))
	for _, chat := range byCounterpart {
		chats = append(chats, *chat)
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].LastMessage.CreatedAt.After(chats[j].LastMessage.CreatedAt)
	})
	return chats, nil
}

// UnreadCount returns the user's unread total across all conversations.
func (s *MemoryMessageStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.messages {
		if m.ReceiverID == userID && !m.Read {
			count++
		}
	}
	return count, nil
}

// MemoryNotificationStore keeps per-user notification lists in memory.
type MemoryNotificationStore struct {
	mu            sync.Mutex
	notifications map[string][]models.Notification
}

// NewMemoryNotificationStore builds an empty store.
func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{notifications: make(map[string][]models.Notification)}
}

var _ NotificationStore = (*MemoryNotificationStore)(nil)

// Append stores a notification as unread with a fresh id.
func (s *MemoryNotificationStore) Append(ctx context.Context, n models.Notification) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now().UTC()
	n.Unread = true
	s.notifications[n.UserID] = append(s.notifications[n.UserID], n)
	return n, nil
}

// ForUser returns the user's notifications in chronological order.
func (s *MemoryNotificationStore) ForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.notifications[userID]...), nil
}

// UnreadForUser returns just the unread subset, chronological.
func (s *MemoryNotificationStore) UnreadForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unread []models.Notification
	for _, n := range s.notifications[userID] {
		if n.Unread {
			unread = append(unread, n)
		}
	}
	return unread, nil
}

// MarkAllRead flips every unread flag for the user.
func (s *MemoryNotificationStore) MarkAllRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.notifications[userID]
	for i := range list {
		list[i].Unread = false
	}
	return nil
}

// Delete removes one notification; unknown ids are ignored.
func (s *MemoryNotificationStore) Delete(ctx context.Context, userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.notifications[userID]
	for i, n := range list {
		if n.ID == notificationID {
			s.notifications[userID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

// MemoryGroupStore keeps company group subscriber lists in memory.
type MemoryGroupStore struct {
	mu     sync.Mutex
	groups map[string][]string
}

// NewMemoryGroupStore builds an empty store.
func NewMemoryGroupStore() *MemoryGroupStore {
	return &MemoryGroupStore{groups: make(map[string][]string)}
}

var _ GroupStore = (*MemoryGroupStore)(nil)

// Members returns the company group's subscriber list.
func (s *MemoryGroupStore) Members(ctx context.Context, companyID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.groups[companyID]...), nil
}

// Add subscribes a user; adding twice is a no-op.
func (s *MemoryGroupStore) Add(ctx context.Context, companyID, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.groups[companyID] {
		if id == userID {
			return append([]string(nil), s.groups[companyID]...), nil
		}
	}
	s.groups[companyID] = append(s.groups[companyID], userID)
	return append([]string(nil), s.groups[companyID]...), nil
}

// Remove unsubscribes a user; unknown users are ignored.
func (s *MemoryGroupStore) Remove(ctx context.Context, companyID, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.groups[companyID]
	for i, id := range list {
		if id == userID {
			s.groups[companyID] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	return append([]string(nil), s.groups[companyID]...), nil
}

// Clear drops every subscriber of the company group.
func (s *MemoryGroupStore) Clear(ctx context.Context, companyID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[companyID] = nil
	return []string{}, nil
}

func betweenUsers(m models.Message, a, b string) bool {
	if m.SenderID == a && m.ReceiverID == b {
		return true
	}
	return m.SenderID == b && m.ReceiverID == a
}
