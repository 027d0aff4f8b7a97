package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/automarked/automarked-sub000/internal/models"
	"github.com/automarked/automarked-sub000/internal/observability"
	"github.com/automarked/automarked-sub000/internal/rest"
)

const opsRoutingKey = "notifications.sync"

// Socket is the slice of the shared connection the synchronizer needs.
type Socket interface {
	Emit(event string, payload any) error
	On(event string, h func(data json.RawMessage))
}

// AlertFunc is invoked for pushes that should surface to the user
// (sound/toast). The argument is the event name.
type AlertFunc func(event string)

// Synchronizer keeps the notification list, its unread subset and the
// global unread-message counter consistent with REST fetches and live
// pushes.
type Synchronizer struct {
	userID string
	rest   rest.Client
	sock   Socket
	logger zerolog.Logger
	alert  AlertFunc

	mu             sync.Mutex
	notifications  []models.Notification
	unread         []models.Notification
	unreadMessages int
	lastErr        error
}

// NewSynchronizer wires the synchronizer for userID and subscribes it to
// live pushes. alert may be nil.
func NewSynchronizer(userID string, restClient rest.Client, sock Socket, alert AlertFunc, logger zerolog.Logger) *Synchronizer {
	s := &Synchronizer{
		userID: userID,
		rest:   restClient,
		sock:   sock,
		logger: logger.With().Str("component", "notification_sync").Logger(),
		alert:  alert,
	}
	sock.On(models.EventNewNotification, s.handleNewNotification)
	sock.On(models.EventAllNotificationsRead, s.handleAllRead)
	sock.On(models.EventNewMessage, s.handleNewMessage)
	return s
}

// Fetch replaces the local list with the user's full notification list,
// newest first. The gateway returns chronological order; the client
// reverses it.
func (s *Synchronizer) Fetch(ctx context.Context) error {
	list, err := s.rest.Notifications(ctx, s.userID)
	if err != nil {
		s.recordErr("notification fetch failed", err)
		return err
	}

	reversed := make([]models.Notification, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		reversed = append(reversed, list[i])
	}

	s.mu.Lock()
	s.notifications = reversed
	s.mu.Unlock()
	return nil
}

// FetchUnread loads just the unread subset, used for the badge before
// any live push has arrived.
func (s *Synchronizer) FetchUnread(ctx context.Context) error {
	list, err := s.rest.UnreadNotifications(ctx, s.userID)
	if err != nil {
		s.recordErr("unread notification fetch failed", err)
		return err
	}

	s.mu.Lock()
	s.unread = list
	s.mu.Unlock()
	return nil
}

// Add emits a sendNotification event; persistence and the echo back to
// the recipient's room are the gateway's job.
func (s *Synchronizer) Add(payload models.SendNotificationPayload) {
	if err := s.sock.Emit(models.EventSendNotification, payload); err != nil {
		s.logger.Error().Err(err).Msg("send notification failed")
	}
}

// MarkAllRead marks every notification read on the gateway, then clears
// the local unread list and re-fetches the full list. On failure local
// state is left unchanged and the error is recorded.
func (s *Synchronizer) MarkAllRead(ctx context.Context) error {
	if err := s.rest.MarkNotificationsRead(ctx, s.userID); err != nil {
		s.recordErr("mark all read failed", err)
		return err
	}

	s.mu.Lock()
	s.unread = nil
	s.mu.Unlock()
	return s.Fetch(ctx)
}

// Delete removes one notification by id on the gateway, then re-fetches.
// No optimistic removal; the list is stale until the re-fetch lands.
func (s *Synchronizer) Delete(ctx context.Context, notificationID string) error {
	if err := s.rest.DeleteNotification(ctx, s.userID, notificationID); err != nil {
		s.recordErr("notification delete failed", err)
		return err
	}
	return s.Fetch(ctx)
}

// Notifications returns a copy of the full list.
func (s *Synchronizer) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.notifications...)
}

// Unread returns a copy of the unread subset.
func (s *Synchronizer) Unread() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.unread...)
}

// UnreadMessages returns the live unread-message counter.
func (s *Synchronizer) UnreadMessages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadMessages
}

// SetUnreadMessages seeds the counter, typically from a REST fetch at
// mount time.
func (s *Synchronizer) SetUnreadMessages(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreadMessages = count
}

// Err returns the last recorded failure, if any.
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// handleNewNotification replaces the full list with the pushed array
// (the gateway always sends the complete current list, never a delta)
// and prepends its newest element to the unread subset exactly once.
func (s *Synchronizer) handleNewNotification(data json.RawMessage) {
	var list []models.Notification
	if err := json.Unmarshal(data, &list); err != nil {
		s.logger.Warn().Err(err).Msg("dropping undecodable notification push")
		return
	}
	if len(list) == 0 {
		return
	}

	newest := list[len(list)-1]
	s.mu.Lock()
	s.notifications = list
	if !containsID(s.unread, newest.ID) {
		s.unread = append([]models.Notification{newest}, s.unread...)
	}
	s.mu.Unlock()

	s.fireAlert(models.EventNewNotification)
}

// handleAllRead clears the unread subset; the companion mark-all-read
// was performed elsewhere, e.g. another open session.
func (s *Synchronizer) handleAllRead(json.RawMessage) {
	s.mu.Lock()
	s.unread = nil
	s.mu.Unlock()
}

// handleNewMessage bumps the global unread-message counter by exactly
// one. It never touches the notification list.
func (s *Synchronizer) handleNewMessage(json.RawMessage) {
	s.mu.Lock()
	s.unreadMessages++
	count := s.unreadMessages
	s.mu.Unlock()

	observability.SetUnreadMessages(count)
	s.fireAlert(models.EventNewMessage)
}

func (s *Synchronizer) fireAlert(event string) {
	if s.alert != nil {
		s.alert(event)
	}
	_ = observability.PublishEvent(context.Background(), opsRoutingKey, observability.EventEnvelope{
		EventType: "sync_events",
		EventName: event,
		Payload:   map[string]interface{}{"user_id": s.userID},
	}, nil)
}

func (s *Synchronizer) recordErr(msg string, err error) {
	s.logger.Error().Err(err).Msg(msg)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func containsID(list []models.Notification, id string) bool {
	for _, n := range list {
		if n.ID == id {
			return true
		}
	}
	return false
}
