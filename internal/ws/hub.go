package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/automarked/automarked-sub000/internal/models"
	"github.com/automarked/automarked-sub000/internal/observability"
)

const opsRoutingKey = "ws_events.gateway"

// Hub maintains the active websocket rooms: one conversation room per
// user pair and one notification room per user.
type Hub struct {
	chatRooms map[string]map[*websocket.Conn]bool
	userRooms map[string]map[*websocket.Conn]bool
	connInfo  map[*websocket.Conn]ConnInfo
	mu        sync.RWMutex
	logger    zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		chatRooms: make(map[string]map[*websocket.Conn]bool),
		userRooms: make(map[string]map[*websocket.Conn]bool),
		connInfo:  make(map[*websocket.Conn]ConnInfo),
		logger:    logger.With().Str("component", "hub").Logger(),
	}
}

// Register records a connection's identity before it joins any room.
func (h *Hub) Register(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connInfo[conn] = info
}

// AddChatClient subscribes a connection to a conversation room.
func (h *Hub) AddChatClient(roomKey string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.chatRooms[roomKey]; !ok {
		h.chatRooms[roomKey] = make(map[*websocket.Conn]bool)
	}
	h.chatRooms[roomKey][conn] = true
}

// AddUserClient subscribes a connection to a user's notification room.
func (h *Hub) AddUserClient(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.userRooms[userID]; !ok {
		h.userRooms[userID] = make(map[*websocket.Conn]bool)
	}
	h.userRooms[userID][conn] = true
}

// RemoveConn drops a connection from every room. Called on disconnect.
func (h *Hub) RemoveConn(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, conns := range h.chatRooms {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.chatRooms, key)
		}
	}
	for key, conns := range h.userRooms {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.userRooms, key)
		}
	}
	delete(h.connInfo, conn)
}

// BroadcastNewMessage delivers a stored message to the conversation room
// and to the receiver's notification room, once per connection.
func (h *Hub) BroadcastNewMessage(roomKey, receiverID string, msg models.Message) {
	h.mu.RLock()
	targets := make(map[*websocket.Conn]bool, len(h.chatRooms[roomKey])+len(h.userRooms[receiverID]))
	for conn := range h.chatRooms[roomKey] {
		targets[conn] = true
	}
	for conn := range h.userRooms[receiverID] {
		targets[conn] = true
	}
	h.mu.RUnlock()

	h.broadcast(targets, models.EventNewMessage, msg)
}

// BroadcastNotifications pushes the user's full current notification
// list to their room. Always the complete list, never a delta.
func (h *Hub) BroadcastNotifications(userID string, list []models.Notification) {
	h.mu.RLock()
	targets := make(map[*websocket.Conn]bool, len(h.userRooms[userID]))
	for conn := range h.userRooms[userID] {
		targets[conn] = true
	}
	h.mu.RUnlock()

	h.broadcast(targets, models.EventNewNotification, list)
}

// BroadcastAllRead tells the user's other sessions that everything was
// marked read.
func (h *Hub) BroadcastAllRead(userID string) {
	h.mu.RLock()
	targets := make(map[*websocket.Conn]bool, len(h.userRooms[userID]))
	for conn := range h.userRooms[userID] {
		targets[conn] = true
	}
	h.mu.RUnlock()

	h.broadcast(targets, models.EventAllNotificationsRead, nil)
}

func (h *Hub) broadcast(targets map[*websocket.Conn]bool, event string, payload any) {
	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			h.logger.Error().Err(err).Str("event", event).Msg("encode broadcast payload")
			return
		}
		data = encoded
	}
	frame, err := json.Marshal(models.Envelope{Type: event, Data: data})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("encode broadcast frame")
		return
	}

	for conn := range targets {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Warn().Err(err).Str("event", event).Msg("websocket write failed")
			conn.Close()
			h.publishConnError(conn, err)
			h.RemoveConn(conn)
			continue
		}
		observability.IncWSEvent("gateway", event)
	}
}

func (h *Hub) publishConnError(conn *websocket.Conn, err error) {
	h.mu.RLock()
	info, ok := h.connInfo[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	observability.IncWSEvent("gateway", "ws_error")
	_ = observability.PublishEvent(context.Background(), opsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "gateway",
				"event":       "ws_error",
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      err.Error(),
			},
			"identity": map[string]interface{}{
				"user_id": info.UserID,
				"ip":      info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
