package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/automarked/automarked-sub000/internal/models"
	"github.com/automarked/automarked-sub000/internal/observability"
	"github.com/automarked/automarked-sub000/internal/repositories"
)

// GatewayHandler upgrades client connections and processes the four
// outbound client events: joinRoom, sendMessage, joinNotificationRoom
// and sendNotification.
type GatewayHandler struct {
	hub           *Hub
	messages      repositories.MessageStore
	notifications repositories.NotificationStore
	validate      *validator.Validate
	logger        zerolog.Logger
}

// NewGatewayHandler constructs the websocket endpoint handler.
func NewGatewayHandler(hub *Hub, messages repositories.MessageStore, notifications repositories.NotificationStore, logger zerolog.Logger) *GatewayHandler {
	return &GatewayHandler{
		hub:           hub,
		messages:      messages,
		notifications: notifications,
		validate:      validator.New(),
		logger:        logger.With().Str("component", "gateway_ws").Logger(),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and serves its event loop.
func (h *GatewayHandler) Handle(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing userId"})
		return
	}

	ctx, span := otel.Tracer("automarked-gateway/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.Register(conn, info)

	observability.IncWSActive("gateway")
	observability.IncWSEvent("gateway", "ws_connect")
	h.publishLifecycle(context.Background(), info, "ws_connect", "")

	go h.serve(conn, info)
}

func (h *GatewayHandler) serve(conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.RemoveConn(conn)
		observability.DecWSActive("gateway")
		observability.IncWSEvent("gateway", "ws_disconnect")
		h.publishLifecycle(context.Background(), info, "ws_disconnect", closeReason)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("gateway", "ws_error")
				h.publishLifecycle(context.Background(), info, "ws_error", closeReason)
			}
			return
		}
		h.handleFrame(conn, info, raw)
	}
}

func (h *GatewayHandler) handleFrame(conn *websocket.Conn, info ConnInfo, raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.logger.Warn().Err(err).Str("user_id", info.UserID).Msg("dropping malformed frame")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch env.Type {
	case models.EventJoinRoom:
		var p models.JoinRoomPayload
		if !h.decode(env, &p) {
			return
		}
		h.hub.AddChatClient(RoomKey(p.SenderID, p.ReceiverID), conn)
	case models.EventJoinNotificationRoom:
		var p models.JoinNotificationRoomPayload
		if !h.decode(env, &p) {
			return
		}
		h.hub.AddUserClient(p.UserID, conn)
	case models.EventSendMessage:
		var p models.SendMessagePayload
		if !h.decode(env, &p) {
			return
		}
		h.handleSendMessage(ctx, p)
	case models.EventSendNotification:
		var p models.SendNotificationPayload
		if !h.decode(env, &p) {
			return
		}
		h.handleSendNotification(ctx, p)
	default:
		h.logger.Debug().Str("event", env.Type).Msg("ignoring unknown event")
	}
}

// handleSendMessage persists the message and echoes it to the room and
// to the receiver's notification room. The stored message carries the
// gateway's id and timestamp; the gateway is the ordering authority.
func (h *GatewayHandler) handleSendMessage(ctx context.Context, p models.SendMessagePayload) {
	stored, err := h.messages.Append(ctx, models.Message{
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		Text:       p.Message,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("store message failed")
		return
	}
	observability.IncWSEvent("gateway", models.EventSendMessage)
	h.hub.BroadcastNewMessage(RoomKey(p.SenderID, p.ReceiverID), p.ReceiverID, stored)
}

// handleSendNotification persists the notification and pushes the
// recipient's full current list to their room.
func (h *GatewayHandler) handleSendNotification(ctx context.Context, p models.SendNotificationPayload) {
	if _, err := h.notifications.Append(ctx, models.Notification{
		UserID: p.UserID,
		Title:  p.Title,
		Action: p.Action,
		Detail: p.Detail,
		Avatar: p.Avatar,
	}); err != nil {
		h.logger.Error().Err(err).Msg("store notification failed")
		return
	}

	list, err := h.notifications.ForUser(ctx, p.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("load notifications failed")
		return
	}
	observability.IncWSEvent("gateway", models.EventSendNotification)
	h.hub.BroadcastNotifications(p.UserID, list)
}

// decode unmarshals and validates an event payload, logging and
// dropping anything malformed.
func (h *GatewayHandler) decode(env models.Envelope, out any) bool {
	if err := json.Unmarshal(env.Data, out); err != nil {
		h.logger.Warn().Err(err).Str("event", env.Type).Msg("dropping undecodable payload")
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		h.logger.Warn().Err(err).Str("event", env.Type).Msg("dropping invalid payload")
		return false
	}
	return true
}

func (h *GatewayHandler) publishLifecycle(ctx context.Context, info ConnInfo, event, reason string) {
	_ = observability.PublishEvent(ctx, opsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "gateway",
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id": info.UserID,
				"ip":      info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
