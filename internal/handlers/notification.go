package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/automarked/automarked-sub000/internal/models"
	"github.com/automarked/automarked-sub000/internal/repositories"
)

// Broadcaster is the slice of the hub the notification endpoints need.
type Broadcaster interface {
	BroadcastAllRead(userID string)
}

// NotificationHandler serves the notification and notification-group
// REST endpoints.
type NotificationHandler struct {
	notifications repositories.NotificationStore
	groups        repositories.GroupStore
	hub           Broadcaster
	logger        zerolog.Logger
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(notifications repositories.NotificationStore, groups repositories.GroupStore, hub Broadcaster, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		groups:        groups,
		hub:           hub,
		logger:        logger.With().Str("component", "notification_handler").Logger(),
	}
}

// List returns the user's full notification list, chronological.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.Param("userId")

	list, err := h.notifications.ForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("load notifications failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	if list == nil {
		list = []models.Notification{}
	}

	c.JSON(http.StatusOK, list)
}

// ListUnread returns the unread subset.
func (h *NotificationHandler) ListUnread(c *gin.Context) {
	userID := c.Param("userId")

	list, err := h.notifications.UnreadForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("load unread notifications failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	if list == nil {
		list = []models.Notification{}
	}

	c.JSON(http.StatusOK, list)
}

// MarkAllRead marks every notification read and tells the user's other
// sessions over the socket.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.Param("userId")

	if err := h.notifications.MarkAllRead(c.Request.Context(), userID); err != nil {
		h.logger.Error().Err(err).Msg("mark all read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notifications read"})
		return
	}

	if h.hub != nil {
		h.hub.BroadcastAllRead(userID)
	}
	c.Status(http.StatusOK)
}

// Delete removes one notification by id. Deleting an unknown id is fine.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID := c.Param("userId")
	notificationID := c.Param("notificationId")

	if err := h.notifications.Delete(c.Request.Context(), userID, notificationID); err != nil {
		h.logger.Error().Err(err).Msg("delete notification failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete notification"})
		return
	}

	c.Status(http.StatusOK)
}

type groupRequest struct {
	CompanyID string `json:"companyId" binding:"required"`
	UserID    string `json:"userId"`
}

// GroupMembers returns the company group's subscriber list.
func (h *NotificationHandler) GroupMembers(c *gin.Context) {
	companyID := c.Param("companyId")

	list, err := h.groups.Members(c.Request.Context(), companyID)
	if err != nil {
		h.logger.Error().Err(err).Msg("load group failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": memberList(list)})
}

// GroupAdd subscribes a user to the company group.
func (h *NotificationHandler) GroupAdd(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	list, err := h.groups.Add(c.Request.Context(), req.CompanyID, req.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("group add failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": memberList(list)})
}

// GroupRemove unsubscribes a user from the company group.
func (h *NotificationHandler) GroupRemove(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	list, err := h.groups.Remove(c.Request.Context(), req.CompanyID, req.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("group remove failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": memberList(list)})
}

// GroupClear drops every subscriber of the company group.
func (h *NotificationHandler) GroupClear(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	list, err := h.groups.Clear(c.Request.Context(), req.CompanyID)
	if err != nil {
		h.logger.Error().Err(err).Msg("group clear failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": memberList(list)})
}

func memberList(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
