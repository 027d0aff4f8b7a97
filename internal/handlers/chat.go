package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/automarked/automarked-sub000/internal/repositories"
)

// ChatHandler serves the chat REST endpoints.
type ChatHandler struct {
	messages repositories.MessageStore
	logger   zerolog.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(messages repositories.MessageStore, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		messages: messages,
		logger:   logger.With().Str("component", "chat_handler").Logger(),
	}
}

// GetMessages returns the ordered history for a sender/receiver pair and
// reconciles the sender's unread count for that conversation.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	senderID := c.Query("senderId")
	receiverID := c.Query("receiverId")
	if senderID == "" || receiverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "senderId and receiverId are required"})
		return
	}

	msgs, err := h.messages.Conversation(c.Request.Context(), senderID, receiverID)
	if err != nil {
		h.logger.Error().Err(err).Msg("load conversation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetUserChats returns one conversation summary per counterpart.
func (h *ChatHandler) GetUserChats(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	chats, err := h.messages.UserChats(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("load chats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetUnreadCount returns the user's total unread messages.
func (h *ChatHandler) GetUnreadCount(c *gin.Context) {
	userID := c.Param("userId")

	count, err := h.messages.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("load unread count failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"totalUnreadMessages": count})
}
