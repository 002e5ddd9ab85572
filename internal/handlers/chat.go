package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-hub/internal/middleware"
	"chat-hub/internal/models"
	"chat-hub/internal/services"
)

// ChatReader is the read side of the chat service used for REST resync.
type ChatReader interface {
	IsChatMember(ctx context.Context, userID, roomID string) (bool, error)
	GetMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)
	GetChatList(ctx context.Context, userID string) ([]models.ChatSummary, error)
}

// ChatHandler serves the HTTP views clients use to resync after reconnecting.
type ChatHandler struct {
	chats ChatReader
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats ChatReader) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// ListChats returns the rooms the authenticated user still belongs to.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	list, err := h.chats.GetChatList(c.Request.Context(), userID)
	if err != nil {
		log.Printf("list chats failed: request_id=%s user_id=%s err=%v", requestIDFromContext(c), userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": services.AvailableOnly(list)})
}

// GetChatMessages returns the newest messages of a room, oldest first.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	userID := c.GetString(middleware.UserIDKey)
	member, err := h.chats.IsChatMember(c.Request.Context(), userID, roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	msgs, err := h.chats.GetMessages(c.Request.Context(), roomID, limit)
	if err != nil {
		log.Printf("load messages failed: request_id=%s room_id=%s err=%v", requestIDFromContext(c), roomID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
