package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-app/internal/logger"
	"chat-app/internal/models"
	"chat-app/internal/repositories"
	"chat-app/internal/uploads"
	"chat-app/internal/ws"
)

const defaultMessagePageSize = 50

// ChatHandler manages conversation and message endpoints.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	store       *uploads.DiskStore
	hub         *ws.Hub
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, store *uploads.DiskStore, hub *ws.Hub) *ChatHandler {
	return &ChatHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		store:       store,
		hub:         hub,
	}
}

// ListConversations returns the caller's conversations, most recent
// activity first.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	chats, err := h.chatRepo.ListForUser(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		logger.Error().Err(err).Msg("list conversations failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// StartConversation returns the existing personal conversation with the
// other user or creates it.
func (h *ChatHandler) StartConversation(c *gin.Context) {
	var req struct {
		OtherUserID int `json:"other_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "other_user_id is required"})
		return
	}

	userID := c.GetInt("userID")
	if _, err := h.userRepo.GetByID(c.Request.Context(), req.OtherUserID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up user"})
		return
	}

	chat, isNew, err := h.chatRepo.GetOrCreatePersonal(c.Request.Context(), userID, req.OtherUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrSelfChat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
			return
		}
		logger.Error().Err(err).Msg("get or create conversation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID, "is_new": isNew})
}

// GetMessages returns one page of a conversation's messages in
// chronological order.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chatId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	limit := intQuery(c, "limit", defaultMessagePageSize)
	offset := intQuery(c, "offset", 0)
	if limit <= 0 {
		limit = defaultMessagePageSize
	}
	if offset < 0 {
		offset = 0
	}

	userID := c.GetInt("userID")
	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	msgs, err := h.messageRepo.ListPage(c.Request.Context(), chatID, limit, offset)
	if err != nil {
		logger.Error().Err(err).Msg("list messages failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage persists a message (optionally with an uploaded attachment)
// and fans it out to the other connected participants. The durable write
// always completes before the broadcast.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	chatID, err := strconv.Atoi(c.PostForm("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	content := c.PostForm("content")
	messageType := c.PostForm("message_type")
	if messageType == "" {
		messageType = models.MessageTypeText
	}
	switch messageType {
	case models.MessageTypeText, models.MessageTypeImage, models.MessageTypeFile:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message type"})
		return
	}

	senderID := c.GetInt("userID")
	member, err := h.chatRepo.IsParticipant(c.Request.Context(), chatID, senderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	var attachment *models.Attachment
	if file, err := c.FormFile("file"); err == nil {
		saved, err := h.store.Save(file)
		if err != nil {
			if errors.Is(err, uploads.ErrFileTooLarge) || errors.Is(err, uploads.ErrFileTypeBlocked) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			logger.Error().Err(err).Msg("store attachment failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store attachment"})
			return
		}
		attachment = &saved
	}

	if content == "" && attachment == nil && messageType == models.MessageTypeText {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message content is required"})
		return
	}

	msg, err := h.messageRepo.Create(c.Request.Context(), chatID, senderID, content, messageType, attachment)
	if err != nil {
		logger.Error().Err(err).Msg("store message failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	h.hub.BroadcastNewMessage(chatID, senderID, msg)
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// SearchUsers finds other users to start a conversation with.
func (h *ChatHandler) SearchUsers(c *gin.Context) {
	users, err := h.userRepo.Search(c.Request.Context(), c.GetInt("userID"), c.Query("search"))
	if err != nil {
		logger.Error().Err(err).Msg("search users failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
