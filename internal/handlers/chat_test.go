package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-app/internal/mocks"
	"chat-app/internal/models"
	"chat-app/internal/repositories"
	"chat-app/internal/ws"
)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/api/chat/conversations", handler.ListConversations)
	r.POST("/api/chat/conversation", handler.StartConversation)
	r.GET("/api/chat/messages/:chatId", handler.GetMessages)
	r.POST("/api/chat/messages", handler.PostMessage)
	r.GET("/api/chat/users", handler.SearchUsers)
	return r
}

func postForm(router *gin.Engine, path, form string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListConversationsSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, nil, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("ListForUser", mock.Anything, 1).
		Return([]models.ChatSummary{{ID: 3, DisplayName: "bob", Type: models.ChatTypePersonal}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/chat/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestListConversationsRepoError(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, nil, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("ListForUser", mock.Anything, 1).
		Return(([]models.ChatSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/chat/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStartConversationCreatesOnce(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, userRepo, nil, nil)
	router := setupChatRouter(handler)

	userRepo.On("GetByID", mock.Anything, 2).Return(models.User{ID: 2, Username: "bob"}, nil).Twice()
	chatRepo.On("GetOrCreatePersonal", mock.Anything, 1, 2).
		Return(models.Chat{ID: 10}, true, nil).Once()
	chatRepo.On("GetOrCreatePersonal", mock.Anything, 1, 2).
		Return(models.Chat{ID: 10}, false, nil).Once()

	body := `{"other_user_id":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat/conversation", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var first map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&first))
	assert.EqualValues(t, 10, first["chat_id"])
	assert.Equal(t, true, first["is_new"])

	req = httptest.NewRequest(http.MethodPost, "/api/chat/conversation", bytes.NewBufferString(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var second map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&second))
	assert.EqualValues(t, 10, second["chat_id"])
	assert.Equal(t, false, second["is_new"])

	chatRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestStartConversationUnknownUser(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatHandler(new(mocks.ChatRepositoryMock), nil, userRepo, nil, nil)
	router := setupChatRouter(handler)

	userRepo.On("GetByID", mock.Anything, 99).
		Return(models.User{}, repositories.ErrUserNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/chat/conversation", bytes.NewBufferString(`{"other_user_id":99}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartConversationWithSelf(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, userRepo, nil, nil)
	router := setupChatRouter(handler)

	userRepo.On("GetByID", mock.Anything, 1).Return(models.User{ID: 1}, nil).Once()
	chatRepo.On("GetOrCreatePersonal", mock.Anything, 1, 1).
		Return(models.Chat{}, false, repositories.ErrSelfChat).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/chat/conversation", bytes.NewBufferString(`{"other_user_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesChronological(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil, nil)
	router := setupChatRouter(handler)

	hi := "hi"
	there := "there"
	chatRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("ListPage", mock.Anything, 5, 50, 0).Return([]models.MessageView{
		{Message: models.Message{ID: 1, ChatID: 5, SenderID: 1, Content: &hi}, SenderName: "alice"},
		{Message: models.Message{ID: 2, ChatID: 5, SenderID: 2, Content: &there}, SenderName: "bob"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/chat/messages/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.MessageView `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, 1, resp.Messages[0].ID)
	assert.Equal(t, 2, resp.Messages[1].ID)

	chatRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestGetMessagesForbiddenForNonParticipant(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("IsParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/chat/messages/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "ListPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetMessagesInvalidID(t *testing.T) {
	handler := NewChatHandler(new(mocks.ChatRepositoryMock), new(mocks.MessageRepositoryMock), nil, nil, nil)
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/messages/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessageSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub()
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil, hub)
	router := setupChatRouter(handler)

	hi := "hi"
	chatRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messageRepo.On("Create", mock.Anything, 5, 1, "hi", models.MessageTypeText, (*models.Attachment)(nil)).
		Return(models.MessageView{
			Message:    models.Message{ID: 7, ChatID: 5, SenderID: 1, Content: &hi, MessageType: models.MessageTypeText},
			SenderName: "alice",
		}, nil).Once()

	rec := postForm(router, "/api/chat/messages", "chat_id=5&content=hi")

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Message models.MessageView `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 7, resp.Message.ID)
	assert.Equal(t, "alice", resp.Message.SenderName)

	chatRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageForbiddenForNonParticipant(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil, ws.NewHub())
	router := setupChatRouter(handler)

	chatRepo.On("IsParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	rec := postForm(router, "/api/chat/messages", "chat_id=5&content=hi")

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "Create",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostMessageEmptyText(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil, ws.NewHub())
	router := setupChatRouter(handler)

	chatRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()

	rec := postForm(router, "/api/chat/messages", "chat_id=5")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messageRepo.AssertNotCalled(t, "Create",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchUsers(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewChatHandler(new(mocks.ChatRepositoryMock), nil, userRepo, nil, nil)
	router := setupChatRouter(handler)

	userRepo.On("Search", mock.Anything, 1, "bo").
		Return([]models.User{{ID: 2, Username: "bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/chat/users?search=bo", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	userRepo.AssertExpectations(t)
}
