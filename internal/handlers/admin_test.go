package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-app/internal/middleware"
	"chat-app/internal/mocks"
	"chat-app/internal/models"
	"chat-app/internal/repositories"
)

func setupAdminRouter(users *mocks.UserRepositoryMock, handler *AdminHandler) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 9)
		c.Next()
	})
	admin := r.Group("/api/admin", middleware.RequireAdmin(users))
	admin.GET("/users", handler.ListUsers)
	admin.GET("/users/:id", handler.GetUser)
	admin.POST("/users/:id/reset-password", handler.ResetPassword)
	admin.DELETE("/users/:id", handler.DeleteUser)
	return r
}

func TestAdminRoutesForbiddenForNonAdmin(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupAdminRouter(users, NewAdminHandler(users, nil))

	users.On("IsAdmin", mock.Anything, 9).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	users.AssertNotCalled(t, "ListWithStats", mock.Anything)
}

func TestAdminListUsers(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupAdminRouter(users, NewAdminHandler(users, nil))

	users.On("IsAdmin", mock.Anything, 9).Return(true, nil).Once()
	users.On("ListWithStats", mock.Anything).
		Return([]models.UserStats{{ID: 1, Username: "alice", ChatCount: 2, MessageCount: 5}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

func TestAdminResetPasswordTooShort(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupAdminRouter(users, NewAdminHandler(users, nil))

	users.On("IsAdmin", mock.Anything, 9).Return(true, nil).Once()
	users.On("ResetPassword", mock.Anything, 3, "abc").
		Return(repositories.ErrPasswordTooShort).Once()

	body := bytes.NewBufferString(`{"new_password":"abc"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/users/3/reset-password", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	users.AssertExpectations(t)
}

func TestAdminDeleteUserNotFound(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupAdminRouter(users, NewAdminHandler(users, nil))

	users.On("IsAdmin", mock.Anything, 9).Return(true, nil).Once()
	users.On("Delete", mock.Anything, 42).Return(repositories.ErrUserNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/users/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	users.AssertExpectations(t)
}
