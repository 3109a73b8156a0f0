package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-app/internal/auth"
	"chat-app/internal/mocks"
)

func setupGuardedRouter(tokens *auth.TokenManager, sessions *mocks.SessionRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", Auth(tokens, sessions), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt("userID")})
	})
	return r
}

func TestAuthMissingHeader(t *testing.T) {
	router := setupGuardedRouter(auth.NewTokenManager("s"), new(mocks.SessionRepositoryMock))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthInvalidToken(t *testing.T) {
	router := setupGuardedRouter(auth.NewTokenManager("s"), new(mocks.SessionRepositoryMock))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	tokens := auth.NewTokenManager("s")
	sessions := new(mocks.SessionRepositoryMock)
	router := setupGuardedRouter(tokens, sessions)

	token, err := tokens.Issue(1)
	require.NoError(t, err)

	// Signature is valid but the server-side session is gone: still rejected.
	sessions.On("ExistsLive", mock.Anything, token).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	sessions.AssertExpectations(t)
}

func TestAuthAcceptsLiveSession(t *testing.T) {
	tokens := auth.NewTokenManager("s")
	sessions := new(mocks.SessionRepositoryMock)
	router := setupGuardedRouter(tokens, sessions)

	token, err := tokens.Issue(7)
	require.NoError(t, err)
	sessions.On("ExistsLive", mock.Anything, token).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":7`)
	sessions.AssertExpectations(t)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc")
	require.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = BearerToken("")
	assert.False(t, ok)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)

	token, ok = BearerToken("bearer xyz")
	require.True(t, ok)
	assert.Equal(t, "xyz", token)
}
