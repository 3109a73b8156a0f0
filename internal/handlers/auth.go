package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-app/internal/auth"
	"chat-app/internal/logger"
	"chat-app/internal/middleware"
	"chat-app/internal/repositories"
	"chat-app/internal/telemetry"
)

// AuthHandler manages registration, login and session lifecycle.
type AuthHandler struct {
	users    repositories.UserRepository
	sessions repositories.SessionRepository
	tokens   *auth.TokenManager
	audit    *telemetry.AuditEmitter
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(users repositories.UserRepository, sessions repositories.SessionRepository, tokens *auth.TokenManager, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, tokens: tokens, audit: audit}
}

// Register creates an account and logs the new user straight in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	userID, err := h.users.Create(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrMissingFields),
			errors.Is(err, repositories.ErrPasswordTooShort),
			errors.Is(err, repositories.ErrUsernameTaken),
			errors.Is(err, repositories.ErrEmailTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			logger.Error().Err(err).Msg("create account failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
		}
		return
	}

	token, err := h.tokens.Issue(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	if err := h.sessions.Create(c.Request.Context(), userID, token); err != nil {
		logger.Error().Err(err).Msg("store session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store session"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "user registered", requestIDFromContext(c), &userID)
	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  gin.H{"id": userID, "username": req.Username, "email": req.Email},
	})
}

// Login verifies credentials and rotates the user's session: all prior
// sessions are invalidated before the new one is stored.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.users.VerifyCredentials(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, repositories.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}
		logger.Error().Err(err).Msg("verify credentials failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	if err := h.sessions.DeleteByUser(c.Request.Context(), user.ID); err != nil {
		logger.Error().Err(err).Msg("clear prior sessions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if err := h.sessions.Create(c.Request.Context(), user.ID, token); err != nil {
		logger.Error().Err(err).Msg("store session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store session"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "user logged in", requestIDFromContext(c), &user.ID)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  gin.H{"id": user.ID, "username": user.Username, "email": user.Email, "avatar": user.Avatar},
	})
}

// Logout deletes the presented token's session. Absent tokens still get a
// success response; there is nothing to invalidate.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if ok {
		if err := h.sessions.DeleteByToken(c.Request.Context(), token); err != nil {
			logger.Error().Err(err).Msg("delete session failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
			return
		}
	}
	h.audit.Emit(c.Request.Context(), "INFO", "user logged out", requestIDFromContext(c), userIDFromContext(c))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
