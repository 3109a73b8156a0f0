package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-app/internal/auth"
	"chat-app/internal/repositories"
)

// Auth validates the Authorization header. Two independent facts must hold:
// the token signature and claims verify, and an unexpired session row still
// backs the token. A valid signature with a revoked session is rejected.
func Auth(tokens *auth.TokenManager, sessions repositories.SessionRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		userID, err := tokens.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		live, err := sessions.ExistsLive(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to verify session"})
			return
		}
		if !live {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired or revoked"})
			return
		}

		c.Set("userID", userID)
		c.Set("sessionToken", token)
		c.Next()
	}
}

// RequireAdmin gates admin routes on the authenticated user's admin flag.
// Must run after Auth.
func RequireAdmin(users repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, err := users.IsAdmin(c.Request.Context(), c.GetInt("userID"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to verify admin access"})
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
