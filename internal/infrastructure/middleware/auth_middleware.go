package middleware

import (
	"net/http"
	"strings"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/services"
	"callplayer/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
)

// AuthMiddleware accepts "Authorization: Bearer <jwt>" and stores the token's
// chat account in the gin and request contexts.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), int64(claims.UserID)))
		c.Next()
	}
}

// UserIDFrom returns the caller set by AuthMiddleware.
func UserIDFrom(c *gin.Context) (domain.UserID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(domain.UserID)
	return id, ok
}
