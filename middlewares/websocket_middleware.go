package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-reservation/utils"
)

// WebSocketAuthMiddleware reads the token from the "token" query parameter,
// since browsers cannot set headers on websocket upgrades.
func WebSocketAuthMiddleware(tm *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		claims, err := tm.ParseToken(token)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set(ContextRole, claims.Role)
		c.Set(ContextUserID, claims.UserID)
		c.Next()
	}
}
