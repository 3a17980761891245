package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-reservation/utils"
)

const (
	ContextUserID        = "userID"
	ContextRole          = "role"
	ContextAuthorization = "authorization"
)

var errMissingToken = errors.New("authorization header missing")

// AuthMiddleware requires a valid Bearer token.
func AuthMiddleware(tm *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, http.StatusUnauthorized, errMissingToken)
			c.Abort()
			return
		}
		if !authenticate(c, tm, authHeader) {
			return
		}
		c.Next()
	}
}

// OptionalAuth identifies the caller when a token is sent and lets anonymous
// requests through. A token that is present but invalid is still rejected.
func OptionalAuth(tm *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" && !authenticate(c, tm, authHeader) {
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, tm *utils.TokenManager, authHeader string) bool {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid token format"))
		c.Abort()
		return false
	}

	claims, err := tm.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		c.Abort()
		return false
	}

	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextRole, claims.Role)
	c.Set(ContextAuthorization, authHeader)
	return true
}
