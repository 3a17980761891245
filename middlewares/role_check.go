package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-reservation/utils"
)

// RequireRoles lets the request through only when the authenticated role is
// one of roles. It must run after AuthMiddleware.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}

		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		utils.RespondError(c, http.StatusForbidden, fmt.Errorf("access denied: requires one of %v", roles))
		c.Abort()
	}
}
