package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-reservation/hub"
	"github.com/yeremiapane/restaurant-reservation/middlewares"
	"github.com/yeremiapane/restaurant-reservation/models"
)

// BoardHandler -> websocket endpoint streaming reservation and table events
// to staff and admins. Browsers must come from one of origins ("*" allows
// any); clients without an Origin header are accepted.
func BoardHandler(h *hub.Hub, origins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range origins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}

	return func(c *gin.Context) {
		role := c.GetString(middlewares.ContextRole)
		if role != models.RoleStaff && role != models.RoleAdmin {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		h.Register(ws, role)

		// The board is push-only; reading just detects the disconnect.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}
		h.Unregister(ws)
	}
}
