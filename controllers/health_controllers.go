package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func HealthHandler(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"service": service,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}
