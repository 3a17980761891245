package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-reservation/controllers"
	"github.com/yeremiapane/restaurant-reservation/hub"
	"github.com/yeremiapane/restaurant-reservation/middlewares"
	"github.com/yeremiapane/restaurant-reservation/models"
	"github.com/yeremiapane/restaurant-reservation/services"
	"github.com/yeremiapane/restaurant-reservation/utils"
	"gorm.io/gorm"
)

type Dependencies struct {
	// DB backs the table endpoints; leave nil to not mount them.
	DB           *gorm.DB
	Reservations *services.ReservationService
	Tokens       *utils.TokenManager
	Hub          *hub.Hub
	RateLimiter  *middlewares.RateLimiter
	CORSOrigins  []string
}

func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(middlewares.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	if len(deps.CORSOrigins) > 0 {
		r.Use(middlewares.CORSMiddlewares(deps.CORSOrigins))
	}

	r.NoRoute(func(c *gin.Context) {
		utils.RespondError(c, http.StatusNotFound, fmt.Errorf("not found - %s", c.Request.URL.Path))
	})

	limited := func(c *gin.Context) { c.Next() }
	if deps.RateLimiter != nil {
		limited = deps.RateLimiter.RateLimit()
	}
	auth := middlewares.AuthMiddleware(deps.Tokens)
	staffOnly := middlewares.RequireRoles(models.RoleStaff, models.RoleAdmin)
	adminOnly := middlewares.RequireRoles(models.RoleAdmin)

	r.GET("/health", controllers.HealthHandler("Reservation Service"))

	// ----------------------------------------------------------------
	//                      RESERVATIONS
	// ----------------------------------------------------------------
	reservationCtrl := controllers.NewReservationController(deps.Reservations)
	reservations := r.Group("/reservations")
	{
		// public
		reservations.GET("/available-tables", limited, reservationCtrl.GetAvailableTables)
		reservations.POST("", limited, middlewares.OptionalAuth(deps.Tokens), reservationCtrl.CreateReservation)

		reservations.GET("", auth, reservationCtrl.GetAllReservations)
		reservations.GET("/:id", auth, reservationCtrl.GetReservationByID)
		reservations.PUT("/:id", auth, reservationCtrl.UpdateReservation)
		reservations.PATCH("/:id/status", auth, reservationCtrl.UpdateReservationStatus)
		reservations.DELETE("/:id", auth, adminOnly, reservationCtrl.DeleteReservation)
	}

	// ----------------------------------------------------------------
	//                      TABLES
	// ----------------------------------------------------------------
	if deps.DB != nil {
		tableCtrl := controllers.NewTableController(deps.DB, deps.Hub)
		tables := r.Group("/tables")
		{
			tables.GET("/check-availability", limited, tableCtrl.CheckAvailability)

			tables.GET("", auth, tableCtrl.GetAllTables)
			tables.GET("/:id", auth, tableCtrl.GetTableByID)
			tables.POST("", auth, staffOnly, tableCtrl.CreateTable)
			tables.PUT("/:id", auth, staffOnly, tableCtrl.UpdateTable)
			tables.DELETE("/:id", auth, adminOnly, tableCtrl.DeleteTable)
		}
	}

	// Live board for staff dashboards
	if deps.Hub != nil {
		ws := r.Group("/ws")
		ws.Use(middlewares.WebSocketAuthMiddleware(deps.Tokens))
		ws.GET("/board", controllers.BoardHandler(deps.Hub, deps.CORSOrigins))
	}

	return r
}
