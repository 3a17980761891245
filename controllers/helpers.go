package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-reservation/middlewares"
	"github.com/yeremiapane/restaurant-reservation/services"
	"github.com/yeremiapane/restaurant-reservation/utils"
)

// callerFrom builds the service caller from what the auth middleware stored.
func callerFrom(c *gin.Context) services.Caller {
	return services.Caller{
		UserID:        c.GetString(middlewares.ContextUserID),
		Role:          c.GetString(middlewares.ContextRole),
		Authorization: c.GetString(middlewares.ContextAuthorization),
	}
}

// respondServiceError maps service errors onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.RespondValidation(c, "Validation failed", verr.Errors)
	case errors.Is(err, services.ErrReservationNotFound):
		utils.RespondError(c, http.StatusNotFound, services.ErrReservationNotFound)
	case errors.Is(err, services.ErrForbidden):
		utils.RespondError(c, http.StatusForbidden, err)
	case errors.Is(err, services.ErrInvalidTransition):
		utils.RespondError(c, http.StatusConflict, err)
	case errors.Is(err, services.ErrTableServiceUnavailable):
		utils.RespondError(c, http.StatusServiceUnavailable, services.ErrTableServiceUnavailable)
	default:
		utils.RespondError(c, http.StatusInternalServerError, err)
	}
}

func bindError(c *gin.Context, err error) {
	utils.RespondValidation(c, "Invalid request body", []services.FieldError{{Field: "body", Message: err.Error()}})
}
