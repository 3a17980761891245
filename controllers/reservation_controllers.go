package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-reservation/services"
	"github.com/yeremiapane/restaurant-reservation/utils"
)

type ReservationController struct {
	Service *services.ReservationService
}

func NewReservationController(svc *services.ReservationService) *ReservationController {
	return &ReservationController{Service: svc}
}

// CreateReservation -> public booking, owner taken from the token if any
func (rc *ReservationController) CreateReservation(c *gin.Context) {
	var req services.CreateReservationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	reservation, err := rc.Service.Create(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.Printf("Reservation %s created for restaurant %s", reservation.ID, reservation.RestaurantID)
	utils.RespondJSON(c, http.StatusCreated, "Reservation created", reservation)
}

func (rc *ReservationController) GetAllReservations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultPageSize)))

	result, err := rc.Service.List(c.Request.Context(), callerFrom(c), services.ListQuery{
		Page:         page,
		Limit:        limit,
		Status:       firstQuery(c, "status", "trangThai"),
		RestaurantID: firstQuery(c, "restaurantId", "nhaHang"),
		Date:         firstQuery(c, "date", "ngayDat"),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondPage(c, "List of reservations", result.Items, result.Page, result.TotalPages, result.TotalItems)
}

func (rc *ReservationController) GetReservationByID(c *gin.Context) {
	reservation, err := rc.Service.Get(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation detail", reservation)
}

func (rc *ReservationController) UpdateReservation(c *gin.Context) {
	var req services.UpdateReservationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	reservation, err := rc.Service.Update(c.Request.Context(), callerFrom(c), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation updated", reservation)
}

func (rc *ReservationController) UpdateReservationStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		bindError(c, err)
		return
	}

	reservation, err := rc.Service.ChangeStatus(c.Request.Context(), callerFrom(c), c.Param("id"), body.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.Printf("Reservation %s status changed to %s", reservation.ID, reservation.Status)
	utils.RespondJSON(c, http.StatusOK, "Reservation status updated to "+string(reservation.Status), reservation)
}

func (rc *ReservationController) DeleteReservation(c *gin.Context) {
	id := c.Param("id")
	if err := rc.Service.Delete(c.Request.Context(), callerFrom(c), id); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.Printf("Reservation %s deleted", id)
	utils.RespondJSON(c, http.StatusOK, "Reservation deleted", nil)
}

// GetAvailableTables -> passthrough to the table service, body returned as is
func (rc *ReservationController) GetAvailableTables(c *gin.Context) {
	partySize, _ := strconv.Atoi(c.Query("partySize"))
	body, err := rc.Service.AvailableTables(c.Request.Context(), services.AvailabilityQuery{
		RestaurantID: c.Query("restaurantId"),
		Date:         c.Query("date"),
		Time:         c.Query("time"),
		PartySize:    partySize,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, key := range keys {
		if v := c.Query(key); v != "" {
			return v
		}
	}
	return ""
}
