package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yeremiapane/restaurant-reservation/hub"
	"github.com/yeremiapane/restaurant-reservation/models"
	"github.com/yeremiapane/restaurant-reservation/services"
	"github.com/yeremiapane/restaurant-reservation/utils"
	"gorm.io/gorm"
)

var (
	errTableNotFound  = errors.New("table not found")
	errDuplicateTable = errors.New("a table with this code already exists in the restaurant")
)

// TableController serves the table availability endpoints that reservations
// call into.
type TableController struct {
	DB  *gorm.DB
	Hub *hub.Hub
}

func NewTableController(db *gorm.DB, h *hub.Hub) *TableController {
	return &TableController{DB: db, Hub: h}
}

// CreateTable -> add a table to a restaurant
func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		RestaurantID string `json:"restaurantId" binding:"required"`
		Code         string `json:"code" binding:"required"`
		Location     string `json:"location" binding:"required"`
		MaxPartySize int    `json:"maxPartySize" binding:"required,min=1"`
		Status       string `json:"status"` // optional, default Available
		Description  string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	table := models.Table{
		ID:           uuid.NewString(),
		RestaurantID: strings.TrimSpace(req.RestaurantID),
		Code:         strings.TrimSpace(req.Code),
		Location:     strings.TrimSpace(req.Location),
		MaxPartySize: req.MaxPartySize,
		Status:       models.TableAvailable,
		Description:  strings.TrimSpace(req.Description),
	}
	if req.Status != "" {
		status, ok := models.ParseTableStatus(req.Status)
		if !ok {
			invalidTableStatus(c)
			return
		}
		table.Status = status
	}

	var existing int64
	if err := tc.DB.Model(&models.Table{}).
		Where("restaurant_id = ? AND code = ?", table.RestaurantID, table.Code).
		Count(&existing).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if existing > 0 {
		utils.RespondError(c, http.StatusConflict, errDuplicateTable)
		return
	}

	if err := tc.DB.Create(&table).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.RespondError(c, http.StatusConflict, errDuplicateTable)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	tc.broadcast(hub.EventTableCreate, table)
	utils.InfoLogger.Printf("New table created: %s/%s (status=%s)", table.RestaurantID, table.Code, table.Status)
	utils.RespondJSON(c, http.StatusCreated, "Table created", table)
}

// GetAllTables -> optional restaurantId and status filters
func (tc *TableController) GetAllTables(c *gin.Context) {
	q := tc.DB.Model(&models.Table{})
	if restaurantID := c.Query("restaurantId"); restaurantID != "" {
		q = q.Where("restaurant_id = ?", restaurantID)
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseTableStatus(raw)
		if !ok {
			invalidTableStatus(c)
			return
		}
		q = q.Where("status = ?", status)
	}

	tables := []models.Table{}
	if err := q.Order("restaurant_id ASC").Order("code ASC").Find(&tables).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

func (tc *TableController) GetTableByID(c *gin.Context) {
	table, ok := tc.findTable(c)
	if !ok {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

// UpdateTable -> partial update, used by reservations to flip occupancy
func (tc *TableController) UpdateTable(c *gin.Context) {
	var body struct {
		Code         *string `json:"code"`
		Location     *string `json:"location"`
		MaxPartySize *int    `json:"maxPartySize"`
		Status       *string `json:"status"`
		Description  *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		bindError(c, err)
		return
	}

	table, ok := tc.findTable(c)
	if !ok {
		return
	}

	verr := &services.ValidationError{}
	if body.Code != nil {
		if code := strings.TrimSpace(*body.Code); code == "" {
			verr.Add("code", "code is required")
		} else {
			table.Code = code
		}
	}
	if body.Location != nil {
		if location := strings.TrimSpace(*body.Location); location == "" {
			verr.Add("location", "location is required")
		} else {
			table.Location = location
		}
	}
	if body.MaxPartySize != nil {
		if *body.MaxPartySize < 1 {
			verr.Add("maxPartySize", "max party size must be at least 1")
		} else {
			table.MaxPartySize = *body.MaxPartySize
		}
	}
	if body.Status != nil {
		status, ok := models.ParseTableStatus(*body.Status)
		if !ok {
			verr.Add("status", "status must be one of Available, Occupied, Maintenance")
		} else {
			table.Status = status
		}
	}
	if body.Description != nil {
		table.Description = strings.TrimSpace(*body.Description)
	}
	if verr.Err() != nil {
		utils.RespondValidation(c, "Validation failed", verr.Errors)
		return
	}

	if err := tc.DB.Save(&table).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.RespondError(c, http.StatusConflict, errDuplicateTable)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	tc.broadcast(hub.EventTableUpdate, table)
	utils.InfoLogger.Printf("Table %s updated (status=%s)", table.ID, table.Status)
	utils.RespondJSON(c, http.StatusOK, "Table updated", table)
}

func (tc *TableController) DeleteTable(c *gin.Context) {
	table, ok := tc.findTable(c)
	if !ok {
		return
	}

	if err := tc.DB.Delete(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	tc.broadcast(hub.EventTableDelete, table)
	utils.InfoLogger.Printf("Table %s deleted", table.ID)
	utils.RespondJSON(c, http.StatusOK, "Table deleted", gin.H{"id": table.ID})
}

// CheckAvailability -> Available tables of a restaurant that seat the party,
// smallest first
func (tc *TableController) CheckAvailability(c *gin.Context) {
	verr := &services.ValidationError{}
	restaurantID := c.Query("restaurantId")
	for field, value := range map[string]string{"restaurantId": restaurantID, "date": c.Query("date"), "time": c.Query("time")} {
		if strings.TrimSpace(value) == "" {
			verr.Add(field, fmt.Sprintf("%s is required", field))
		}
	}
	partySize, err := strconv.Atoi(c.Query("partySize"))
	if err != nil || partySize < 1 {
		verr.Add("partySize", "party size must be at least 1")
	}
	if verr.Err() != nil {
		utils.RespondValidation(c, "Validation failed", verr.Errors)
		return
	}

	tables := []models.Table{}
	err = tc.DB.Where("restaurant_id = ? AND status = ? AND max_party_size >= ?", restaurantID, models.TableAvailable, partySize).
		Order("max_party_size ASC").
		Find(&tables).Error
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Available tables", gin.H{
		"tables": tables,
		"count":  len(tables),
	})
}

func (tc *TableController) findTable(c *gin.Context) (models.Table, bool) {
	var table models.Table
	err := tc.DB.First(&table, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondError(c, http.StatusNotFound, errTableNotFound)
		return table, false
	}
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return table, false
	}
	return table, true
}

func (tc *TableController) broadcast(event string, table models.Table) {
	if tc.Hub == nil {
		return
	}
	tc.Hub.BroadcastTable(event, table, tc.occupancyStats(table.RestaurantID))
}

// occupancyStats counts the restaurant's tables per status.
func (tc *TableController) occupancyStats(restaurantID string) map[string]int64 {
	var rows []struct {
		Status string
		Count  int64
	}
	stats := map[string]int64{"total": 0}
	err := tc.DB.Model(&models.Table{}).
		Select("status, COUNT(*) AS count").
		Where("restaurant_id = ?", restaurantID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("restaurant_id", restaurantID).Warn("occupancy stats query failed")
		return stats
	}
	for _, row := range rows {
		stats[strings.ToLower(row.Status)] = row.Count
		stats["total"] += row.Count
	}
	return stats
}

func invalidTableStatus(c *gin.Context) {
	utils.RespondValidation(c, "Validation failed", []services.FieldError{{
		Field:   "status",
		Message: "status must be one of Available, Occupied, Maintenance",
	}})
}
