package models

import (
	"strings"
	"time"
)

type TableStatus string

const (
	TableAvailable   TableStatus = "Available"
	TableOccupied    TableStatus = "Occupied"
	TableMaintenance TableStatus = "Maintenance"
)

func ParseTableStatus(s string) (TableStatus, bool) {
	for _, status := range []TableStatus{TableAvailable, TableOccupied, TableMaintenance} {
		if strings.EqualFold(string(status), strings.TrimSpace(s)) {
			return status, true
		}
	}
	return "", false
}

// Table codes are unique per restaurant.
type Table struct {
	ID           string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RestaurantID string      `gorm:"type:varchar(64);not null;uniqueIndex:idx_table_restaurant_code" json:"restaurantId"`
	Code         string      `gorm:"type:varchar(50);not null;uniqueIndex:idx_table_restaurant_code" json:"code"`
	Location     string      `gorm:"type:varchar(120);not null" json:"location"`
	MaxPartySize int         `gorm:"not null" json:"maxPartySize"`
	Status       TableStatus `gorm:"type:varchar(20);not null;default:'Available';index" json:"status"`
	Description  string      `gorm:"type:text" json:"description,omitempty"`
	CreatedAt    time.Time   `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time   `gorm:"not null" json:"updatedAt"`
}
