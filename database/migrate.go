package database

import (
	"fmt"

	"github.com/yeremiapane/restaurant-reservation/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the SQL schema. withReservations is false when
// reservations live in MongoDB, withTables when an external service owns the
// tables.
func Migrate(db *gorm.DB, withReservations, withTables bool) error {
	var entities []interface{}
	if withReservations {
		entities = append(entities, &models.Reservation{}, &models.ReservationItem{})
	}
	if withTables {
		entities = append(entities, &models.Table{})
	}
	if len(entities) == 0 {
		return nil
	}
	if err := db.AutoMigrate(entities...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
