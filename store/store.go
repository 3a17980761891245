// Package store persists reservations. Two backends are provided: a gorm
// store for MySQL/SQLite and a MongoDB store that keeps line items embedded
// in the reservation document.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/yeremiapane/restaurant-reservation/models"
)

var ErrNotFound = errors.New("reservation not found")

// Filter narrows a listing. Zero values are ignored.
type Filter struct {
	OwnerID      string
	Status       models.ReservationStatus
	RestaurantID string
	// DateFrom/DateTo bound the reservation date as [DateFrom, DateTo).
	DateFrom time.Time
	DateTo   time.Time
}

type ReservationStore interface {
	Create(ctx context.Context, r *models.Reservation) error
	FindByID(ctx context.Context, id string) (*models.Reservation, error)
	// Update saves r. When replaceItems is set the stored line items are
	// replaced by r.Items, otherwise they are left untouched.
	Update(ctx context.Context, r *models.Reservation, replaceItems bool) error
	Delete(ctx context.Context, id string) error
	// List returns one page sorted by date desc then creation time desc,
	// together with the total number of matches.
	List(ctx context.Context, f Filter, offset, limit int) ([]models.Reservation, int64, error)
}
