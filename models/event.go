package models

import "time"

const (
	EventReservationCreated       = "reservation_created"
	EventReservationUpdated       = "reservation_updated"
	EventReservationStatusChanged = "reservation_status_changed"
	EventReservationDeleted       = "reservation_deleted"
)

// ReservationEvent describes a committed change to a reservation.
type ReservationEvent struct {
	Type          string            `json:"type"`
	ReservationID string            `json:"reservationId"`
	RestaurantID  string            `json:"restaurantId"`
	TableID       string            `json:"tableId,omitempty"`
	From          ReservationStatus `json:"from,omitempty"`
	Status        ReservationStatus `json:"status"`
	ActorID       string            `json:"actorId,omitempty"`
	OccurredAt    time.Time         `json:"occurredAt"`
}
