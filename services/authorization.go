package services

import (
	"fmt"

	"github.com/yeremiapane/restaurant-reservation/models"
)

// Caller is the identity behind a request. Anonymous callers have an empty
// UserID and Role.
type Caller struct {
	UserID        string
	Role          string
	Authorization string
}

func (c Caller) IsAdmin() bool { return c.Role == models.RoleAdmin }

func (c Caller) IsStaff() bool { return c.Role == models.RoleStaff || c.Role == models.RoleAdmin }

func (c Caller) IsAnonymous() bool { return c.UserID == "" }

func CanView(c Caller, r *models.Reservation) error {
	if c.IsStaff() || r.OwnedBy(c.UserID) {
		return nil
	}
	return ErrForbidden
}

// CanUpdate lets staff and admins edit anything and plain users edit their own
// reservation while it is still Pending.
func CanUpdate(c Caller, r *models.Reservation) error {
	if c.IsStaff() {
		return nil
	}
	if !r.OwnedBy(c.UserID) || r.Status != models.StatusPending {
		return ErrForbidden
	}
	return nil
}

// CanTransition checks both who may move r to the target status and whether
// the move is legal. Plain users may only cancel their own Pending
// reservation.
func CanTransition(c Caller, r *models.Reservation, to models.ReservationStatus) error {
	if !c.IsStaff() {
		if !r.OwnedBy(c.UserID) || to != models.StatusCancelled || r.Status != models.StatusPending {
			return ErrForbidden
		}
		return nil
	}
	if !r.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	return nil
}

func CanDelete(c Caller) error {
	if !c.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
