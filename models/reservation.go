package models

import (
	"strings"
	"time"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "Pending"
	StatusConfirmed ReservationStatus = "Confirmed"
	StatusCancelled ReservationStatus = "Cancelled"
	StatusCompleted ReservationStatus = "Completed"
)

var ReservationStatuses = []ReservationStatus{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted}

// transitions lists the legal target states for each non-terminal state.
var transitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// ParseReservationStatus matches s against the known statuses, ignoring case.
func ParseReservationStatus(s string) (ReservationStatus, bool) {
	s = strings.TrimSpace(s)
	for _, status := range ReservationStatuses {
		if strings.EqualFold(string(status), s) {
			return status, true
		}
	}
	return "", false
}

func (s ReservationStatus) CanTransitionTo(to ReservationStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s ReservationStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type Reservation struct {
	ID           string            `gorm:"primaryKey;type:varchar(36)" json:"id" bson:"_id"`
	OwnerID      *string           `gorm:"type:varchar(64);index" json:"ownerId,omitempty" bson:"ownerId,omitempty"`
	Name         string            `gorm:"type:varchar(120);not null" json:"name" bson:"name"`
	Phone        string            `gorm:"type:varchar(30);not null" json:"phone" bson:"phone"`
	Email        string            `gorm:"type:varchar(120)" json:"email,omitempty" bson:"email,omitempty"`
	RestaurantID string            `gorm:"type:varchar(64);not null;index" json:"restaurantId" bson:"restaurantId"`
	TableID      *string           `gorm:"type:varchar(64);index" json:"tableId,omitempty" bson:"tableId,omitempty"`
	Date         time.Time         `gorm:"not null;index" json:"date" bson:"date"`
	Time         string            `gorm:"type:varchar(10);not null" json:"time" bson:"time"`
	PartySize    int               `gorm:"not null" json:"partySize" bson:"partySize"`
	Note         string            `gorm:"type:text" json:"note,omitempty" bson:"note,omitempty"`
	Status       ReservationStatus `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status" bson:"status"`
	Items        []ReservationItem `gorm:"foreignKey:ReservationID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"items" bson:"items"`
	TotalPrice   float64           `gorm:"type:decimal(12,2);not null;default:0" json:"totalPrice" bson:"totalPrice"`
	CreatedAt    time.Time         `gorm:"not null" json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updatedAt" bson:"updatedAt"`
}

// RecalculateTotal sets TotalPrice to the sum of price × quantity over Items.
func (r *Reservation) RecalculateTotal() {
	var total float64
	for _, item := range r.Items {
		total += item.Price * float64(item.Quantity)
	}
	r.TotalPrice = total
}

func (r *Reservation) OwnedBy(userID string) bool {
	return userID != "" && r.OwnerID != nil && *r.OwnerID == userID
}

func (r *Reservation) HasTable() bool {
	return r.TableID != nil && *r.TableID != ""
}
