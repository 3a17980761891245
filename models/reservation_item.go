package models

type ReservationItem struct {
	ID            uint    `gorm:"primaryKey" json:"-" bson:"-"`
	ReservationID string  `gorm:"type:varchar(36);not null;index" json:"-" bson:"-"`
	MenuItemID    string  `gorm:"type:varchar(64);not null" json:"menuItem" bson:"menuItem"`
	Quantity      int     `gorm:"not null" json:"quantity" bson:"quantity"`
	Price         float64 `gorm:"type:decimal(12,2);not null" json:"price" bson:"price"`
	Note          string  `gorm:"type:text" json:"note,omitempty" bson:"note,omitempty"`
}
