package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeremiapane/restaurant-reservation/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormReservationStore struct {
	DB *gorm.DB
}

func NewGormReservationStore(db *gorm.DB) *GormReservationStore {
	return &GormReservationStore{DB: db}
}

func (s *GormReservationStore) Create(ctx context.Context, r *models.Reservation) error {
	if err := s.DB.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (s *GormReservationStore) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	var r models.Reservation
	err := s.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find reservation %s: %w", id, err)
	}
	return &r, nil
}

func (s *GormReservationStore) Update(ctx context.Context, r *models.Reservation, replaceItems bool) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(r).Select("*").Omit(clause.Associations).Updates(r)
		if res.Error != nil {
			return fmt.Errorf("update reservation %s: %w", r.ID, res.Error)
		}
		// MySQL also reports 0 rows for an unchanged row.
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Reservation{}).Where("id = ?", r.ID).Count(&n).Error; err != nil {
				return fmt.Errorf("check reservation %s: %w", r.ID, err)
			}
			if n == 0 {
				return ErrNotFound
			}
		}
		if !replaceItems {
			return nil
		}

		if err := tx.Where("reservation_id = ?", r.ID).Delete(&models.ReservationItem{}).Error; err != nil {
			return fmt.Errorf("clear items of %s: %w", r.ID, err)
		}
		if len(r.Items) == 0 {
			return nil
		}
		for i := range r.Items {
			r.Items[i].ID = 0
			r.Items[i].ReservationID = r.ID
		}
		if err := tx.Create(&r.Items).Error; err != nil {
			return fmt.Errorf("insert items of %s: %w", r.ID, err)
		}
		return nil
	})
}

func (s *GormReservationStore) Delete(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("reservation_id = ?", id).Delete(&models.ReservationItem{}).Error; err != nil {
			return fmt.Errorf("delete items of %s: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Reservation{})
		if res.Error != nil {
			return fmt.Errorf("delete reservation %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *GormReservationStore) List(ctx context.Context, f Filter, offset, limit int) ([]models.Reservation, int64, error) {
	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Reservation{}).Scopes(applyFilter(f)).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}

	reservations := make([]models.Reservation, 0, limit)
	err := s.DB.WithContext(ctx).
		Scopes(applyFilter(f)).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("date DESC").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&reservations).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, total, nil
}

func applyFilter(f Filter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.OwnerID != "" {
			db = db.Where("owner_id = ?", f.OwnerID)
		}
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		if f.RestaurantID != "" {
			db = db.Where("restaurant_id = ?", f.RestaurantID)
		}
		if !f.DateFrom.IsZero() {
			db = db.Where("date >= ?", f.DateFrom)
		}
		if !f.DateTo.IsZero() {
			db = db.Where("date < ?", f.DateTo)
		}
		return db
	}
}
