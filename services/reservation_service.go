package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-reservation/models"
	"github.com/yeremiapane/restaurant-reservation/store"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ChangeNotifier receives committed reservation changes. Implementations must
// not block for long; their errors are their own concern.
type ChangeNotifier interface {
	Notify(ctx context.Context, ev models.ReservationEvent)
}

type ItemInput struct {
	MenuItemID string  `json:"menuItem"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	Note       string  `json:"note"`
}

type CreateReservationInput struct {
	Name         string      `json:"name"`
	Phone        string      `json:"phone"`
	Email        string      `json:"email"`
	RestaurantID string      `json:"restaurantId"`
	TableID      string      `json:"tableId"`
	Date         string      `json:"date"`
	Time         string      `json:"time"`
	PartySize    int         `json:"partySize"`
	Note         string      `json:"note"`
	Items        []ItemInput `json:"items"`
}

// UpdateReservationInput carries a partial update; nil fields are left as
// they are. A non-nil Items replaces the stored items, even when empty.
type UpdateReservationInput struct {
	Name      *string      `json:"name"`
	Phone     *string      `json:"phone"`
	Email     *string      `json:"email"`
	Date      *string      `json:"date"`
	Time      *string      `json:"time"`
	PartySize *int         `json:"partySize"`
	Note      *string      `json:"note"`
	TableID   *string      `json:"tableId"`
	Items     *[]ItemInput `json:"items"`
}

type ListQuery struct {
	Page         int
	Limit        int
	Status       string
	RestaurantID string
	Date         string
}

type ReservationPage struct {
	Items      []models.Reservation
	Page       int
	Limit      int
	TotalPages int
	TotalItems int64
}

// ReservationService owns the reservation lifecycle. Table occupancy updates
// and change notifications run after the reservation write and never change
// the outcome of the operation.
type ReservationService struct {
	Store     store.ReservationStore
	Tables    TableAvailabilityClient
	Notifiers []ChangeNotifier
	Log       logrus.FieldLogger

	// TableTimeout bounds each table status call.
	TableTimeout time.Duration
	// Location decides what "today" means for date validation.
	Location *time.Location
	Now      func() time.Time
}

func NewReservationService(st store.ReservationStore, tables TableAvailabilityClient, log logrus.FieldLogger) *ReservationService {
	return &ReservationService{
		Store:        st,
		Tables:       tables,
		Log:          log,
		TableTimeout: 3 * time.Second,
		Location:     time.Local,
		Now:          time.Now,
	}
}

func (s *ReservationService) Create(ctx context.Context, caller Caller, in CreateReservationInput) (*models.Reservation, error) {
	verr := &ValidationError{}
	name := requireText(verr, "name", in.Name)
	phone := requireText(verr, "phone", in.Phone)
	restaurantID := requireText(verr, "restaurantId", in.RestaurantID)
	at := requireText(verr, "time", in.Time)
	date := s.validateDate(verr, in.Date)
	if in.PartySize < 1 {
		verr.Add("partySize", "party size must be at least 1")
	}
	items := buildItems(verr, in.Items)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	r := &models.Reservation{
		ID:           uuid.NewString(),
		Name:         name,
		Phone:        phone,
		Email:        normalizeEmail(in.Email),
		RestaurantID: restaurantID,
		Date:         date,
		Time:         at,
		PartySize:    in.PartySize,
		Note:         strings.TrimSpace(in.Note),
		Status:       models.StatusPending,
		Items:        items,
	}
	if tableID := strings.TrimSpace(in.TableID); tableID != "" {
		r.TableID = &tableID
	}
	if !caller.IsAnonymous() {
		owner := caller.UserID
		r.OwnerID = &owner
	}
	r.RecalculateTotal()

	if err := s.Store.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	if r.HasTable() {
		s.syncTable(ctx, caller, r.ID, *r.TableID, models.TableOccupied)
	}
	s.notify(ctx, caller, r, models.EventReservationCreated, "")
	return r, nil
}

func (s *ReservationService) Get(ctx context.Context, caller Caller, id string) (*models.Reservation, error) {
	r, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanView(caller, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ReservationService) Update(ctx context.Context, caller Caller, id string, in UpdateReservationInput) (*models.Reservation, error) {
	r, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanUpdate(caller, r); err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	if in.Name != nil {
		r.Name = requireText(verr, "name", *in.Name)
	}
	if in.Phone != nil {
		r.Phone = requireText(verr, "phone", *in.Phone)
	}
	if in.Email != nil {
		r.Email = normalizeEmail(*in.Email)
	}
	if in.Date != nil {
		r.Date = s.validateDate(verr, *in.Date)
	}
	if in.Time != nil {
		r.Time = requireText(verr, "time", *in.Time)
	}
	if in.PartySize != nil {
		if *in.PartySize < 1 {
			verr.Add("partySize", "party size must be at least 1")
		}
		r.PartySize = *in.PartySize
	}
	if in.Note != nil {
		r.Note = strings.TrimSpace(*in.Note)
	}
	if in.Items != nil {
		r.Items = buildItems(verr, *in.Items)
		r.RecalculateTotal()
	}

	var oldTable, newTable string
	tableChanged := false
	if in.TableID != nil {
		if r.HasTable() {
			oldTable = *r.TableID
		}
		newTable = strings.TrimSpace(*in.TableID)
		if newTable != oldTable {
			tableChanged = true
			if newTable == "" {
				r.TableID = nil
			} else {
				r.TableID = &newTable
			}
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	if err := s.Store.Update(ctx, r, in.Items != nil); err != nil {
		return nil, fmt.Errorf("update reservation: %w", err)
	}

	if tableChanged {
		if oldTable != "" {
			s.syncTable(ctx, caller, r.ID, oldTable, models.TableAvailable)
		}
		if newTable != "" {
			s.syncTable(ctx, caller, r.ID, newTable, models.TableOccupied)
		}
	}
	s.notify(ctx, caller, r, models.EventReservationUpdated, "")
	return r, nil
}

func (s *ReservationService) ChangeStatus(ctx context.Context, caller Caller, id, target string) (*models.Reservation, error) {
	to, ok := models.ParseReservationStatus(target)
	if !ok {
		verr := &ValidationError{}
		verr.Add("status", "status must be one of Pending, Confirmed, Cancelled, Completed")
		return nil, verr
	}

	r, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanTransition(caller, r, to); err != nil {
		return nil, err
	}

	from := r.Status
	r.Status = to
	if err := s.Store.Update(ctx, r, false); err != nil {
		return nil, fmt.Errorf("change reservation status: %w", err)
	}

	if r.HasTable() {
		if status, ok := tableStatusAfter(to); ok {
			s.syncTable(ctx, caller, r.ID, *r.TableID, status)
		}
	}
	s.notify(ctx, caller, r, models.EventReservationStatusChanged, from)
	return r, nil
}

// Delete releases the table of the reservation before removing the record.
func (s *ReservationService) Delete(ctx context.Context, caller Caller, id string) error {
	if err := CanDelete(caller); err != nil {
		return err
	}
	r, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if r.HasTable() {
		s.syncTable(ctx, caller, r.ID, *r.TableID, models.TableAvailable)
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	s.notify(ctx, caller, r, models.EventReservationDeleted, r.Status)
	return nil
}

func (s *ReservationService) List(ctx context.Context, caller Caller, q ListQuery) (*ReservationPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var f store.Filter
	if status, ok := models.ParseReservationStatus(q.Status); ok {
		f.Status = status
	}
	f.RestaurantID = strings.TrimSpace(q.RestaurantID)
	if q.Date != "" {
		day, err := parseDay(q.Date)
		if err != nil {
			verr := &ValidationError{}
			verr.Add("date", "date must be a valid calendar date (YYYY-MM-DD)")
			return nil, verr
		}
		f.DateFrom = day
		f.DateTo = day.AddDate(0, 0, 1)
	}
	if !caller.IsStaff() {
		if caller.IsAnonymous() {
			return nil, ErrForbidden
		}
		f.OwnerID = caller.UserID
	}

	items, total, err := s.Store.List(ctx, f, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return &ReservationPage{
		Items:      items,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		TotalItems: total,
	}, nil
}

// AvailableTables forwards the capacity query to the table service. Unlike
// the occupancy updates, failures here are returned to the caller.
func (s *ReservationService) AvailableTables(ctx context.Context, q AvailabilityQuery) (json.RawMessage, error) {
	verr := &ValidationError{}
	q.RestaurantID = requireText(verr, "restaurantId", q.RestaurantID)
	q.Date = requireText(verr, "date", q.Date)
	q.Time = requireText(verr, "time", q.Time)
	if q.PartySize < 1 {
		verr.Add("partySize", "party size must be at least 1")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	body, err := s.Tables.FindAvailable(ctx, q)
	if err != nil {
		s.Log.WithError(err).WithField("restaurant_id", q.RestaurantID).Error("available tables query failed")
		return nil, fmt.Errorf("%w: %v", ErrTableServiceUnavailable, err)
	}
	return body, nil
}

// syncTable asks the table service to move tableID to status. The call is
// detached from the request's cancellation, bounded by TableTimeout, and
// its failure is only logged.
func (s *ReservationService) syncTable(ctx context.Context, caller Caller, reservationID, tableID string, status models.TableStatus) {
	if s.Tables == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.TableTimeout)
	defer cancel()

	entry := s.Log.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"table_id":       tableID,
		"table_status":   status,
	})
	if err := s.Tables.SetStatus(callCtx, tableID, status, caller.Authorization); err != nil {
		entry.WithError(err).Warn("table status sync failed")
		return
	}
	entry.Info("table status synced")
}

func (s *ReservationService) notify(ctx context.Context, caller Caller, r *models.Reservation, eventType string, from models.ReservationStatus) {
	if len(s.Notifiers) == 0 {
		return
	}
	ev := models.ReservationEvent{
		Type:          eventType,
		ReservationID: r.ID,
		RestaurantID:  r.RestaurantID,
		From:          from,
		Status:        r.Status,
		ActorID:       caller.UserID,
		OccurredAt:    s.Now().UTC(),
	}
	if r.HasTable() {
		ev.TableID = *r.TableID
	}
	for _, n := range s.Notifiers {
		n.Notify(context.WithoutCancel(ctx), ev)
	}
}

// tableStatusAfter maps a reservation status to the table status it implies.
// Pending has no table effect of its own.
func tableStatusAfter(to models.ReservationStatus) (models.TableStatus, bool) {
	switch to {
	case models.StatusConfirmed:
		return models.TableOccupied, true
	case models.StatusCompleted, models.StatusCancelled:
		return models.TableAvailable, true
	}
	return "", false
}

func (s *ReservationService) today() time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	now := s.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *ReservationService) validateDate(verr *ValidationError, raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		verr.Add("date", "date is required")
		return time.Time{}
	}
	day, err := parseDay(raw)
	if err != nil {
		verr.Add("date", "date must be a valid calendar date (YYYY-MM-DD)")
		return time.Time{}
	}
	if day.Before(s.today()) {
		verr.Add("date", "date must be today or later")
	}
	return day
}

// parseDay accepts YYYY-MM-DD or RFC 3339 and returns the calendar day as
// UTC midnight.
func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, err
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func requireText(verr *ValidationError, field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		verr.Add(field, field+" is required")
	}
	return value
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func buildItems(verr *ValidationError, in []ItemInput) []models.ReservationItem {
	items := make([]models.ReservationItem, 0, len(in))
	for i, item := range in {
		prefix := fmt.Sprintf("items[%d].", i)
		menuItem := strings.TrimSpace(item.MenuItemID)
		if menuItem == "" {
			verr.Add(prefix+"menuItem", "menu item is required")
		}
		if item.Quantity < 1 {
			verr.Add(prefix+"quantity", "quantity must be at least 1")
		}
		if item.Price < 0 {
			verr.Add(prefix+"price", "price must not be negative")
		}
		items = append(items, models.ReservationItem{
			MenuItemID: menuItem,
			Quantity:   item.Quantity,
			Price:      item.Price,
			Note:       strings.TrimSpace(item.Note),
		})
	}
	return items
}
