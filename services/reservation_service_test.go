package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-reservation/models"
	"github.com/yeremiapane/restaurant-reservation/services"
	"github.com/yeremiapane/restaurant-reservation/store"
)

var fixedNow = time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC)

const (
	today     = "2026-10-18"
	tomorrow  = "2026-10-19"
	yesterday = "2026-10-17"
)

var (
	alice = services.Caller{UserID: "u-alice", Role: models.RoleUser, Authorization: "Bearer alice"}
	bob   = services.Caller{UserID: "u-bob", Role: models.RoleUser, Authorization: "Bearer bob"}
	staff = services.Caller{UserID: "u-staff", Role: models.RoleStaff, Authorization: "Bearer staff"}
	admin = services.Caller{UserID: "u-admin", Role: models.RoleAdmin, Authorization: "Bearer admin"}
)

type tableCall struct {
	TableID       string
	Status        models.TableStatus
	Authorization string
}

type fakeTables struct {
	mu        sync.Mutex
	calls     []tableCall
	setErr    error
	available json.RawMessage
	findErr   error
}

func (f *fakeTables) SetStatus(_ context.Context, tableID string, status models.TableStatus, authorization string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tableCall{TableID: tableID, Status: status, Authorization: authorization})
	return f.setErr
}

func (f *fakeTables) FindAvailable(_ context.Context, _ services.AvailabilityQuery) (json.RawMessage, error) {
	return f.available, f.findErr
}

func (f *fakeTables) Calls() []tableCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tableCall(nil), f.calls...)
}

type recordingNotifier struct {
	events []models.ReservationEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev models.ReservationEvent) {
	n.events = append(n.events, ev)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Reservation{}, &models.ReservationItem{}))
	return db
}

func setupService(t *testing.T) (*services.ReservationService, *fakeTables, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	tables := &fakeTables{}
	svc := services.NewReservationService(store.NewGormReservationStore(setupTestDB(t)), tables, logger)
	svc.Now = func() time.Time { return fixedNow }
	svc.Location = time.UTC
	svc.TableTimeout = time.Second
	return svc, tables, hook
}

func validInput() services.CreateReservationInput {
	return services.CreateReservationInput{
		Name:         "Nguyen Van A",
		Phone:        "0912345678",
		RestaurantID: "R1",
		Date:         tomorrow,
		Time:         "18:00",
		PartySize:    4,
	}
}

func TestCreateReservationDefaults(t *testing.T) {
	svc, tables, _ := setupService(t)

	r, err := svc.Create(context.Background(), services.Caller{}, validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, 0.0, r.TotalPrice)
	assert.Nil(t, r.OwnerID, "anonymous bookings have no owner")
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), r.Date)
	assert.Empty(t, tables.Calls(), "no table, no table call")
}

func TestCreateReservationComputesTotal(t *testing.T) {
	svc, _, _ := setupService(t)

	in := validInput()
	in.Items = []services.ItemInput{
		{MenuItemID: "M1", Quantity: 2, Price: 50000},
		{MenuItemID: "M2", Quantity: 1, Price: 30000},
	}
	r, err := svc.Create(context.Background(), alice, in)
	require.NoError(t, err)
	assert.Equal(t, 130000.0, r.TotalPrice)

	stored, err := svc.Get(context.Background(), alice, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 130000.0, stored.TotalPrice)
	assert.Len(t, stored.Items, 2)
	require.NotNil(t, stored.OwnerID)
	assert.Equal(t, alice.UserID, *stored.OwnerID)
}

func TestCreateReservationDateValidation(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		wantErr bool
	}{
		{name: "today", date: today},
		{name: "today late in the day", date: "2026-10-18T23:59:00Z"},
		{name: "tomorrow", date: tomorrow},
		{name: "yesterday", date: yesterday, wantErr: true},
		{name: "garbage", date: "next friday", wantErr: true},
		{name: "missing", date: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := setupService(t)
			in := validInput()
			in.Date = tt.date

			_, err := svc.Create(context.Background(), alice, in)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var verr *services.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "date", verr.Errors[0].Field)
		})
	}
}

func TestCreateReservationRequiredFields(t *testing.T) {
	svc, tables, _ := setupService(t)

	_, err := svc.Create(context.Background(), alice, services.CreateReservationInput{
		TableID: "T1",
		Items:   []services.ItemInput{{MenuItemID: "M1", Quantity: 0, Price: 10}},
	})

	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"name", "phone", "restaurantId", "time", "date", "partySize", "items[0].quantity"}, fields)
	assert.Empty(t, tables.Calls(), "nothing written, nothing synced")
}

func TestCreateReservationOccupiesTableOnce(t *testing.T) {
	svc, tables, _ := setupService(t)

	in := validInput()
	in.TableID = "T1"
	r, err := svc.Create(context.Background(), alice, in)
	require.NoError(t, err)

	assert.Equal(t, []tableCall{{TableID: "T1", Status: models.TableOccupied, Authorization: "Bearer alice"}}, tables.Calls())
	require.NotNil(t, r.TableID)
	assert.Equal(t, "T1", *r.TableID)
}

func TestCreateReservationSucceedsWhenTableServiceFails(t *testing.T) {
	svc, tables, hook := setupService(t)
	tables.setErr = errors.New("connection refused")

	in := validInput()
	in.TableID = "T1"
	r, err := svc.Create(context.Background(), alice, in)
	require.NoError(t, err)
	assert.Len(t, tables.Calls(), 1)

	stored, err := svc.Get(context.Background(), alice, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == "table status sync failed" {
			warned = true
			assert.Equal(t, "T1", entry.Data["table_id"])
			assert.Equal(t, r.ID, entry.Data["reservation_id"])
		}
	}
	assert.True(t, warned, "the swallowed failure is logged")
}

func TestChangeStatusEndToEnd(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, alice, validInput())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, r.Status)

	r, err = svc.ChangeStatus(ctx, staff, r.ID, "Confirmed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, r.Status)

	_, err = svc.ChangeStatus(ctx, alice, r.ID, "Cancelled")
	assert.ErrorIs(t, err, services.ErrForbidden)
}

func TestChangeStatusPlainUserRules(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, alice, validInput())
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, bob, r.ID, "Cancelled")
	assert.ErrorIs(t, err, services.ErrForbidden, "not the owner")

	_, err = svc.ChangeStatus(ctx, alice, r.ID, "Confirmed")
	assert.ErrorIs(t, err, services.ErrForbidden, "users may only cancel")

	r, err = svc.ChangeStatus(ctx, alice, r.ID, "Cancelled")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, r.Status)
}

func TestChangeStatusTransitions(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, alice, validInput())
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, staff, r.ID, "Completed")
	assert.ErrorIs(t, err, services.ErrInvalidTransition, "Pending cannot complete")

	_, err = svc.ChangeStatus(ctx, staff, r.ID, "Seated")
	var verr *services.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.ChangeStatus(ctx, staff, "missing", "Confirmed")
	assert.ErrorIs(t, err, services.ErrReservationNotFound)

	_, err = svc.ChangeStatus(ctx, staff, r.ID, "confirmed")
	require.NoError(t, err)
	r, err = svc.ChangeStatus(ctx, admin, r.ID, "Completed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, r.Status)

	_, err = svc.ChangeStatus(ctx, admin, r.ID, "Cancelled")
	assert.ErrorIs(t, err, services.ErrInvalidTransition, "Completed is terminal")
}

func TestChangeStatusSyncsTable(t *testing.T) {
	tests := []struct {
		name  string
		steps []string
		want  []models.TableStatus
	}{
		{name: "confirm then complete", steps: []string{"Confirmed", "Completed"},
			want: []models.TableStatus{models.TableOccupied, models.TableOccupied, models.TableAvailable}},
		{name: "confirm then cancel", steps: []string{"Confirmed", "Cancelled"},
			want: []models.TableStatus{models.TableOccupied, models.TableOccupied, models.TableAvailable}},
		{name: "cancel while pending", steps: []string{"Cancelled"},
			want: []models.TableStatus{models.TableOccupied, models.TableAvailable}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, tables, _ := setupService(t)
			ctx := context.Background()

			in := validInput()
			in.TableID = "T9"
			r, err := svc.Create(ctx, alice, in)
			require.NoError(t, err)
			for _, step := range tt.steps {
				_, err := svc.ChangeStatus(ctx, staff, r.ID, step)
				require.NoError(t, err)
			}

			var got []models.TableStatus
			for _, call := range tables.Calls() {
				assert.Equal(t, "T9", call.TableID)
				got = append(got, call.Status)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdateReservation(t *testing.T) {
	svc, tables, _ := setupService(t)
	ctx := context.Background()

	in := validInput()
	in.TableID = "T1"
	in.Items = []services.ItemInput{{MenuItemID: "M1", Quantity: 1, Price: 20000}}
	r, err := svc.Create(ctx, alice, in)
	require.NoError(t, err)

	name := "Tran Thi B"
	size := 6
	newTable := "T2"
	items := []services.ItemInput{{MenuItemID: "M3", Quantity: 3, Price: 15000}}
	updated, err := svc.Update(ctx, alice, r.ID, services.UpdateReservationInput{
		Name:      &name,
		PartySize: &size,
		TableID:   &newTable,
		Items:     &items,
	})
	require.NoError(t, err)
	assert.Equal(t, "Tran Thi B", updated.Name)
	assert.Equal(t, 6, updated.PartySize)
	assert.Equal(t, 45000.0, updated.TotalPrice)
	assert.Equal(t, "0912345678", updated.Phone, "absent fields are kept")

	stored, err := svc.Get(ctx, alice, r.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "M3", stored.Items[0].MenuItemID)

	assert.Equal(t, []tableCall{
		{TableID: "T1", Status: models.TableOccupied, Authorization: "Bearer alice"},
		{TableID: "T1", Status: models.TableAvailable, Authorization: "Bearer alice"},
		{TableID: "T2", Status: models.TableOccupied, Authorization: "Bearer alice"},
	}, tables.Calls())
}

func TestUpdateReservationAuthorization(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, alice, validInput())
	require.NoError(t, err)
	note := "window seat"

	_, err = svc.Update(ctx, bob, r.ID, services.UpdateReservationInput{Note: &note})
	assert.ErrorIs(t, err, services.ErrForbidden)

	staffNote := "allergy: peanuts"
	updated, err := svc.Update(ctx, staff, r.ID, services.UpdateReservationInput{Note: &staffNote})
	require.NoError(t, err, "staff may edit reservations they do not own")
	assert.Equal(t, "allergy: peanuts", updated.Note)

	_, err = svc.ChangeStatus(ctx, staff, r.ID, "Confirmed")
	require.NoError(t, err)

	_, err = svc.Update(ctx, alice, r.ID, services.UpdateReservationInput{Note: &note})
	assert.ErrorIs(t, err, services.ErrForbidden, "owner cannot edit once confirmed")

	size := 3
	updated, err = svc.Update(ctx, staff, r.ID, services.UpdateReservationInput{PartySize: &size})
	require.NoError(t, err, "staff may edit confirmed reservations")
	assert.Equal(t, 3, updated.PartySize)

	updated, err = svc.Update(ctx, admin, r.ID, services.UpdateReservationInput{Note: &note})
	require.NoError(t, err)
	assert.Equal(t, "window seat", updated.Note)

	_, err = svc.Update(ctx, admin, "missing", services.UpdateReservationInput{})
	assert.ErrorIs(t, err, services.ErrReservationNotFound)
}

func TestUpdateReservationRejectsPastDate(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, alice, validInput())
	require.NoError(t, err)

	past := yesterday
	_, err = svc.Update(ctx, alice, r.ID, services.UpdateReservationInput{Date: &past})
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)

	stored, err := svc.Get(ctx, alice, r.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), stored.Date.UTC(), "nothing persisted")
}

func TestNoOpUpdateKeepsBusinessFields(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	in := validInput()
	in.TableID = "T1"
	in.Items = []services.ItemInput{{MenuItemID: "M1", Quantity: 2, Price: 50000}}
	r, err := svc.Create(ctx, alice, in)
	require.NoError(t, err)

	before, err := svc.Get(ctx, alice, r.ID)
	require.NoError(t, err)
	_, err = svc.Update(ctx, alice, r.ID, services.UpdateReservationInput{})
	require.NoError(t, err)
	after, err := svc.Get(ctx, alice, r.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(before, after, cmpopts.IgnoreFields(models.Reservation{}, "UpdatedAt")); diff != "" {
		t.Errorf("no-op update changed the reservation (-before +after):\n%s", diff)
	}
}

func TestDeleteReservationReleasesTable(t *testing.T) {
	svc, tables, _ := setupService(t)
	ctx := context.Background()

	in := validInput()
	in.TableID = "T5"
	r, err := svc.Create(ctx, alice, in)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, staff, r.ID), services.ErrForbidden)

	tables.setErr = errors.New("timeout")
	require.NoError(t, svc.Delete(ctx, admin, r.ID))

	calls := tables.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, tableCall{TableID: "T5", Status: models.TableAvailable, Authorization: "Bearer admin"}, calls[1])

	_, err = svc.Get(ctx, admin, r.ID)
	assert.ErrorIs(t, err, services.ErrReservationNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, admin, r.ID), services.ErrReservationNotFound)
}

func TestGetReservationVisibility(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, alice, validInput())
	require.NoError(t, err)

	for _, caller := range []services.Caller{alice, staff, admin} {
		_, err := svc.Get(ctx, caller, r.ID)
		assert.NoError(t, err, caller.UserID)
	}
	_, err = svc.Get(ctx, bob, r.ID)
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, err = svc.Get(ctx, services.Caller{}, r.ID)
	assert.ErrorIs(t, err, services.ErrForbidden)
}

func TestListReservations(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	create := func(caller services.Caller, restaurant, date string) *models.Reservation {
		in := validInput()
		in.RestaurantID = restaurant
		in.Date = date
		r, err := svc.Create(ctx, caller, in)
		require.NoError(t, err)
		return r
	}
	create(alice, "R1", "2026-10-20")
	create(alice, "R2", "2026-10-22")
	create(bob, "R1", "2026-10-21")
	create(bob, "R1", "2026-10-20")
	create(services.Caller{}, "R1", "2026-10-25")

	t.Run("plain user only sees own", func(t *testing.T) {
		page, err := svc.List(ctx, bob, services.ListQuery{RestaurantID: "R2"})
		require.NoError(t, err)
		assert.Empty(t, page.Items)

		page, err = svc.List(ctx, alice, services.ListQuery{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.TotalItems)
		for _, r := range page.Items {
			require.NotNil(t, r.OwnerID)
			assert.Equal(t, alice.UserID, *r.OwnerID)
		}
	})

	t.Run("staff sees all sorted by date desc", func(t *testing.T) {
		page, err := svc.List(ctx, staff, services.ListQuery{})
		require.NoError(t, err)
		assert.EqualValues(t, 5, page.TotalItems)
		assert.Equal(t, 1, page.TotalPages)
		require.Len(t, page.Items, 5)
		for i := 1; i < len(page.Items); i++ {
			assert.False(t, page.Items[i].Date.After(page.Items[i-1].Date), "dates must not increase")
		}
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := svc.List(ctx, staff, services.ListQuery{Page: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Page)
		assert.Equal(t, 3, page.TotalPages)
		assert.Len(t, page.Items, 2)

		page, err = svc.List(ctx, staff, services.ListQuery{Page: 0, Limit: 0})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, services.DefaultPageSize, page.Limit)
	})

	t.Run("filters", func(t *testing.T) {
		page, err := svc.List(ctx, staff, services.ListQuery{RestaurantID: "R1", Date: "2026-10-20"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.TotalItems)

		page, err = svc.List(ctx, staff, services.ListQuery{Status: "NotAStatus"})
		require.NoError(t, err)
		assert.EqualValues(t, 5, page.TotalItems, "unknown status is ignored")

		page, err = svc.List(ctx, staff, services.ListQuery{Status: "Confirmed"})
		require.NoError(t, err)
		assert.EqualValues(t, 0, page.TotalItems)

		_, err = svc.List(ctx, staff, services.ListQuery{Date: "20/10/2026"})
		var verr *services.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestAvailableTables(t *testing.T) {
	svc, tables, _ := setupService(t)
	ctx := context.Background()
	q := services.AvailabilityQuery{RestaurantID: "R1", Date: tomorrow, Time: "19:00", PartySize: 2}

	tables.available = json.RawMessage(`{"success":true,"data":{"tables":[],"count":0}}`)
	body, err := svc.AvailableTables(ctx, q)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"tables":[],"count":0}}`, string(body))

	_, err = svc.AvailableTables(ctx, services.AvailabilityQuery{RestaurantID: "R1"})
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 3)

	tables.findErr = errors.New("dial tcp: connection refused")
	_, err = svc.AvailableTables(ctx, q)
	assert.ErrorIs(t, err, services.ErrTableServiceUnavailable)
}

func TestNotifiersReceiveEvents(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	notifier := &recordingNotifier{}
	svc.Notifiers = append(svc.Notifiers, notifier)

	in := validInput()
	in.TableID = "T1"
	r, err := svc.Create(ctx, alice, in)
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, staff, r.ID, "Confirmed")
	require.NoError(t, err)

	require.Len(t, notifier.events, 2)
	assert.Equal(t, models.EventReservationCreated, notifier.events[0].Type)
	assert.Equal(t, "T1", notifier.events[0].TableID)
	last := notifier.events[1]
	assert.Equal(t, models.EventReservationStatusChanged, last.Type)
	assert.Equal(t, models.StatusPending, last.From)
	assert.Equal(t, models.StatusConfirmed, last.Status)
	assert.Equal(t, staff.UserID, last.ActorID)
	assert.Equal(t, fixedNow, last.OccurredAt)
}
