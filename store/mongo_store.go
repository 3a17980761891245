package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yeremiapane/restaurant-reservation/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ReservationsCollection = "reservations"

// MongoReservationStore keeps each reservation as one document with its line
// items embedded, so replaceItems has no separate effect on Update.
type MongoReservationStore struct {
	Collection *mongo.Collection
}

func NewMongoReservationStore(db *mongo.Database) *MongoReservationStore {
	return &MongoReservationStore{Collection: db.Collection(ReservationsCollection)}
}

// EnsureIndexes creates the indexes used by List.
func (s *MongoReservationStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "ownerId", Value: 1}}},
		{Keys: bson.D{{Key: "restaurantId", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create reservation indexes: %w", err)
	}
	return nil
}

func (s *MongoReservationStore) Create(ctx context.Context, r *models.Reservation) error {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Items == nil {
		r.Items = []models.ReservationItem{}
	}
	if _, err := s.Collection.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (s *MongoReservationStore) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	var r models.Reservation
	err := s.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find reservation %s: %w", id, err)
	}
	return &r, nil
}

func (s *MongoReservationStore) Update(ctx context.Context, r *models.Reservation, _ bool) error {
	r.UpdatedAt = time.Now()
	if r.Items == nil {
		r.Items = []models.ReservationItem{}
	}
	res, err := s.Collection.ReplaceOne(ctx, bson.M{"_id": r.ID}, r)
	if err != nil {
		return fmt.Errorf("update reservation %s: %w", r.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoReservationStore) Delete(ctx context.Context, id string) error {
	res, err := s.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete reservation %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoReservationStore) List(ctx context.Context, f Filter, offset, limit int) ([]models.Reservation, int64, error) {
	filter := mongoFilter(f)

	total, err := s.Collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := s.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	defer cursor.Close(ctx)

	reservations := make([]models.Reservation, 0, limit)
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, 0, fmt.Errorf("decode reservations: %w", err)
	}
	return reservations, total, nil
}

func mongoFilter(f Filter) bson.M {
	filter := bson.M{}
	if f.OwnerID != "" {
		filter["ownerId"] = f.OwnerID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.RestaurantID != "" {
		filter["restaurantId"] = f.RestaurantID
	}
	if !f.DateFrom.IsZero() || !f.DateTo.IsZero() {
		dateRange := bson.M{}
		if !f.DateFrom.IsZero() {
			dateRange["$gte"] = f.DateFrom
		}
		if !f.DateTo.IsZero() {
			dateRange["$lt"] = f.DateTo
		}
		filter["date"] = dateRange
	}
	return filter
}
