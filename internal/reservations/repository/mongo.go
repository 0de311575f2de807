package repository

import (
	"context"
	"errors"
	"time"

	reservationserrors "rentcore/internal/reservations/errors"
	mongotx "rentcore/pkg/db/mongo"
	"rentcore/pkg/interval"
	"rentcore/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoReservationRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoReservationRepository(db *mongo.Database, timeout time.Duration) ReservationRepository {
	return &mongoReservationRepository{
		collection: db.Collection(CollectionName),
		timeout:    timeout,
	}
}

func (r *mongoReservationRepository) Insert(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, reservation); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return reservationserrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	var reservation model.Reservation
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&reservation); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *mongoReservationRepository) UpdateIf(ctx context.Context, reservation *model.Reservation, expected Version) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{
		"_id":        reservation.ID,
		"status":     expected.Status,
		"updated_at": expected.UpdatedAt,
	}
	update := bson.M{"$set": bson.M{
		"status":         reservation.Status,
		"payment_marker": reservation.PaymentMarker,
		"updated_at":     reservation.UpdatedAt,
	}}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return reservationserrors.ErrStaleWrite
	}
	return nil
}

func (r *mongoReservationRepository) List(ctx context.Context, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(offset).
		SetLimit(int64(limit))
	return r.find(ctx, filterDoc(filter), opts)
}

func (r *mongoReservationRepository) Count(ctx context.Context, filter model.ReservationFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.collection.CountDocuments(ctx, filterDoc(filter))
}

func (r *mongoReservationRepository) Committed(ctx context.Context, resourceID string) ([]*model.Reservation, error) {
	filter := bson.M{
		"resource_id": resourceID,
		"status":      bson.M{"$in": committedStatuses},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "from", Value: 1}}))
}

func (r *mongoReservationRepository) OverlappingHolds(ctx context.Context, resourceID string, window interval.Interval, freshSince time.Time) ([]interval.Occupant, error) {
	filter := bson.M{
		"resource_id": resourceID,
		"from":        bson.M{"$lt": window.To},
		"to":          bson.M{"$gt": window.From},
		"$or": bson.A{
			bson.M{"status": bson.M{"$in": committedStatuses}},
			bson.M{"status": model.StatusPending, "created_at": bson.M{"$gt": freshSince}},
		},
	}
	reservations, err := r.find(ctx, filter, options.Find())
	if err != nil {
		return nil, err
	}

	occupants := make([]interval.Occupant, 0, len(reservations))
	for _, res := range reservations {
		occupants = append(occupants, occupantOf(res))
	}
	return occupants, nil
}

func (r *mongoReservationRepository) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Reservation, error) {
	filter := bson.M{
		"status":     model.StatusPending,
		"created_at": bson.M{"$lte": createdBefore},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *mongoReservationRepository) FindStaleUnpaid(ctx context.Context, updatedBefore time.Time, limit int) ([]*model.Reservation, error) {
	filter := bson.M{
		"status":         model.StatusConfirmed,
		"payment_marker": model.MarkerUnpaid,
		"updated_at":     bson.M{"$lte": updatedBefore},
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *mongoReservationRepository) FindUnnotified(ctx context.Context, limit int) ([]*model.Reservation, error) {
	filter := bson.M{"$expr": bson.M{"$or": bson.A{
		bson.M{"$ne": bson.A{"$status", "$notified_status"}},
		bson.M{"$ne": bson.A{"$payment_marker", "$notified_marker"}},
	}}}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *mongoReservationRepository) MarkNotified(ctx context.Context, id string, status model.ReservationStatus, marker model.PaymentMarker) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": status, "payment_marker": marker},
		bson.M{"$set": bson.M{"notified_status": status, "notified_marker": marker}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *mongoReservationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Reservation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	reservations := make([]*model.Reservation, 0)
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

func filterDoc(f model.ReservationFilter) bson.M {
	doc := bson.M{}
	if f.ResourceID != "" {
		doc["resource_id"] = f.ResourceID
	}
	if f.RequesterID != "" {
		doc["requester_id"] = f.RequesterID
	}
	if f.Status != "" {
		doc["status"] = f.Status
	}
	return doc
}
