package repository

import (
	"context"
	"errors"
	"time"

	paymentserrors "rentcore/internal/payments/errors"
	mongotx "rentcore/pkg/db/mongo"
	"rentcore/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoPaymentRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoPaymentRepository(db *mongo.Database, timeout time.Duration) PaymentRepository {
	return &mongoPaymentRepository{
		collection: db.Collection(CollectionName),
		timeout:    timeout,
	}
}

func (r *mongoPaymentRepository) Insert(ctx context.Context, record *model.PaymentRecord) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return paymentserrors.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *mongoPaymentRepository) FindByID(ctx context.Context, id string) (*model.PaymentRecord, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoPaymentRepository) FindByExternalRef(ctx context.Context, externalRef string) (*model.PaymentRecord, error) {
	return r.findOne(ctx, bson.M{"external_ref": externalRef})
}

func (r *mongoPaymentRepository) FindPendingByReservation(ctx context.Context, reservationID string) (*model.PaymentRecord, error) {
	return r.findOne(ctx, bson.M{"reservation_id": reservationID, "status": model.PaymentPending})
}

func (r *mongoPaymentRepository) ListByReservation(ctx context.Context, reservationID string) ([]*model.PaymentRecord, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"reservation_id": reservationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := make([]*model.PaymentRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *mongoPaymentRepository) UpdateIf(ctx context.Context, record *model.PaymentRecord, expected model.PaymentStatus) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":                  record.Status,
		"external_transaction_id": record.ExternalTransactionID,
		"raw_meta":                record.RawMeta,
		"updated_at":              record.UpdatedAt,
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": record.ID, "status": expected}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return paymentserrors.ErrStaleWrite
	}
	return nil
}

func (r *mongoPaymentRepository) findOne(ctx context.Context, filter bson.M) (*model.PaymentRecord, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	var record model.PaymentRecord
	if err := r.collection.FindOne(ctx, filter).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, paymentserrors.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}
