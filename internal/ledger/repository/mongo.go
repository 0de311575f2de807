package repository

import (
	"context"
	"errors"
	"time"

	ledgererrors "rentcore/internal/ledger/errors"
	mongotx "rentcore/pkg/db/mongo"
	"rentcore/pkg/interval"
	"rentcore/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoBlockRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoBlockRepository(db *mongo.Database, timeout time.Duration) BlockRepository {
	return &mongoBlockRepository{
		collection: db.Collection(CollectionName),
		timeout:    timeout,
	}
}

func (r *mongoBlockRepository) Insert(ctx context.Context, block *model.OccupancyBlock) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, block)
	if err != nil {
		if mongotx.IsDuplicateKey(err) {
			return ledgererrors.ErrBlockExists
		}
		return err
	}
	return nil
}

func (r *mongoBlockRepository) FindByID(ctx context.Context, id string) (*model.OccupancyBlock, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	var block model.OccupancyBlock
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&block); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledgererrors.ErrBlockNotFound
		}
		return nil, err
	}
	return &block, nil
}

func (r *mongoBlockRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ledgererrors.ErrBlockNotFound
	}
	return nil
}

func (r *mongoBlockRepository) DeleteByReservation(ctx context.Context, reservationID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.collection.DeleteMany(ctx, bson.M{"reservation_id": reservationID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *mongoBlockRepository) DeleteByReason(ctx context.Context, resourceID string, reason model.BlockReason) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.collection.DeleteMany(ctx, bson.M{"resource_id": resourceID, "reason": reason})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *mongoBlockRepository) ListForResource(ctx context.Context, resourceID string) ([]*model.OccupancyBlock, error) {
	return r.find(ctx, bson.M{"resource_id": resourceID})
}

func (r *mongoBlockRepository) OverlappingBlocks(ctx context.Context, resourceID string, window interval.Interval) ([]interval.Occupant, error) {
	blocks, err := r.find(ctx, bson.M{
		"resource_id": resourceID,
		"from":        bson.M{"$lt": window.To},
		"to":          bson.M{"$gt": window.From},
	})
	if err != nil {
		return nil, err
	}

	occupants := make([]interval.Occupant, 0, len(blocks))
	for _, b := range blocks {
		occupants = append(occupants, b.Occupant())
	}
	return occupants, nil
}

func (r *mongoBlockRepository) find(ctx context.Context, filter bson.M) ([]*model.OccupancyBlock, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "from", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	blocks := make([]*model.OccupancyBlock, 0)
	if err := cursor.All(ctx, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}
