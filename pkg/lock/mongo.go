package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	mongotx "rentcore/pkg/db/mongo"
	"rentcore/pkg/logger"
	"rentcore/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionName = "Reservation_locks"

// MongoLocker implements advisory locks as documents keyed by the lock name.
// A lease (expires_at) lets a crashed holder's lock be taken over.
type MongoLocker struct {
	collection    *mongo.Collection
	ttl           time.Duration
	retryInterval time.Duration
	log           *logger.Logger
}

func NewMongoLocker(db *mongo.Database, ttl, retryInterval time.Duration, log *logger.Logger) *MongoLocker {
	return &MongoLocker{
		collection:    db.Collection(CollectionName),
		ttl:           ttl,
		retryInterval: retryInterval,
		log:           log,
	}
}

func (l *MongoLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	owner := uuid.New().String()

	for {
		acquired, err := l.tryAcquire(ctx, key, owner)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if acquired {
			return l.unlockFunc(key, owner), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-time.After(l.retryInterval):
		}
	}
}

func (l *MongoLocker) tryAcquire(ctx context.Context, key, owner string) (bool, error) {
	now := time.Now().UTC()
	doc := model.Lock{
		ID:        key,
		Owner:     owner,
		ExpiresAt: now.Add(l.ttl),
		CreatedAt: now,
	}

	_, err := l.collection.InsertOne(ctx, doc)
	if err == nil {
		return true, nil
	}
	if !mongotx.IsDuplicateKey(err) {
		return false, err
	}

	// The TTL monitor only runs about once a minute, so take over stale leases here.
	res, err := l.collection.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lt": now}})
	if err != nil {
		return false, err
	}
	if res.DeletedCount > 0 {
		l.log.Warn("Took over expired lock", "key", key)
		_, err = l.collection.InsertOne(ctx, doc)
		if err == nil {
			return true, nil
		}
		if !mongotx.IsDuplicateKey(err) {
			return false, err
		}
	}
	return false, nil
}

func (l *MongoLocker) unlockFunc(key, owner string) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, owner) })
	}
}

// release runs on a fresh context so a canceled caller still frees the lock.
func (l *MongoLocker) release(key, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := l.collection.DeleteOne(ctx, bson.M{"_id": key, "owner": owner}); err != nil {
		l.log.Error("Failed to release lock, it will expire with its lease",
			"key", key,
			"error", err,
		)
	}
}
