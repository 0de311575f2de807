package mongo

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	catalogrepository "rentcore/internal/catalog/repository"
	ledgerrepository "rentcore/internal/ledger/repository"
	"rentcore/internal/migrations/mongo/validators"
	paymentrepository "rentcore/internal/payments/repository"
	reservationrepository "rentcore/internal/reservations/repository"
	"rentcore/pkg/lock"
	"rentcore/pkg/logger"
)

var (
	ReservationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "resource_id", Value: 1},
			{Key: "from", Value: 1},
			{Key: "to", Value: 1},
		}},
		// sweeper: stale pending
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		// sweeper: stale unpaid
		{Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "payment_marker", Value: 1},
			{Key: "updated_at", Value: 1},
		}},
		{Keys: bson.D{{Key: "requester_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "notified_status", Value: 1}, {Key: "updated_at", Value: 1}}},
	}

	OccupancyBlocksIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "resource_id", Value: 1},
			{Key: "from", Value: 1},
			{Key: "to", Value: 1},
		}},
		{
			Keys:    bson.D{{Key: "reservation_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"reason": "reservation"}),
		},
	}

	PaymentRecordsIndexes = []mongo.IndexModel{
		// at most one pending attempt per reservation
		{
			Keys:    bson.D{{Key: "reservation_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"status": "pending"}).SetName("one_pending_per_reservation"),
		},
		{
			Keys:    bson.D{{Key: "external_ref", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "reservation_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	ResourcesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "partner_id", Value: 1}, {Key: "active", Value: 1}}},
	}

	PartnerUsersIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "partner_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	LocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
)

type CollectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// Collections lists every collection the services rely on.
func Collections() map[string]CollectionDef {
	return map[string]CollectionDef{
		reservationrepository.CollectionName: {
			Indexes:   ReservationsIndexes,
			Validator: validators.ReservationValidator,
		},
		ledgerrepository.CollectionName: {
			Indexes:   OccupancyBlocksIndexes,
			Validator: validators.OccupancyBlockValidator,
		},
		paymentrepository.CollectionName: {
			Indexes:   PaymentRecordsIndexes,
			Validator: validators.PaymentRecordValidator,
		},
		catalogrepository.ResourcesCollection: {
			Indexes:   ResourcesIndexes,
			Validator: validators.ResourceValidator,
		},
		catalogrepository.PartnerUsersCollection: {
			Indexes:   PartnerUsersIndexes,
			Validator: validators.PartnerUserValidator,
		},
		lock.CollectionName: {
			Indexes:   LocksIndexes,
			Validator: validators.LockValidator,
		},
	}
}

type Options struct {
	DryRun bool
}

func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger, opts Options) error {
	log.Info("Running Mongo migrations", "database", db.Name(), "dry_run", opts.DryRun)

	defs := Collections()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := defs[name]
		if opts.DryRun {
			log.Info("Would ensure collection", "collection", name, "indexes", len(def.Indexes))
			continue
		}
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
