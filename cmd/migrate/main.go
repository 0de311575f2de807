package main

import (
	"context"
	"time"

	catalogrepository "rentcore/internal/catalog/repository"
	catalogservice "rentcore/internal/catalog/service"
	mongoMigration "rentcore/internal/migrations/mongo"
	"rentcore/pkg/config"

	flag "github.com/spf13/pflag"
)

const JobName = "mongo-migration"

func main() {
	timeout := flag.Duration("timeout", 120*time.Second, "overall deadline for the migration")
	database := flag.String("database", "", "database name (defaults to MONGO_DATABASE_NAME)")
	dryRun := flag.Bool("dry-run", false, "list the collections and indexes without touching the database")
	seed := flag.String("seed", "", "catalog seed file (resources and partner users) to upsert after migrating")
	flag.Parse()

	cfg := config.Load(JobName)
	if *database != "" {
		cfg.MongoDatabaseName = *database
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Mongo migration job", "database", cfg.MongoDatabaseName, "dry_run", *dryRun)
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	if err := mongoMigration.RunMigration(ctx, db, cfg.Log, mongoMigration.Options{DryRun: *dryRun}); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}

	if *seed != "" && !*dryRun {
		if err := seedCatalog(ctx, cfg, *seed); err != nil {
			cfg.Log.Fatal("Catalog seed failed", "error", err)
		}
	}

	cfg.Log.Info("Migration completed successfully")
}

func seedCatalog(ctx context.Context, cfg *config.Config, path string) error {
	seed, err := catalogservice.LoadSeedFile(path)
	if err != nil {
		return err
	}
	repo := catalogrepository.NewMongoCatalogRepository(cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.MongoOpTimeout)
	return catalogservice.NewCatalogService(repo, cfg).Seed(ctx, seed)
}
