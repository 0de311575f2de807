// Package bootstrap assembles repositories, locks and services for the
// configured drivers. Every command builds its process from one Stack.
package bootstrap

import (
	"context"
	"fmt"

	catalogrepository "rentcore/internal/catalog/repository"
	catalogservice "rentcore/internal/catalog/service"
	ledgerrepository "rentcore/internal/ledger/repository"
	ledgerservice "rentcore/internal/ledger/service"
	paymentrepository "rentcore/internal/payments/repository"
	paymentservice "rentcore/internal/payments/service"
	paymentvalidator "rentcore/internal/payments/validator"
	reservationrepository "rentcore/internal/reservations/repository"
	reservationservice "rentcore/internal/reservations/service"
	reservationvalidator "rentcore/internal/reservations/validator"
	"rentcore/pkg/clock"
	"rentcore/pkg/config"
	"rentcore/pkg/db/memory"
	mongotx "rentcore/pkg/db/mongo"
	"rentcore/pkg/lock"
)

type Stack struct {
	Clock  clock.Clock
	Tx     mongotx.TransactionManager
	Locker lock.Locker

	ReservationRepo reservationrepository.ReservationRepository
	BlockRepo       ledgerrepository.BlockRepository
	PaymentRepo     paymentrepository.PaymentRepository
	CatalogRepo     catalogrepository.CatalogRepository

	Catalog      catalogservice.CatalogService
	Ledger       ledgerservice.Ledger
	Reservations reservationservice.ReservationService
	Payments     paymentservice.PaymentService

	ReservationValidator *reservationvalidator.ReservationValidator
	PaymentValidator     *paymentvalidator.PaymentValidator
}

// Build wires the stack for cfg. With the mongo drivers cfg.Client must
// already be connected (see config.SetMongo).
func Build(ctx context.Context, cfg *config.Config, clk clock.Clock) (*Stack, error) {
	s := &Stack{
		Clock:                clk,
		ReservationValidator: reservationvalidator.NewReservationValidator(cfg.Log),
		PaymentValidator:     paymentvalidator.NewPaymentValidator(cfg.Log),
	}

	switch cfg.StorageDriver {
	case config.DriverMongo:
		if cfg.Client == nil || cfg.Client.Mongo == nil {
			return nil, fmt.Errorf("storage driver mongo needs a connected client")
		}
		db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
		s.Tx = mongotx.NewTransactionManager(cfg.Client.Mongo)
		s.ReservationRepo = reservationrepository.NewMongoReservationRepository(db, cfg.MongoOpTimeout)
		s.BlockRepo = ledgerrepository.NewMongoBlockRepository(db, cfg.MongoOpTimeout)
		s.PaymentRepo = paymentrepository.NewMongoPaymentRepository(db, cfg.MongoOpTimeout)
		s.CatalogRepo = catalogrepository.NewMongoCatalogRepository(db, cfg.MongoOpTimeout)
	case config.DriverMemory:
		store := memory.NewStore()
		s.Tx = store
		s.ReservationRepo = reservationrepository.NewMemoryReservationRepository(store)
		s.BlockRepo = ledgerrepository.NewMemoryBlockRepository(store)
		s.PaymentRepo = paymentrepository.NewMemoryPaymentRepository(store)
		s.CatalogRepo = catalogrepository.NewMemoryCatalogRepository(store)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	switch cfg.LockDriver {
	case config.DriverMongo:
		if cfg.Client == nil || cfg.Client.Mongo == nil {
			return nil, fmt.Errorf("lock driver mongo needs a connected client")
		}
		s.Locker = lock.NewMongoLocker(cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.LockTTL, cfg.LockRetryInterval, cfg.Log)
	case config.DriverMemory:
		s.Locker = lock.NewMemoryLocker()
	default:
		return nil, fmt.Errorf("unknown lock driver %q", cfg.LockDriver)
	}

	s.Catalog = catalogservice.NewCatalogService(s.CatalogRepo, cfg)
	s.Ledger = ledgerservice.NewLedger(s.BlockRepo, s.ReservationRepo, s.Tx, clk, cfg)
	s.Reservations = reservationservice.NewReservationService(
		s.ReservationRepo,
		s.BlockRepo,
		s.Ledger,
		s.Catalog,
		s.Locker,
		s.Tx,
		s.ReservationValidator,
		clk,
		cfg,
	)
	s.Payments = paymentservice.NewPaymentService(
		s.PaymentRepo,
		s.Reservations,
		s.Locker,
		s.Tx,
		s.PaymentValidator,
		clk,
		cfg,
	)

	if cfg.CatalogSeedFile != "" {
		seed, err := catalogservice.LoadSeedFile(cfg.CatalogSeedFile)
		if err != nil {
			return nil, err
		}
		if err := s.Catalog.Seed(ctx, seed); err != nil {
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
	}

	cfg.Log.Info("Service stack initialized",
		"storage_driver", cfg.StorageDriver,
		"lock_driver", cfg.LockDriver,
		"database", cfg.MongoDatabaseName,
	)
	return s, nil
}
