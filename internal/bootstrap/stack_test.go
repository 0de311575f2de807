package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rentcore/pkg/clock"
	"rentcore/pkg/config"
	apperrors "rentcore/pkg/errors"
	"rentcore/pkg/logger"
	"rentcore/pkg/model"
)

const seedJSON = `{
  "resources": [
    {"id": "car-1", "partner_id": "partner-1", "name": "Cobalt", "daily_rate": "100", "weekend_rate": "150", "currency": "UZS", "active": true}
  ],
  "partner_users": [
    {"id": "pu-1", "partner_id": "partner-1", "user_id": "owner-1", "active": true}
  ]
}`

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	seedPath := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(seedPath, []byte(seedJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		StorageDriver:          config.DriverMemory,
		LockDriver:             config.DriverMemory,
		CatalogSeedFile:        seedPath,
		HoldTTL:                20 * time.Minute,
		PendingHoldTTL:         20 * time.Minute,
		UnpaidHoldTTL:          20 * time.Minute,
		SelfCancelAfter:        20 * time.Minute,
		CancelOnPaymentFailure: true,
		Log:                    logger.Nop(),
	}
}

func TestBuild_MemoryEndToEnd(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC))
	s, err := Build(ctx, memoryConfig(t), clk)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	from := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	r, err := s.Reservations.Create(ctx, &model.CreateReservationRequest{
		ResourceID:  "car-1",
		RequesterID: "alice",
		From:        from,
		To:          from.AddDate(0, 0, 2),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if r.Quote.String() != "250" {
		t.Errorf("quote = %s, want 250 (Fri weekday + Sat weekend)", r.Quote)
	}

	if _, err := s.Reservations.Confirm(ctx, r.ID, "owner-1"); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	record, err := s.Payments.Initiate(ctx, &model.InitiatePaymentRequest{ReservationID: r.ID, Provider: model.ProviderPayme})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if _, err := s.Payments.Apply(ctx, &model.PaymentEvent{
		ExternalTransactionID: "tx-1",
		MappingKey:            record.ExternalRef,
		Amount:                record.Amount,
		Currency:              record.Currency,
		Outcome:               model.OutcomeSuccess,
	}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	paid, err := s.Reservations.GetByID(ctx, r.ID)
	if err != nil || !paid.IsPaid() {
		t.Fatalf("reservation after payment = %+v, %v", paid, err)
	}
}

func TestBuild_MissingSeedFile(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.CatalogSeedFile = filepath.Join(t.TempDir(), "missing.json")

	if _, err := Build(context.Background(), cfg, clock.Real()); err == nil {
		t.Fatal("expected error for missing seed file")
	}
}

func TestBuild_MongoWithoutClient(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.StorageDriver = config.DriverMongo

	_, err := Build(context.Background(), cfg, clock.Real())
	if err == nil || apperrors.IsAppError(err) {
		t.Fatalf("Build() error = %v, want plain configuration error", err)
	}
}
