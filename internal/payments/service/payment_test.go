package service

import (
	"context"
	"sync"
	"testing"
	"time"

	catalogrepository "rentcore/internal/catalog/repository"
	catalogservice "rentcore/internal/catalog/service"
	ledgerrepository "rentcore/internal/ledger/repository"
	ledgerservice "rentcore/internal/ledger/service"
	"rentcore/internal/payments/repository"
	"rentcore/internal/payments/validator"
	reservationrepository "rentcore/internal/reservations/repository"
	reservationservice "rentcore/internal/reservations/service"
	reservationvalidator "rentcore/internal/reservations/validator"
	"rentcore/pkg/clock"
	"rentcore/pkg/config"
	"rentcore/pkg/db/memory"
	apperrors "rentcore/pkg/errors"
	"rentcore/pkg/lock"
	"rentcore/pkg/logger"
	"rentcore/pkg/model"
)

var pickup = time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)

type harness struct {
	payments     PaymentService
	reservations reservationservice.ReservationService
	ledger       ledgerservice.Ledger
	repo         repository.PaymentRepository
	clock        *clock.Fake
	cfg          *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		Log:                    logger.Nop(),
		HoldTTL:                20 * time.Minute,
		PendingHoldTTL:         20 * time.Minute,
		UnpaidHoldTTL:          20 * time.Minute,
		SelfCancelAfter:        20 * time.Minute,
		CancelOnPaymentFailure: true,
	}
	clk := clock.NewFake(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	locker := lock.NewMemoryLocker()

	catalog := catalogservice.NewCatalogService(catalogrepository.NewMemoryCatalogRepository(store), cfg)
	daily, _ := model.MoneyFromString("100000.50")
	err := catalog.Seed(context.Background(), &catalogservice.Seed{
		Resources:    []*model.Resource{{ID: "R1", PartnerID: "P1", DailyRate: daily, Currency: "UZS", Active: true}},
		PartnerUsers: []*model.PartnerUser{{ID: "pu", PartnerID: "P1", UserID: "partner", Active: true}},
	})
	if err != nil {
		t.Fatal(err)
	}

	reservationRepo := reservationrepository.NewMemoryReservationRepository(store)
	blocks := ledgerrepository.NewMemoryBlockRepository(store)
	ledger := ledgerservice.NewLedger(blocks, reservationRepo, store, clk, cfg)
	reservations := reservationservice.NewReservationService(reservationRepo, blocks, ledger, catalog, locker, store,
		reservationvalidator.NewReservationValidator(cfg.Log), clk, cfg)

	repo := repository.NewMemoryPaymentRepository(store)
	payments := NewPaymentService(repo, reservations, locker, store, validator.NewPaymentValidator(cfg.Log), clk, cfg)

	return &harness{payments: payments, reservations: reservations, ledger: ledger, repo: repo, clock: clk, cfg: cfg}
}

func (h *harness) confirmed(t *testing.T) *model.Reservation {
	t.Helper()
	ctx := context.Background()
	r, err := h.reservations.Create(ctx, &model.CreateReservationRequest{
		ResourceID: "R1", RequesterID: "alice", From: pickup, To: pickup.AddDate(0, 0, 2),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	r, err = h.reservations.Confirm(ctx, r.ID, "partner")
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	return r
}

func (h *harness) initiate(t *testing.T, reservationID string) *model.PaymentRecord {
	t.Helper()
	record, err := h.payments.Initiate(context.Background(), &model.InitiatePaymentRequest{
		ReservationID: reservationID,
		Provider:      model.ProviderClick,
	})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	return record
}

func event(record *model.PaymentRecord, outcome model.PaymentOutcome) *model.PaymentEvent {
	return &model.PaymentEvent{
		Provider:              record.Provider,
		ExternalTransactionID: "click-tx-1",
		MappingKey:            record.ExternalRef,
		Amount:                record.Amount,
		Currency:              record.Currency,
		Outcome:               outcome,
	}
}

func TestInitiate(t *testing.T) {
	h := newHarness(t)
	r := h.confirmed(t)
	h.clock.Advance(time.Minute)

	record := h.initiate(t, r.ID)
	if record.Amount != 20000100 {
		t.Errorf("Amount = %d, want 20000100 minor units", record.Amount)
	}
	if record.Status != model.PaymentPending || record.Currency != "UZS" {
		t.Errorf("record = %s %s, want pending UZS", record.Status, record.Currency)
	}
	wantRef := "click-" + record.ID + "-" + "1735718460"
	if record.ExternalRef != wantRef {
		t.Errorf("ExternalRef = %s, want %s", record.ExternalRef, wantRef)
	}
}

func TestInitiate_SupersedesPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.confirmed(t)

	first := h.initiate(t, r.ID)
	second := h.initiate(t, r.ID)

	old, err := h.payments.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if old.Status != model.PaymentFailed || old.RawMeta["superseded_by"] != second.ID {
		t.Errorf("first record = %s %v, want failed and superseded by %s", old.Status, old.RawMeta, second.ID)
	}

	records, _ := h.payments.ListForReservation(ctx, r.ID)
	pending := 0
	for _, rec := range records {
		if rec.Status == model.PaymentPending {
			pending++
		}
	}
	if len(records) != 2 || pending != 1 {
		t.Errorf("got %d records with %d pending, want 2 with 1", len(records), pending)
	}
}

func TestInitiate_ConcurrentLeavesOnePending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.confirmed(t)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.payments.Initiate(ctx, &model.InitiatePaymentRequest{ReservationID: r.ID, Provider: model.ProviderPayme})
		}()
	}
	wg.Wait()

	if _, err := h.repo.FindPendingByReservation(ctx, r.ID); err != nil {
		t.Fatalf("FindPendingByReservation() error = %v", err)
	}
	records, _ := h.payments.ListForReservation(ctx, r.ID)
	pending := 0
	for _, rec := range records {
		if rec.Status == model.PaymentPending {
			pending++
		}
	}
	if pending != 1 {
		t.Errorf("pending records = %d, want 1", pending)
	}
}

func TestInitiate_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pending, err := h.reservations.Create(ctx, &model.CreateReservationRequest{
		ResourceID: "R1", RequesterID: "bob", From: pickup.AddDate(0, 1, 0), To: pickup.AddDate(0, 1, 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	confirmed := h.confirmed(t)

	tests := []struct {
		name     string
		req      *model.InitiatePaymentRequest
		wantCode string
	}{
		{"unknown provider", &model.InitiatePaymentRequest{ReservationID: confirmed.ID, Provider: "cash"}, apperrors.CodeValidation},
		{"unknown reservation", &model.InitiatePaymentRequest{ReservationID: "nope", Provider: model.ProviderClick}, apperrors.CodeNotFound},
		{"pending reservation", &model.InitiatePaymentRequest{ReservationID: pending.ID, Provider: model.ProviderClick}, apperrors.CodeInvalidState},
		{"wrong currency", &model.InitiatePaymentRequest{ReservationID: confirmed.ID, Provider: model.ProviderClick, Currency: "USD"}, apperrors.CodeInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.payments.Initiate(ctx, tt.req); !apperrors.HasCode(err, tt.wantCode) {
				t.Errorf("Initiate() error = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

// Confirmed, paid, then the same provider callback arrives again.
func TestScenario_PaymentAppliedOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.confirmed(t)
	record := h.initiate(t, r.ID)

	first, err := h.payments.Apply(ctx, event(record, model.OutcomeSuccess))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if first.Replayed || first.Status != model.PaymentPaid {
		t.Errorf("first Apply() = %+v", first)
	}

	paid, _ := h.reservations.GetByID(ctx, r.ID)
	if paid.Status != model.StatusConfirmed || !paid.IsPaid() {
		t.Errorf("reservation = %s/%s, want confirmed/paid", paid.Status, paid.PaymentMarker)
	}
	blocksBefore, _ := h.ledger.BlocksFor(ctx, "R1")

	again, err := h.payments.Apply(ctx, event(record, model.OutcomeSuccess))
	if err != nil {
		t.Fatalf("redelivered Apply() error = %v", err)
	}
	if !again.Replayed || again.PaymentID != first.PaymentID {
		t.Errorf("redelivered Apply() = %+v, want replay of %s", again, first.PaymentID)
	}

	blocksAfter, _ := h.ledger.BlocksFor(ctx, "R1")
	if len(blocksBefore) != 1 || len(blocksAfter) != 1 || blocksBefore[0].ID != blocksAfter[0].ID {
		t.Errorf("blocks changed on replay: %d -> %d", len(blocksBefore), len(blocksAfter))
	}
	stored, _ := h.payments.GetByID(ctx, record.ID)
	if stored.ExternalTransactionID != "click-tx-1" {
		t.Errorf("ExternalTransactionID = %q", stored.ExternalTransactionID)
	}
}

func TestApply_ResolvesByRecordID(t *testing.T) {
	h := newHarness(t)
	r := h.confirmed(t)
	record := h.initiate(t, r.ID)

	ev := event(record, model.OutcomeSuccess)
	ev.MappingKey = record.ID
	if _, err := h.payments.Apply(context.Background(), ev); err != nil {
		t.Errorf("Apply() by id error = %v", err)
	}
}

func TestApply_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.confirmed(t)
	record := h.initiate(t, r.ID)

	unknown := event(record, model.OutcomeSuccess)
	unknown.MappingKey = "click-unknown"
	if _, err := h.payments.Apply(ctx, unknown); !apperrors.HasCode(err, apperrors.CodeAccountNotFound) {
		t.Errorf("unknown mapping key error = %v, want AccountNotFound", err)
	}

	short := event(record, model.OutcomeSuccess)
	short.Amount--
	if _, err := h.payments.Apply(ctx, short); !apperrors.HasCode(err, apperrors.CodeInvalidAmount) {
		t.Errorf("amount mismatch error = %v, want InvalidAmount", err)
	}

	foreign := event(record, model.OutcomeSuccess)
	foreign.Currency = "USD"
	if _, err := h.payments.Apply(ctx, foreign); !apperrors.HasCode(err, apperrors.CodeInvalidAmount) {
		t.Errorf("currency mismatch error = %v, want InvalidAmount", err)
	}

	stored, _ := h.payments.GetByID(ctx, record.ID)
	reservation, _ := h.reservations.GetByID(ctx, r.ID)
	if stored.Status != model.PaymentPending || reservation.IsPaid() {
		t.Errorf("rejected events mutated state: payment %s, reservation %s", stored.Status, reservation.PaymentMarker)
	}
}

func TestApply_CancelOutcome(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.confirmed(t)
	record := h.initiate(t, r.ID)

	result, err := h.payments.Apply(ctx, event(record, model.OutcomeCancel))
	if err != nil {
		t.Fatalf("Apply(cancel) error = %v", err)
	}
	if result.Status != model.PaymentFailed {
		t.Errorf("payment status = %s, want failed", result.Status)
	}

	reservation, _ := h.reservations.GetByID(ctx, r.ID)
	if reservation.Status != model.StatusCanceled {
		t.Errorf("reservation status = %s, want canceled", reservation.Status)
	}
	blocks, _ := h.ledger.BlocksFor(ctx, "R1")
	if len(blocks) != 0 {
		t.Errorf("canceled reservation kept %d blocks", len(blocks))
	}

	again, err := h.payments.Apply(ctx, event(record, model.OutcomeCancel))
	if err != nil || !again.Replayed {
		t.Errorf("redelivered cancel = %+v, %v; want replay", again, err)
	}
}

func TestApply_CancelAfterPaidIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.confirmed(t)
	record := h.initiate(t, r.ID)

	if _, err := h.payments.Apply(ctx, event(record, model.OutcomeSuccess)); err != nil {
		t.Fatal(err)
	}
	result, err := h.payments.Apply(ctx, event(record, model.OutcomeCancel))
	if err != nil || !result.Replayed || result.Status != model.PaymentPaid {
		t.Errorf("cancel after paid = %+v, %v", result, err)
	}
	reservation, _ := h.reservations.GetByID(ctx, r.ID)
	if !reservation.IsPaid() || reservation.Status != model.StatusConfirmed {
		t.Errorf("reservation = %s/%s, want confirmed/paid", reservation.Status, reservation.PaymentMarker)
	}
}

func TestApply_SuccessOnCanceledReservation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.confirmed(t)
	record := h.initiate(t, r.ID)

	h.clock.Advance(21 * time.Minute)
	if _, err := h.reservations.CancelIfUnpaidStale(ctx, r.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := h.payments.Apply(ctx, event(record, model.OutcomeSuccess)); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Errorf("Apply() on canceled reservation error = %v, want InvalidState", err)
	}
	stored, _ := h.payments.GetByID(ctx, record.ID)
	if stored.Status != model.PaymentPending {
		t.Errorf("payment status = %s, want untouched pending", stored.Status)
	}
}

func TestApply_SuccessOnSupersededRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.confirmed(t)
	first := h.initiate(t, r.ID)
	h.initiate(t, r.ID)

	result, err := h.payments.Apply(ctx, event(first, model.OutcomeSuccess))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.Status != model.PaymentPaid {
		t.Errorf("superseded record status = %s, want paid", result.Status)
	}
	reservation, _ := h.reservations.GetByID(ctx, r.ID)
	if !reservation.IsPaid() {
		t.Errorf("reservation should be paid")
	}

	records, _ := h.payments.ListForReservation(ctx, r.ID)
	for _, rec := range records {
		if rec.ID != first.ID && rec.Status != model.PaymentFailed {
			t.Errorf("record %s left %s after another record paid", rec.ID, rec.Status)
		}
	}
}

func TestApply_SuccessAfterAnotherRecordPaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.confirmed(t)
	first := h.initiate(t, r.ID)
	second := h.initiate(t, r.ID)

	if _, err := h.payments.Apply(ctx, event(second, model.OutcomeSuccess)); err != nil {
		t.Fatalf("Apply(second) error = %v", err)
	}

	late := event(first, model.OutcomeSuccess)
	late.ExternalTransactionID = "click-tx-2"
	if _, err := h.payments.Apply(ctx, late); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Errorf("Apply(first) error = %v, want InvalidState", err)
	}

	stored, _ := h.payments.GetByID(ctx, first.ID)
	if stored.Status != model.PaymentFailed || stored.ExternalTransactionID != "" {
		t.Errorf("superseded record = %s/%q, want untouched failed", stored.Status, stored.ExternalTransactionID)
	}

	records, _ := h.payments.ListForReservation(ctx, r.ID)
	paid := 0
	for _, rec := range records {
		if rec.Status == model.PaymentPaid {
			paid++
		}
	}
	if paid != 1 {
		t.Errorf("paid records = %d, want 1", paid)
	}
}

func TestInitiate_UnpaidHoldWindow(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		wantCode string
	}{
		{"inside window", 19 * time.Minute, ""},
		{"exactly at ttl", 20 * time.Minute, apperrors.CodeTTLExpired},
		{"after ttl", 45 * time.Minute, apperrors.CodeTTLExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			r := h.confirmed(t)
			h.clock.Advance(tt.elapsed)

			_, err := h.payments.Initiate(ctx, &model.InitiatePaymentRequest{ReservationID: r.ID, Provider: model.ProviderPayme})
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Initiate() error = %v", err)
				}
				return
			}
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Fatalf("Initiate() error = %v, want %s", err, tt.wantCode)
			}
			records, _ := h.payments.ListForReservation(ctx, r.ID)
			if len(records) != 0 {
				t.Errorf("expired hold got %d payment records", len(records))
			}
		})
	}
}
