package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	catalogrepository "rentcore/internal/catalog/repository"
	catalogservice "rentcore/internal/catalog/service"
	ledgerrepository "rentcore/internal/ledger/repository"
	ledgerservice "rentcore/internal/ledger/service"
	"rentcore/internal/reservations/repository"
	"rentcore/internal/reservations/service"
	"rentcore/internal/reservations/validator"
	"rentcore/pkg/clock"
	"rentcore/pkg/config"
	"rentcore/pkg/db/memory"
	"rentcore/pkg/lock"
	"rentcore/pkg/logger"
	"rentcore/pkg/model"
)

type mockCandidates struct {
	FindStalePendingFunc func(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Reservation, error)
	FindStaleUnpaidFunc  func(ctx context.Context, updatedBefore time.Time, limit int) ([]*model.Reservation, error)
}

func (m *mockCandidates) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Reservation, error) {
	if m.FindStalePendingFunc != nil {
		return m.FindStalePendingFunc(ctx, createdBefore, limit)
	}
	return nil, nil
}

func (m *mockCandidates) FindStaleUnpaid(ctx context.Context, updatedBefore time.Time, limit int) ([]*model.Reservation, error) {
	if m.FindStaleUnpaidFunc != nil {
		return m.FindStaleUnpaidFunc(ctx, updatedBefore, limit)
	}
	return nil, nil
}

type mockTransitions struct {
	ExpireIfStaleFunc       func(ctx context.Context, id string) (bool, error)
	CancelIfUnpaidStaleFunc func(ctx context.Context, id string) (bool, error)
}

func (m *mockTransitions) ExpireIfStale(ctx context.Context, id string) (bool, error) {
	if m.ExpireIfStaleFunc != nil {
		return m.ExpireIfStaleFunc(ctx, id)
	}
	return false, nil
}

func (m *mockTransitions) CancelIfUnpaidStale(ctx context.Context, id string) (bool, error) {
	if m.CancelIfUnpaidStaleFunc != nil {
		return m.CancelIfUnpaidStaleFunc(ctx, id)
	}
	return false, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Log:                    logger.Nop(),
		HoldTTL:                20 * time.Minute,
		PendingHoldTTL:         20 * time.Minute,
		UnpaidHoldTTL:          20 * time.Minute,
		SelfCancelAfter:        20 * time.Minute,
		SweepInterval:          time.Millisecond,
		SweepBatchSize:         50,
		CancelOnPaymentFailure: true,
	}
}

func ids(ids ...string) []*model.Reservation {
	out := make([]*model.Reservation, 0, len(ids))
	for _, id := range ids {
		out = append(out, &model.Reservation{ID: id})
	}
	return out
}

func TestSweepOnce_IsolatesItemFailures(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	var pendingCutoff, unpaidCutoff time.Time

	candidates := &mockCandidates{
		FindStalePendingFunc: func(_ context.Context, before time.Time, limit int) ([]*model.Reservation, error) {
			pendingCutoff = before
			if limit != 50 {
				t.Errorf("limit = %d, want 50", limit)
			}
			return ids("p1", "p2", "p3"), nil
		},
		FindStaleUnpaidFunc: func(_ context.Context, before time.Time, _ int) ([]*model.Reservation, error) {
			unpaidCutoff = before
			return ids("c1", "c2"), nil
		},
	}
	transitions := &mockTransitions{
		ExpireIfStaleFunc: func(_ context.Context, id string) (bool, error) {
			switch id {
			case "p2":
				return false, errors.New("write conflict")
			case "p3":
				return false, nil
			}
			return true, nil
		},
		CancelIfUnpaidStaleFunc: func(context.Context, string) (bool, error) { return true, nil },
	}

	report := New(candidates, transitions, clock.NewFake(now), testConfig()).SweepOnce(context.Background())

	want := Report{Expired: 1, Canceled: 2, Skipped: 1, Failed: 1}
	if report != want {
		t.Errorf("SweepOnce() = %+v, want %+v", report, want)
	}
	if !pendingCutoff.Equal(now.Add(-20*time.Minute)) || !unpaidCutoff.Equal(now.Add(-20*time.Minute)) {
		t.Errorf("cutoffs = %v / %v", pendingCutoff, unpaidCutoff)
	}
}

func TestSweepOnce_ListFailureStillRunsOtherPass(t *testing.T) {
	candidates := &mockCandidates{
		FindStalePendingFunc: func(context.Context, time.Time, int) ([]*model.Reservation, error) {
			return nil, errors.New("mongo down")
		},
		FindStaleUnpaidFunc: func(context.Context, time.Time, int) ([]*model.Reservation, error) {
			return ids("c1"), nil
		},
	}
	transitions := &mockTransitions{
		CancelIfUnpaidStaleFunc: func(context.Context, string) (bool, error) { return true, nil },
	}

	report := New(candidates, transitions, clock.Real(), testConfig()).SweepOnce(context.Background())
	if report.Failed != 1 || report.Canceled != 1 {
		t.Errorf("SweepOnce() = %+v", report)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sweeps := make(chan struct{}, 1)
	candidates := &mockCandidates{
		FindStalePendingFunc: func(context.Context, time.Time, int) ([]*model.Reservation, error) {
			select {
			case sweeps <- struct{}{}:
			default:
			}
			return nil, nil
		},
	}

	done := make(chan struct{})
	go func() {
		New(candidates, &mockTransitions{}, clock.Real(), testConfig()).Run(ctx)
		close(done)
	}()

	select {
	case <-sweeps:
	case <-time.After(2 * time.Second):
		t.Fatal("Run never swept")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

type world struct {
	reservations service.ReservationService
	ledger       ledgerservice.Ledger
	sweeper      *Sweeper
	clock        *clock.Fake
}

func newWorld(t *testing.T) *world {
	t.Helper()
	cfg := testConfig()
	clk := clock.NewFake(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	store := memory.NewStore()

	catalog := catalogservice.NewCatalogService(catalogrepository.NewMemoryCatalogRepository(store), cfg)
	rate, _ := model.MoneyFromString("100")
	err := catalog.Seed(context.Background(), &catalogservice.Seed{
		Resources:    []*model.Resource{{ID: "R1", PartnerID: "P1", DailyRate: rate, Currency: "UZS", Active: true}},
		PartnerUsers: []*model.PartnerUser{{ID: "pu", PartnerID: "P1", UserID: "partner", Active: true}},
	})
	if err != nil {
		t.Fatal(err)
	}

	repo := repository.NewMemoryReservationRepository(store)
	blocks := ledgerrepository.NewMemoryBlockRepository(store)
	ledger := ledgerservice.NewLedger(blocks, repo, store, clk, cfg)
	reservations := service.NewReservationService(repo, blocks, ledger, catalog, lock.NewMemoryLocker(), store,
		validator.NewReservationValidator(cfg.Log), clk, cfg)

	return &world{
		reservations: reservations,
		ledger:       ledger,
		sweeper:      New(repo, reservations, clk, cfg),
		clock:        clk,
	}
}

func (w *world) create(t *testing.T, requester string) *model.Reservation {
	t.Helper()
	from := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	r, err := w.reservations.Create(context.Background(), &model.CreateReservationRequest{
		ResourceID: "R1", RequesterID: requester, From: from, To: from.AddDate(0, 0, 2),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return r
}

func (w *world) blocks(t *testing.T) int {
	t.Helper()
	blocks, err := w.ledger.BlocksFor(context.Background(), "R1")
	if err != nil {
		t.Fatal(err)
	}
	return len(blocks)
}

// A pending reservation nobody confirms expires and never touches the ledger.
func TestScenario_PendingExpires(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	r := w.create(t, "alice")

	w.clock.Advance(21 * time.Minute)
	report := w.sweeper.SweepOnce(ctx)
	if report.Expired != 1 {
		t.Errorf("SweepOnce() = %+v, want one expiry", report)
	}

	got, _ := w.reservations.GetByID(ctx, r.ID)
	if got.Status != model.StatusExpired {
		t.Errorf("status = %s, want expired", got.Status)
	}
	if w.blocks(t) != 0 {
		t.Errorf("expiry must not create blocks")
	}

	if again := w.sweeper.SweepOnce(ctx); !again.Empty() {
		t.Errorf("second sweep = %+v, want nothing to do", again)
	}
}

// A confirmed reservation that never gets paid is canceled and its slot reopens.
func TestScenario_UnpaidConfirmedCanceled(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	r := w.create(t, "alice")
	if _, err := w.reservations.Confirm(ctx, r.ID, "partner"); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if w.blocks(t) != 1 {
		t.Fatalf("confirm should create a block")
	}

	w.clock.Advance(21 * time.Minute)
	report := w.sweeper.SweepOnce(ctx)
	if report.Canceled != 1 {
		t.Errorf("SweepOnce() = %+v, want one cancel", report)
	}

	got, _ := w.reservations.GetByID(ctx, r.ID)
	if got.Status != model.StatusCanceled {
		t.Errorf("status = %s, want canceled", got.Status)
	}
	if w.blocks(t) != 0 {
		t.Errorf("cancel should remove the block")
	}
	w.create(t, "bob")
}

func TestSweepOnce_LeavesPaidAndFreshAlone(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	r := w.create(t, "alice")
	if _, err := w.reservations.Confirm(ctx, r.ID, "partner"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.reservations.MarkPaid(ctx, r.ID, "pay-1"); err != nil {
		t.Fatal(err)
	}

	w.clock.Advance(time.Hour)
	if report := w.sweeper.SweepOnce(ctx); !report.Empty() {
		t.Errorf("SweepOnce() = %+v, want no work for a paid reservation", report)
	}
	if w.blocks(t) != 1 {
		t.Errorf("paid reservation lost its block")
	}
}
