package service

import (
	"context"
	"testing"
	"time"

	"rentcore/internal/catalog/repository"
	"rentcore/pkg/config"
	"rentcore/pkg/db/memory"
	apperrors "rentcore/pkg/errors"
	"rentcore/pkg/interval"
	"rentcore/pkg/logger"
	"rentcore/pkg/model"
)

func money(s string) model.Money {
	m, err := model.MoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

func newTestService(t *testing.T) (CatalogService, repository.CatalogRepository) {
	t.Helper()
	repo := repository.NewMemoryCatalogRepository(memory.NewStore())
	return NewCatalogService(repo, &config.Config{Log: logger.Nop()}), repo
}

func TestQuote(t *testing.T) {
	resource := &model.Resource{DailyRate: money("100"), WeekendRate: money("150")}
	// 2026-03-06 is a Friday.
	fri := time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		resource *model.Resource
		from, to time.Time
		want     string
	}{
		{"single weekday", resource, fri.AddDate(0, 0, -1), fri, "100"},
		{"fri to mon", resource, fri, fri.AddDate(0, 0, 3), "400"},
		{"same day bills one day", resource, fri, fri.Add(3 * time.Hour), "100"},
		{"time of day ignored", resource, fri.Add(-9 * time.Hour), fri.AddDate(0, 0, 1).Add(-9 * time.Hour), "100"},
		{"weekend falls back to daily", &model.Resource{DailyRate: money("80")}, fri, fri.AddDate(0, 0, 3), "240"},
		{"fractional rates", &model.Resource{DailyRate: money("99.99"), WeekendRate: money("120.50")}, fri, fri.AddDate(0, 0, 2), "220.49"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Quote(tt.resource, interval.New(tt.from, tt.to))
			if got.String() != tt.want {
				t.Errorf("Quote() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestActiveResource(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	_ = repo.UpsertResource(ctx, &model.Resource{ID: "car-1", PartnerID: "p1", Currency: "UZS", Active: true})
	_ = repo.UpsertResource(ctx, &model.Resource{ID: "car-2", PartnerID: "p1", Currency: "UZS", Active: false})

	if _, err := svc.ActiveResource(ctx, "car-1"); err != nil {
		t.Errorf("ActiveResource(car-1) error = %v", err)
	}
	if _, err := svc.ActiveResource(ctx, "car-2"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("inactive resource should be NotFound, got %v", err)
	}
	if _, err := svc.ActiveResource(ctx, "nope"); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("unknown resource should be NotFound, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	_ = repo.UpsertPartnerUser(ctx, &model.PartnerUser{ID: "pu1", PartnerID: "p1", UserID: "alice", Active: true})
	_ = repo.UpsertPartnerUser(ctx, &model.PartnerUser{ID: "pu2", PartnerID: "p1", UserID: "bob", Active: false})

	tests := []struct {
		name      string
		partnerID string
		userID    string
		wantErr   bool
	}{
		{"active member", "p1", "alice", false},
		{"inactive member", "p1", "bob", true},
		{"other partner", "p2", "alice", true},
		{"empty user", "p1", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Authorize(ctx, tt.partnerID, tt.userID)
			if tt.wantErr && !apperrors.HasCode(err, apperrors.CodeForbidden) {
				t.Errorf("Authorize() error = %v, want Forbidden", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Authorize() error = %v", err)
			}
		})
	}
}

func TestSeed_RejectsIncompleteRows(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Seed(context.Background(), &Seed{Resources: []*model.Resource{{ID: "car-1"}}})
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("Seed() error = %v, want InvalidInput", err)
	}
}

func TestSeed_NormalizesRows(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	seed := &Seed{Resources: []*model.Resource{{
		ID:        " car-1 ",
		PartnerID: "p-1",
		Name:      "  Chevrolet   Cobalt ",
		DailyRate: money("100"),
		Currency:  "uzs",
		Active:    true,
	}}}
	if err := svc.Seed(ctx, seed); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	got, err := repo.FindResource(ctx, "car-1")
	if err != nil {
		t.Fatalf("FindResource() error = %v", err)
	}
	if got.Name != "Chevrolet Cobalt" || got.Currency != "UZS" {
		t.Errorf("seeded resource = %+v, want normalized name and currency", got)
	}
}
