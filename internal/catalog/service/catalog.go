package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	catalogerrors "rentcore/internal/catalog/errors"
	"rentcore/internal/catalog/repository"
	"rentcore/pkg/config"
	apperrors "rentcore/pkg/errors"
	"rentcore/pkg/interval"
	"rentcore/pkg/model"
	"rentcore/pkg/sanitizer"

	"github.com/shopspring/decimal"
)

type CatalogService interface {
	// ActiveResource returns the resource or NotFound when it is unknown or inactive.
	ActiveResource(ctx context.Context, id string) (*model.Resource, error)
	// Authorize returns Forbidden unless userID is an active user of the partner.
	Authorize(ctx context.Context, partnerID, userID string) error
	Quote(resource *model.Resource, window interval.Interval) model.Money
	Seed(ctx context.Context, seed *Seed) error
}

type catalogService struct {
	repo repository.CatalogRepository
	cfg  *config.Config
}

func NewCatalogService(repo repository.CatalogRepository, cfg *config.Config) CatalogService {
	return &catalogService{repo: repo, cfg: cfg}
}

func (s *catalogService) ActiveResource(ctx context.Context, id string) (*model.Resource, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	resource, err := s.repo.FindResource(ctx, id)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrResourceNotFound) {
			return nil, apperrors.NotFoundWithID("Resource", id)
		}
		return nil, apperrors.Internal("Failed to retrieve resource", err)
	}
	if !resource.Active {
		return nil, apperrors.NotFoundWithID("Resource", id)
	}
	return resource, nil
}

func (s *catalogService) Authorize(ctx context.Context, partnerID, userID string) error {
	if userID == "" {
		return apperrors.Forbidden("A partner user is required for this action")
	}

	_, err := s.repo.FindActivePartnerUser(ctx, partnerID, userID)
	if err != nil {
		if errors.Is(err, catalogerrors.ErrPartnerUserNotFound) {
			s.cfg.Log.Warn("Partner authorization denied", "partner_id", partnerID, "user_id", userID)
			return apperrors.Forbidden("User is not an active member of the resource's partner")
		}
		return apperrors.Internal("Failed to check partner user", err)
	}
	return nil
}

// Quote charges one rate per calendar day touched by [From, To), counting
// From's day and excluding To's. Saturday and Sunday use the weekend rate,
// which falls back to the daily rate when unset. Same-day rentals bill one day.
func (s *catalogService) Quote(resource *model.Resource, window interval.Interval) model.Money {
	return Quote(resource, window)
}

func Quote(resource *model.Resource, window interval.Interval) model.Money {
	weekday := resource.DailyRate.Decimal
	weekend := resource.WeekendRate.Decimal
	if weekend.IsZero() {
		weekend = weekday
	}

	day := truncateToDay(window.From)
	last := truncateToDay(window.To)
	if !day.Before(last) {
		last = day.AddDate(0, 0, 1)
	}

	total := decimal.Zero
	for ; day.Before(last); day = day.AddDate(0, 0, 1) {
		switch day.Weekday() {
		case time.Saturday, time.Sunday:
			total = total.Add(weekend)
		default:
			total = total.Add(weekday)
		}
	}
	return model.NewMoney(total)
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Seed is the catalog fixture format used by the memory driver and cmd/migrate.
type Seed struct {
	Resources    []*model.Resource    `json:"resources"`
	PartnerUsers []*model.PartnerUser `json:"partner_users"`
}

func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse catalog seed %s: %w", path, err)
	}
	return &seed, nil
}

func (s *catalogService) Seed(ctx context.Context, seed *Seed) error {
	now := time.Now().UTC()
	for _, r := range seed.Resources {
		r.ID = sanitizer.NormalizeID(r.ID)
		r.PartnerID = sanitizer.NormalizeID(r.PartnerID)
		r.Name = sanitizer.TrimAndNormalize(r.Name)
		r.Currency = sanitizer.NormalizeCurrency(r.Currency)
		if r.ID == "" || r.PartnerID == "" || r.Currency == "" {
			return apperrors.InvalidInput(fmt.Sprintf("seed resource %q needs id, partner_id and currency", r.ID))
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if err := s.repo.UpsertResource(ctx, r); err != nil {
			return apperrors.Internal("Failed to seed resource", err)
		}
	}
	for _, u := range seed.PartnerUsers {
		u.PartnerID = sanitizer.NormalizeID(u.PartnerID)
		u.UserID = sanitizer.NormalizeID(u.UserID)
		if u.ID == "" || u.PartnerID == "" || u.UserID == "" {
			return apperrors.InvalidInput(fmt.Sprintf("seed partner user %q needs id, partner_id and user_id", u.ID))
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		if err := s.repo.UpsertPartnerUser(ctx, u); err != nil {
			return apperrors.Internal("Failed to seed partner user", err)
		}
	}

	s.cfg.Log.Info("Catalog seeded",
		"resources", len(seed.Resources),
		"partner_users", len(seed.PartnerUsers),
	)
	return nil
}
