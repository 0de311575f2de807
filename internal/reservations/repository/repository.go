package repository

import (
	"context"
	"time"

	"rentcore/pkg/interval"
	"rentcore/pkg/model"
)

const CollectionName = "Reservations"

// Version identifies the stored state a conditional update expects to replace.
type Version struct {
	Status    model.ReservationStatus
	UpdatedAt time.Time
}

func VersionOf(r *model.Reservation) Version {
	return Version{Status: r.Status, UpdatedAt: r.UpdatedAt}
}

type ReservationRepository interface {
	Insert(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	// UpdateIf writes status, payment marker and updated_at of reservation when
	// the stored document still matches expected. Otherwise ErrStaleWrite.
	UpdateIf(ctx context.Context, reservation *model.Reservation, expected Version) error
	List(ctx context.Context, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, error)
	Count(ctx context.Context, filter model.ReservationFilter) (int64, error)

	Committed(ctx context.Context, resourceID string) ([]*model.Reservation, error)
	OverlappingHolds(ctx context.Context, resourceID string, window interval.Interval, freshSince time.Time) ([]interval.Occupant, error)

	FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Reservation, error)
	FindStaleUnpaid(ctx context.Context, updatedBefore time.Time, limit int) ([]*model.Reservation, error)

	FindUnnotified(ctx context.Context, limit int) ([]*model.Reservation, error)
	// MarkNotified records status and marker as published unless the
	// reservation has moved on since they were read.
	MarkNotified(ctx context.Context, id string, status model.ReservationStatus, marker model.PaymentMarker) (bool, error)
}

var committedStatuses = []model.ReservationStatus{
	model.StatusConfirmed,
	model.StatusIssued,
	model.StatusCompleted,
}

// holds reports whether r provisionally occupies its interval at freshSince.
func holds(r *model.Reservation, freshSince time.Time) bool {
	if r.Status.IsCommitted() {
		return true
	}
	return r.Status == model.StatusPending && r.CreatedAt.After(freshSince)
}

func occupantOf(r *model.Reservation) interval.Occupant {
	return interval.Occupant{ID: r.ID, OwnerID: r.ID, Interval: r.Interval()}
}
