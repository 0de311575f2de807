package repository

import (
	"context"
	"time"

	reservationserrors "rentcore/internal/reservations/errors"
	"rentcore/pkg/db/memory"
	"rentcore/pkg/interval"
	"rentcore/pkg/model"
)

type memoryReservationRepository struct {
	reservations *memory.Table[*model.Reservation]
}

func NewMemoryReservationRepository(store *memory.Store) ReservationRepository {
	return &memoryReservationRepository{
		reservations: memory.NewTable(store, func(r *model.Reservation) *model.Reservation { c := *r; return &c }),
	}
}

func (r *memoryReservationRepository) Insert(ctx context.Context, reservation *model.Reservation) error {
	if !r.reservations.Insert(ctx, reservation.ID, reservation) {
		return reservationserrors.ErrAlreadyExists
	}
	return nil
}

func (r *memoryReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	reservation, ok := r.reservations.Get(ctx, id)
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	return reservation, nil
}

func (r *memoryReservationRepository) UpdateIf(ctx context.Context, reservation *model.Reservation, expected Version) error {
	ok := r.reservations.Update(ctx, reservation.ID, func(current *model.Reservation) (*model.Reservation, bool) {
		if current.Status != expected.Status || !current.UpdatedAt.Equal(expected.UpdatedAt) {
			return nil, false
		}
		current.Status = reservation.Status
		current.PaymentMarker = reservation.PaymentMarker
		current.UpdatedAt = reservation.UpdatedAt
		return current, true
	})
	if !ok {
		return reservationserrors.ErrStaleWrite
	}
	return nil
}

func (r *memoryReservationRepository) List(ctx context.Context, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, error) {
	rows := r.reservations.Select(ctx, matches(filter), newestFirst)
	return memory.Page(rows, limit, offset), nil
}

func (r *memoryReservationRepository) Count(ctx context.Context, filter model.ReservationFilter) (int64, error) {
	return int64(len(r.reservations.Select(ctx, matches(filter), nil))), nil
}

func (r *memoryReservationRepository) Committed(ctx context.Context, resourceID string) ([]*model.Reservation, error) {
	return r.reservations.Select(ctx, func(res *model.Reservation) bool {
		return res.ResourceID == resourceID && res.Status.IsCommitted()
	}, func(a, b *model.Reservation) bool { return a.From.Before(b.From) }), nil
}

func (r *memoryReservationRepository) OverlappingHolds(ctx context.Context, resourceID string, window interval.Interval, freshSince time.Time) ([]interval.Occupant, error) {
	rows := r.reservations.Select(ctx, func(res *model.Reservation) bool {
		return res.ResourceID == resourceID && holds(res, freshSince) && interval.Overlaps(res.Interval(), window)
	}, nil)

	occupants := make([]interval.Occupant, 0, len(rows))
	for _, res := range rows {
		occupants = append(occupants, occupantOf(res))
	}
	return occupants, nil
}

func (r *memoryReservationRepository) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Reservation, error) {
	rows := r.reservations.Select(ctx, func(res *model.Reservation) bool {
		return res.Status == model.StatusPending && !res.CreatedAt.After(createdBefore)
	}, func(a, b *model.Reservation) bool { return a.CreatedAt.Before(b.CreatedAt) })
	return memory.Page(rows, limit, 0), nil
}

func (r *memoryReservationRepository) FindStaleUnpaid(ctx context.Context, updatedBefore time.Time, limit int) ([]*model.Reservation, error) {
	rows := r.reservations.Select(ctx, func(res *model.Reservation) bool {
		return res.Status == model.StatusConfirmed && res.PaymentMarker == model.MarkerUnpaid && !res.UpdatedAt.After(updatedBefore)
	}, oldestUpdateFirst)
	return memory.Page(rows, limit, 0), nil
}

func (r *memoryReservationRepository) FindUnnotified(ctx context.Context, limit int) ([]*model.Reservation, error) {
	rows := r.reservations.Select(ctx, func(res *model.Reservation) bool {
		return res.Unnotified()
	}, oldestUpdateFirst)
	return memory.Page(rows, limit, 0), nil
}

func (r *memoryReservationRepository) MarkNotified(ctx context.Context, id string, status model.ReservationStatus, marker model.PaymentMarker) (bool, error) {
	return r.reservations.Update(ctx, id, func(current *model.Reservation) (*model.Reservation, bool) {
		if current.Status != status || current.PaymentMarker != marker || !current.Unnotified() {
			return nil, false
		}
		current.NotifiedStatus = status
		current.NotifiedMarker = marker
		return current, true
	}), nil
}

func matches(f model.ReservationFilter) func(*model.Reservation) bool {
	return func(res *model.Reservation) bool {
		if f.ResourceID != "" && res.ResourceID != f.ResourceID {
			return false
		}
		if f.RequesterID != "" && res.RequesterID != f.RequesterID {
			return false
		}
		if f.Status != "" && res.Status != f.Status {
			return false
		}
		return true
	}
}

func newestFirst(a, b *model.Reservation) bool {
	return a.CreatedAt.After(b.CreatedAt)
}

func oldestUpdateFirst(a, b *model.Reservation) bool {
	return a.UpdatedAt.Before(b.UpdatedAt)
}
