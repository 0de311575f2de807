package repository

import (
	"context"

	paymentserrors "rentcore/internal/payments/errors"
	"rentcore/pkg/db/memory"
	"rentcore/pkg/model"
)

type memoryPaymentRepository struct {
	records *memory.Table[*model.PaymentRecord]
}

func NewMemoryPaymentRepository(store *memory.Store) PaymentRepository {
	return &memoryPaymentRepository{records: memory.NewTable(store, cloneRecord)}
}

func cloneRecord(p *model.PaymentRecord) *model.PaymentRecord {
	c := *p
	if p.RawMeta != nil {
		c.RawMeta = make(map[string]any, len(p.RawMeta))
		for k, v := range p.RawMeta {
			c.RawMeta[k] = v
		}
	}
	return &c
}

func (r *memoryPaymentRepository) Insert(ctx context.Context, record *model.PaymentRecord) error {
	ok := r.records.InsertUnique(ctx, record.ID, record, func(existing *model.PaymentRecord) bool {
		if record.ExternalRef != "" && existing.ExternalRef == record.ExternalRef {
			return true
		}
		return record.Status == model.PaymentPending &&
			existing.Status == model.PaymentPending &&
			existing.ReservationID == record.ReservationID
	})
	if !ok {
		return paymentserrors.ErrDuplicate
	}
	return nil
}

func (r *memoryPaymentRepository) FindByID(ctx context.Context, id string) (*model.PaymentRecord, error) {
	record, ok := r.records.Get(ctx, id)
	if !ok {
		return nil, paymentserrors.ErrNotFound
	}
	return record, nil
}

func (r *memoryPaymentRepository) FindByExternalRef(ctx context.Context, externalRef string) (*model.PaymentRecord, error) {
	return r.first(ctx, func(p *model.PaymentRecord) bool { return p.ExternalRef == externalRef })
}

func (r *memoryPaymentRepository) FindPendingByReservation(ctx context.Context, reservationID string) (*model.PaymentRecord, error) {
	return r.first(ctx, func(p *model.PaymentRecord) bool {
		return p.ReservationID == reservationID && p.Status == model.PaymentPending
	})
}

func (r *memoryPaymentRepository) ListByReservation(ctx context.Context, reservationID string) ([]*model.PaymentRecord, error) {
	return r.records.Select(ctx, func(p *model.PaymentRecord) bool {
		return p.ReservationID == reservationID
	}, func(a, b *model.PaymentRecord) bool { return a.CreatedAt.After(b.CreatedAt) }), nil
}

func (r *memoryPaymentRepository) UpdateIf(ctx context.Context, record *model.PaymentRecord, expected model.PaymentStatus) error {
	ok := r.records.Update(ctx, record.ID, func(current *model.PaymentRecord) (*model.PaymentRecord, bool) {
		if current.Status != expected {
			return nil, false
		}
		current.Status = record.Status
		current.ExternalTransactionID = record.ExternalTransactionID
		current.RawMeta = record.RawMeta
		current.UpdatedAt = record.UpdatedAt
		return current, true
	})
	if !ok {
		return paymentserrors.ErrStaleWrite
	}
	return nil
}

func (r *memoryPaymentRepository) first(ctx context.Context, match func(*model.PaymentRecord) bool) (*model.PaymentRecord, error) {
	rows := r.records.Select(ctx, match, nil)
	if len(rows) == 0 {
		return nil, paymentserrors.ErrNotFound
	}
	return rows[0], nil
}
