package repository

import (
	"context"

	"rentcore/pkg/model"
)

const CollectionName = "Payment_records"

type PaymentRepository interface {
	Insert(ctx context.Context, record *model.PaymentRecord) error
	FindByID(ctx context.Context, id string) (*model.PaymentRecord, error)
	FindByExternalRef(ctx context.Context, externalRef string) (*model.PaymentRecord, error)
	FindPendingByReservation(ctx context.Context, reservationID string) (*model.PaymentRecord, error)
	ListByReservation(ctx context.Context, reservationID string) ([]*model.PaymentRecord, error)
	// UpdateIf writes status, external transaction id, raw_meta and updated_at
	// only while the stored status is still expected.
	UpdateIf(ctx context.Context, record *model.PaymentRecord, expected model.PaymentStatus) error
}
