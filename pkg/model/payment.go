package model

import "time"

type PaymentStatus string

const (
	PaymentNew     PaymentStatus = "new"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type PaymentProvider string

const (
	ProviderClick PaymentProvider = "click"
	ProviderPayme PaymentProvider = "payme"
)

// PaymentRecord tracks one attempt to pay for a reservation through a provider.
type PaymentRecord struct {
	ID                    string          `json:"id" bson:"_id"`
	ReservationID         string          `json:"reservation_id" bson:"reservation_id"`
	Provider              PaymentProvider `json:"provider" bson:"provider"`
	Amount                int64           `json:"amount" bson:"amount"`
	Currency              string          `json:"currency" bson:"currency"`
	ExternalRef           string          `json:"external_ref" bson:"external_ref"`
	ExternalTransactionID string          `json:"external_transaction_id,omitempty" bson:"external_transaction_id,omitempty"`
	Status                PaymentStatus   `json:"status" bson:"status"`
	RawMeta               map[string]any  `json:"raw_meta,omitempty" bson:"raw_meta,omitempty"`
	CreatedAt             time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" bson:"updated_at"`
}

func (p *PaymentRecord) SetMeta(key string, value any) {
	if p.RawMeta == nil {
		p.RawMeta = map[string]any{}
	}
	p.RawMeta[key] = value
}

type PaymentOutcome string

const (
	OutcomeSuccess PaymentOutcome = "success"
	OutcomeCancel  PaymentOutcome = "cancel"
)

// PaymentEvent is the provider-neutral form of a provider callback. MappingKey
// resolves the PaymentRecord: its id or its external reference.
type PaymentEvent struct {
	Provider              PaymentProvider `json:"provider" validate:"omitempty,oneof=click payme"`
	ExternalTransactionID string          `json:"external_transaction_id" validate:"required,max=128"`
	MappingKey            string          `json:"mapping_key" validate:"required,max=256"`
	Amount                int64           `json:"amount" validate:"gt=0"`
	Currency              string          `json:"currency" validate:"required,currency"`
	Outcome               PaymentOutcome  `json:"outcome" validate:"required,oneof=success cancel"`
}

type PaymentResult struct {
	PaymentID     string        `json:"payment_id"`
	ReservationID string        `json:"reservation_id"`
	Status        PaymentStatus `json:"status"`
	// Replayed is set when the event had already been applied.
	Replayed bool `json:"replayed"`
}
