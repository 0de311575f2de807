package model

import "time"

type CreateReservationRequest struct {
	ResourceID  string    `json:"resource_id" validate:"required,max=64"`
	RequesterID string    `json:"requester_id" validate:"required,max=64"`
	From        time.Time `json:"from" validate:"required"`
	To          time.Time `json:"to" validate:"required"`
}

// PartnerActionRequest carries the partner user behind confirm, reject, issue and complete.
type PartnerActionRequest struct {
	ConfirmerID string `json:"confirmer_id" validate:"required,max=64"`
}

type CancelRequest struct {
	RequesterID string `json:"requester_id" validate:"required,max=64"`
}

type ManualBlockRequest struct {
	PartnerUserID string    `json:"partner_user_id" validate:"required,max=64"`
	From          time.Time `json:"from" validate:"required"`
	To            time.Time `json:"to" validate:"required"`
}

type InitiatePaymentRequest struct {
	ReservationID string          `json:"reservation_id" validate:"required,max=64"`
	Provider      PaymentProvider `json:"provider" validate:"required,oneof=click payme"`
	// Currency defaults to the reservation's currency.
	Currency string `json:"currency,omitempty" validate:"omitempty,currency"`
}

type Availability struct {
	ResourceID string    `json:"resource_id"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Available  bool      `json:"available"`
}
