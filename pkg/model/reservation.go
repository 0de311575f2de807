package model

import (
	"fmt"
	"time"

	"rentcore/pkg/interval"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusRejected  ReservationStatus = "rejected"
	StatusExpired   ReservationStatus = "expired"
	StatusCanceled  ReservationStatus = "canceled"
	StatusIssued    ReservationStatus = "issued"
	StatusCompleted ReservationStatus = "completed"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:   {StatusConfirmed, StatusRejected, StatusExpired, StatusCanceled},
	StatusConfirmed: {StatusCanceled, StatusIssued},
	StatusIssued:    {StatusCompleted},
}

func ParseReservationStatus(s string) (ReservationStatus, error) {
	status := ReservationStatus(s)
	switch status {
	case StatusPending, StatusConfirmed, StatusRejected, StatusExpired,
		StatusCanceled, StatusIssued, StatusCompleted:
		return status, nil
	}
	return "", fmt.Errorf("unknown reservation status %q", s)
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsCommitted is true for statuses that own an occupancy block.
func (s ReservationStatus) IsCommitted() bool {
	return s == StatusConfirmed || s == StatusIssued || s == StatusCompleted
}

func (s ReservationStatus) IsTerminal() bool {
	return len(reservationTransitions[s]) == 0
}

type PaymentMarker string

const (
	MarkerUnpaid PaymentMarker = "unpaid"
	MarkerPaid   PaymentMarker = "paid"
)

type Reservation struct {
	ID            string            `json:"id" bson:"_id"`
	ResourceID    string            `json:"resource_id" bson:"resource_id" validate:"required"`
	PartnerID     string            `json:"partner_id" bson:"partner_id" validate:"required"`
	RequesterID   string            `json:"requester_id" bson:"requester_id" validate:"required"`
	From          time.Time         `json:"from" bson:"from" validate:"required"`
	To            time.Time         `json:"to" bson:"to" validate:"required,gtfield=From"`
	Quote         Money             `json:"quote" bson:"quote"`
	Currency      string            `json:"currency" bson:"currency" validate:"required,len=3"`
	Status        ReservationStatus `json:"status" bson:"status" validate:"required"`
	PaymentMarker PaymentMarker     `json:"payment_marker" bson:"payment_marker" validate:"required,oneof=unpaid paid"`
	// NotifiedStatus and NotifiedMarker are the state last published to
	// downstream consumers.
	NotifiedStatus ReservationStatus `json:"-" bson:"notified_status"`
	NotifiedMarker PaymentMarker     `json:"-" bson:"notified_marker"`
	CreatedAt      time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" bson:"updated_at"`
}

func (r *Reservation) Interval() interval.Interval {
	return interval.Interval{From: r.From, To: r.To}
}

func (r *Reservation) IsPaid() bool {
	return r.PaymentMarker == MarkerPaid
}

// Unnotified reports whether the status or payment marker moved since the
// last published event.
func (r *Reservation) Unnotified() bool {
	return r.Status != r.NotifiedStatus || r.PaymentMarker != r.NotifiedMarker
}

// Transition moves the reservation to next and stamps updated_at. It does not
// check the transition table; callers do that first so they can pick the error.
func (r *Reservation) Transition(next ReservationStatus, now time.Time) {
	r.Status = next
	r.UpdatedAt = now
}

// ReservationFilter narrows reservation listings. Empty fields match everything.
type ReservationFilter struct {
	ResourceID  string
	RequesterID string
	Status      ReservationStatus
}
