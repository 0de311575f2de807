// Package notifications publishes reservation transitions downstream. The
// reservation document itself is the outbox: notified_status and
// notified_marker trail status and payment_marker until the relay has
// published the change.
package notifications

import (
	"context"
	"time"

	"rentcore/pkg/config"
	"rentcore/pkg/kafka"
	"rentcore/pkg/model"
)

const (
	EventSource   = "rentcore.reservations"
	SchemaVersion = "1"
)

// Outbox is the slice of the reservation store the relay reads and acks.
type Outbox interface {
	FindUnnotified(ctx context.Context, limit int) ([]*model.Reservation, error)
	MarkNotified(ctx context.Context, id string, status model.ReservationStatus, marker model.PaymentMarker) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// ReservationEvent is the payload of every reservation.<status> message.
type ReservationEvent struct {
	ReservationID string                  `json:"reservation_id"`
	ResourceID    string                  `json:"resource_id"`
	PartnerID     string                  `json:"partner_id"`
	RequesterID   string                  `json:"requester_id"`
	Status        model.ReservationStatus `json:"status"`
	PaymentMarker model.PaymentMarker     `json:"payment_marker"`
	From          time.Time               `json:"from"`
	To            time.Time               `json:"to"`
	Quote         model.Money             `json:"quote"`
	Currency      string                  `json:"currency"`
	OccurredAt    time.Time               `json:"occurred_at"`
}

// EventPaid is announced when a confirmed reservation settles. Payment does
// not change status, so it gets its own kind.
const EventPaid = "paid"

// EventKind is what res's current state announces: its status, or paid.
func EventKind(res *model.Reservation) string {
	if res.Status == model.StatusConfirmed && res.IsPaid() {
		return EventPaid
	}
	return string(res.Status)
}

func EventType(kind string) string {
	return "reservation." + kind
}

type RelayReport struct {
	Published  int
	Superseded int
	Failed     int
}

type Relay struct {
	outbox    Outbox
	publisher Publisher
	cfg       *config.Config
}

func NewRelay(outbox Outbox, publisher Publisher, cfg *config.Config) *Relay {
	return &Relay{outbox: outbox, publisher: publisher, cfg: cfg}
}

// Run relays every NotifyInterval until ctx is canceled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.NotifyInterval)
	defer ticker.Stop()

	r.cfg.Log.Info("Notification relay started",
		"interval", r.cfg.NotifyInterval,
		"batch_size", r.cfg.NotifyBatchSize,
	)

	for {
		select {
		case <-ctx.Done():
			r.cfg.Log.Info("Notification relay stopped")
			return
		case <-ticker.C:
			report := r.RelayOnce(ctx)
			if report.Published > 0 || report.Failed > 0 {
				r.cfg.Log.Info("Notifications relayed",
					"published", report.Published,
					"superseded", report.Superseded,
					"failed", report.Failed,
				)
			}
		}
	}
}

// RelayOnce publishes one batch. A reservation is marked only after its event
// was accepted, so a crash in between republishes rather than drops it.
// Consumers dedupe on the event id, which is stable per reservation and kind.
func (r *Relay) RelayOnce(ctx context.Context) RelayReport {
	var report RelayReport

	pending, err := r.outbox.FindUnnotified(ctx, r.cfg.NotifyBatchSize)
	if err != nil {
		r.cfg.Log.Error("Failed to list unnotified reservations", "error", err)
		report.Failed++
		return report
	}

	for _, res := range pending {
		if ctx.Err() != nil {
			return report
		}

		msg, err := buildMessage(res)
		if err != nil {
			r.cfg.Log.Error("Failed to build reservation event", "reservation_id", res.ID, "error", err)
			report.Failed++
			continue
		}

		if err := r.publisher.Publish(ctx, msg); err != nil {
			r.cfg.Log.Warn("Failed to publish reservation event",
				"reservation_id", res.ID,
				"status", res.Status,
				"payment_marker", res.PaymentMarker,
				"error", err,
			)
			report.Failed++
			continue
		}

		marked, err := r.outbox.MarkNotified(ctx, res.ID, res.Status, res.PaymentMarker)
		switch {
		case err != nil:
			r.cfg.Log.Warn("Failed to mark reservation notified", "reservation_id", res.ID, "error", err)
			report.Failed++
		case marked:
			report.Published++
		default:
			// moved on since the read; the next pass publishes the newer state
			report.Superseded++
		}
	}

	return report
}

func buildMessage(res *model.Reservation) (kafka.Message, error) {
	kind := EventKind(res)
	return kafka.NewMessage().
		WithKey(res.ID).
		WithEventID(res.ID + ":" + kind).
		WithEventType(EventType(kind)).
		WithReservationID(res.ID).
		WithSource(EventSource).
		WithSchemaVersion(SchemaVersion).
		WithTimestamp(res.UpdatedAt).
		WithValue(ReservationEvent{
			ReservationID: res.ID,
			ResourceID:    res.ResourceID,
			PartnerID:     res.PartnerID,
			RequesterID:   res.RequesterID,
			Status:        res.Status,
			PaymentMarker: res.PaymentMarker,
			From:          res.From,
			To:            res.To,
			Quote:         res.Quote,
			Currency:      res.Currency,
			OccurredAt:    res.UpdatedAt,
		}).
		Build()
}
