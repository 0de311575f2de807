// Package consumer feeds normalized payment events from Kafka into the
// payment reconciliation service.
package consumer

import (
	"context"
	"fmt"

	"rentcore/internal/payments/service"
	apperrors "rentcore/pkg/errors"
	"rentcore/pkg/kafka"
	"rentcore/pkg/logger"
	"rentcore/pkg/model"
)

type EventHandler struct {
	payments service.PaymentService
	log      *logger.Logger
}

func NewEventHandler(payments service.PaymentService, log *logger.Logger) *EventHandler {
	return &EventHandler{payments: payments, log: log}
}

// Handle is a kafka.MessageHandler. Events that can never apply are returned
// as permanent errors and end up on the dead letter topic; contention and
// infrastructure failures are transient and retried.
func (h *EventHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var event model.PaymentEvent
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("decode payment event", err)
	}
	if event.MappingKey == "" {
		event.MappingKey = msg.Key
	}

	result, err := h.payments.Apply(ctx, &event)
	if err != nil {
		return classify(err)
	}

	h.log.Info("payment event consumed",
		"payment_id", result.PaymentID,
		"reservation_id", result.ReservationID,
		"status", result.Status,
		"replayed", result.Replayed,
		"event_id", msg.GetEventID(),
	)
	return nil
}

func classify(err error) error {
	appErr := apperrors.AsAppError(err)
	switch appErr.Code {
	case apperrors.CodeTimeout, apperrors.CodeConflict, apperrors.CodeUnavailable, apperrors.CodeInternal:
		return kafka.NewTransientError(fmt.Sprintf("apply payment event: %s", appErr.Code), err)
	default:
		return kafka.NewPermanentError(fmt.Sprintf("apply payment event: %s", appErr.Code), err)
	}
}
