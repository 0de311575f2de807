package notifications

import (
	"context"

	"rentcore/pkg/kafka"
	"rentcore/pkg/logger"
)

// LogPublisher stands in for Kafka when it is disabled. Events are written to
// the log and count as delivered.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, msg kafka.Message) error {
	p.log.Info("reservation event",
		"event_id", msg.GetEventID(),
		"event_type", msg.GetEventType(),
		"reservation_id", msg.GetReservationID(),
	)
	return nil
}
