package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"rentcore/pkg/kafka"
)

func TestMetrics_Middleware(t *testing.T) {
	m := NewMetrics()
	consume := m.ConsumerMiddleware()
	publish := m.ProducerMiddleware()

	ok := func(context.Context, kafka.Message) error { return nil }
	fail := func(context.Context, kafka.Message) error { return errors.New("boom") }

	_ = consume(context.Background(), kafka.Message{}, ok)
	_ = consume(context.Background(), kafka.Message{}, ok)
	_ = consume(context.Background(), kafka.Message{}, fail)
	_ = publish(context.Background(), kafka.Message{}, fail)

	s := m.Snapshot()
	if s.Consumed != 2 || s.ConsumeFailed != 1 {
		t.Errorf("consumer counts = %d/%d, want 2/1", s.Consumed, s.ConsumeFailed)
	}
	if s.Published != 0 || s.PublishFailed != 1 {
		t.Errorf("producer counts = %d/%d, want 0/1", s.Published, s.PublishFailed)
	}
}
