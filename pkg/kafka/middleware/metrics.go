package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"rentcore/pkg/kafka"
)

// Metrics counts Kafka traffic for one process. Safe for concurrent use.
type Metrics struct {
	published       atomic.Int64
	publishFailed   atomic.Int64
	publishDuration atomic.Int64

	consumed        atomic.Int64
	consumeFailed   atomic.Int64
	consumeDuration atomic.Int64
}

type MetricsSnapshot struct {
	Published          int64         `json:"published"`
	PublishFailed      int64         `json:"publish_failed"`
	AvgPublishDuration time.Duration `json:"avg_publish_duration"`
	Consumed           int64         `json:"consumed"`
	ConsumeFailed      int64         `json:"consume_failed"`
	AvgConsumeDuration time.Duration `json:"avg_consume_duration"`
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Published:     m.published.Load(),
		PublishFailed: m.publishFailed.Load(),
		Consumed:      m.consumed.Load(),
		ConsumeFailed: m.consumeFailed.Load(),
	}
	if n := s.Published + s.PublishFailed; n > 0 {
		s.AvgPublishDuration = time.Duration(m.publishDuration.Load() / n)
	}
	if n := s.Consumed + s.ConsumeFailed; n > 0 {
		s.AvgConsumeDuration = time.Duration(m.consumeDuration.Load() / n)
	}
	return s
}

func (m *Metrics) ProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		m.publishDuration.Add(int64(time.Since(start)))
		if err != nil {
			m.publishFailed.Add(1)
		} else {
			m.published.Add(1)
		}
		return err
	}
}

func (m *Metrics) ConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		m.consumeDuration.Add(int64(time.Since(start)))
		if err != nil {
			m.consumeFailed.Add(1)
		} else {
			m.consumed.Add(1)
		}
		return err
	}
}
