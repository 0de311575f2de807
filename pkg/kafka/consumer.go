package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kafka_config "rentcore/pkg/kafka/config"
	"rentcore/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader       messageReader
	dlqWriter    messageWriter
	topic        string
	groupID      string
	maxRetries   int
	retryBackoff time.Duration
	handler      MessageHandler
	middleware   []ConsumerMiddleware
	log          *logger.Logger
	closed       bool
	mu           sync.RWMutex
	wg           sync.WaitGroup
}

type ConsumerMiddleware func(ctx context.Context, msg Message, next MessageHandler) error

// NewConsumer reads topic as groupID. Messages that fail permanently, or keep
// failing after maxRetries, are copied to dlqTopic when one is given.
func NewConsumer(cfg *kafka_config.Config, topic, groupID, dlqTopic string, handler MessageHandler, log *logger.Logger) (*Consumer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("group ID cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("message handler cannot be nil")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		Topic:             topic,
		GroupID:           groupID,
		MaxBytes:          cfg.Consumer.MaxBytes,
		MaxWait:           cfg.Consumer.MaxWait,
		SessionTimeout:    cfg.Consumer.SessionTimeout,
		RebalanceTimeout:  cfg.Consumer.RebalanceTimeout,
		StartOffset:       startOffset(cfg.Consumer.StartOffset),
		Dialer:            &kafka.Dialer{ClientID: cfg.ClientID, Timeout: 10 * time.Second},
		Logger:            kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger:       errorLogger(log, "consumer", topic),
	})

	var dlqWriter messageWriter
	if dlqTopic != "" {
		dlqWriter = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        dlqTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  compression(cfg.Producer.Compression),
			MaxAttempts:  cfg.Producer.MaxAttempts,
			WriteTimeout: cfg.Producer.WriteTimeout,
			Transport:    &kafka.Transport{ClientID: cfg.ClientID},
			Logger:       kafka.LoggerFunc(func(string, ...any) {}),
			ErrorLogger:  errorLogger(log, "dlq", dlqTopic),
		}
	}

	return newConsumer(reader, dlqWriter, topic, groupID, cfg.Consumer.MaxRetries, handler, log), nil
}

func newConsumer(reader messageReader, dlqWriter messageWriter, topic, groupID string, maxRetries int, handler MessageHandler, log *logger.Logger) *Consumer {
	return &Consumer{
		reader:       reader,
		dlqWriter:    dlqWriter,
		topic:        topic,
		groupID:      groupID,
		maxRetries:   maxRetries,
		retryBackoff: 200 * time.Millisecond,
		handler:      handler,
		middleware:   make([]ConsumerMiddleware, 0),
		log:          log.With("component", "kafka_consumer", "topic", topic, "group", groupID),
	}
}

func (c *Consumer) Use(middleware ConsumerMiddleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, middleware)
}

// Start consumes until ctx is done. The offset of a message is committed once
// it was handled or dead-lettered; a message whose dead-letter write failed is
// left uncommitted so it is redelivered.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrConsumerClosed
	}
	c.wg.Add(1)
	c.mu.RUnlock()
	defer c.wg.Done()

	c.log.Info("kafka consumer started")

	for {
		kafkaMsg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			c.log.Error("failed to fetch message", "error", err)
			if !sleep(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}

		if err := c.processMessage(ctx, fromKafkaMessage(kafkaMsg)); err != nil {
			c.log.Error("message left uncommitted", "offset", kafkaMsg.Offset, "partition", kafkaMsg.Partition, "error", err)
			continue
		}

		if err := c.reader.CommitMessages(ctx, kafkaMsg); err != nil {
			c.log.Error("failed to commit offset", "offset", kafkaMsg.Offset, "partition", kafkaMsg.Partition, "error", err)
		}
	}
}

// processMessage runs the handler with retries. It returns an error only when
// the message could neither be handled nor dead-lettered.
func (c *Consumer) processMessage(ctx context.Context, msg Message) error {
	handler := c.chain()

	for {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}

		retries := msg.GetRetryCount()
		if ShouldRetry(err, retries, c.maxRetries) {
			msg.IncrementRetryCount()
			c.log.Warn("retrying message",
				"attempt", retries+1,
				"max_retries", c.maxRetries,
				"event_id", msg.GetEventID(),
				"error", err,
			)
			if !sleep(ctx, c.retryBackoff*time.Duration(retries+1)) {
				return ctx.Err()
			}
			continue
		}

		if c.dlqWriter == nil {
			c.log.Error("dropping message without dead letter topic",
				"event_id", msg.GetEventID(),
				"key", msg.Key,
				"error_type", ClassifyError(err).String(),
				"error", err,
			)
			return nil
		}

		if dlqErr := c.sendToDLQ(ctx, msg, err); dlqErr != nil {
			return fmt.Errorf("dead letter write failed: %w (original error: %v)", dlqErr, err)
		}
		c.log.Warn("message sent to dead letter topic",
			"event_id", msg.GetEventID(),
			"key", msg.Key,
			"retries", retries,
			"error_type", ClassifyError(err).String(),
			"error", err,
		)
		return nil
	}
}

func (c *Consumer) chain() MessageHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()

	handler := c.handler
	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := handler
		handler = func(ctx context.Context, m Message) error {
			return middleware(ctx, m, next)
		}
	}
	return handler
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg Message, originalErr error) error {
	headers := make(map[string]string, len(msg.Headers)+4)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[HeaderOriginalTopic] = c.topic
	headers[HeaderDLQError] = originalErr.Error()
	headers[HeaderDLQTimestamp] = time.Now().UTC().Format(time.RFC3339)
	headers[HeaderDLQGroup] = c.groupID
	msg.Headers = headers
	msg.Timestamp = time.Now().UTC()

	return c.dlqWriter.WriteMessages(ctx, toKafkaMessage(msg))
}

// Close waits for Start to return before releasing the reader. Cancel the
// context passed to Start first.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()

	err := c.reader.Close()
	if c.dlqWriter != nil {
		if dlqErr := c.dlqWriter.Close(); err == nil {
			err = dlqErr
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func startOffset(name string) int64 {
	if name == kafka_config.OffsetNewest {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}
