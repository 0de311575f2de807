package kafka_config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"rentcore/pkg/logger"
)

const (
	OffsetNewest = "newest"
	OffsetOldest = "oldest"
)

var (
	compressions = []string{"none", "gzip", "snappy", "lz4", "zstd"}
	ackModes     = []string{"none", "leader", "all"}
)

type Topics struct {
	ReservationEvents string
	PaymentEvents     string
	PaymentDLQ        string
}

// Producer settings. Writes are always synchronous: the notification relay
// records an event as sent only after the broker acknowledged it.
type Producer struct {
	MaxAttempts  int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequireAcks  string
	Compression  string
}

// Consumer settings. Offsets are committed one message at a time after the
// handler or the dead-letter write succeeded.
type Consumer struct {
	StartOffset      string
	MaxBytes         int
	MaxWait          time.Duration
	SessionTimeout   time.Duration
	RebalanceTimeout time.Duration
	MaxRetries       int
}

type Config struct {
	Enabled  bool
	Brokers  []string
	ClientID string

	Topics               Topics
	PaymentConsumerGroup string

	Producer Producer
	Consumer Consumer

	EnableMiddleware bool
}

// Load reads the Kafka configuration from the environment. Validation is left
// to the caller so that a disabled Kafka never blocks startup.
func Load() *Config {
	return &Config{
		Enabled:  envBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		Brokers:  envList(EnvKafkaBrokers, DefaultKafkaBrokers),
		ClientID: envString(EnvKafkaClientID, DefaultClientID),

		Topics: Topics{
			ReservationEvents: envString(EnvKafkaReservationEventsTopic, DefaultReservationEventsTopic),
			PaymentEvents:     envString(EnvKafkaPaymentEventsTopic, DefaultPaymentEventsTopic),
			PaymentDLQ:        envString(EnvKafkaPaymentDLQTopic, DefaultPaymentDLQTopic),
		},
		PaymentConsumerGroup: envString(EnvKafkaPaymentConsumerGroup, DefaultPaymentConsumerGroup),

		Producer: Producer{
			MaxAttempts:  envInt(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts),
			BatchTimeout: envDuration(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout),
			WriteTimeout: envDuration(EnvKafkaProducerWriteTimeout, DefaultProducerWriteTimeout),
			RequireAcks:  strings.ToLower(envString(EnvKafkaProducerRequireAcks, DefaultProducerRequireAcks)),
			Compression:  strings.ToLower(envString(EnvKafkaProducerCompression, DefaultProducerCompression)),
		},
		Consumer: Consumer{
			StartOffset:      strings.ToLower(envString(EnvKafkaConsumerStartOffset, DefaultConsumerStartOffset)),
			MaxBytes:         envInt(EnvKafkaConsumerMaxBytes, DefaultConsumerMaxBytes),
			MaxWait:          envDuration(EnvKafkaConsumerMaxWait, DefaultConsumerMaxWait),
			SessionTimeout:   envDuration(EnvKafkaConsumerSessionTimeout, DefaultConsumerSessionTimeout),
			RebalanceTimeout: envDuration(EnvKafkaConsumerRebalanceTimeout, DefaultConsumerRebalanceTimeout),
			MaxRetries:       envInt(EnvKafkaConsumerMaxRetries, DefaultConsumerMaxRetries),
		},

		EnableMiddleware: envBool(EnvKafkaEnableMiddleware, DefaultEnableMiddleware),
	}
}

// Problems lists every validation failure; an empty result means the config is usable.
func (cfg *Config) Problems() []string {
	var problems []string

	if len(cfg.Brokers) == 0 {
		problems = append(problems, "At least one Kafka broker is required")
	}

	t := cfg.Topics
	if t.ReservationEvents == "" || t.PaymentEvents == "" || t.PaymentDLQ == "" {
		problems = append(problems, "Kafka topic names cannot be empty")
	}
	if t.PaymentEvents == t.PaymentDLQ {
		problems = append(problems, fmt.Sprintf("PaymentDLQ topic must differ from PaymentEvents, got: %s", t.PaymentDLQ))
	}
	if cfg.PaymentConsumerGroup == "" {
		problems = append(problems, "PaymentConsumerGroup cannot be empty")
	}

	p := cfg.Producer
	if p.MaxAttempts <= 0 {
		problems = append(problems, fmt.Sprintf("Producer.MaxAttempts must be positive, got: %d", p.MaxAttempts))
	}
	if p.BatchTimeout <= 0 || p.WriteTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("Producer timeouts must be positive, got batch=%s write=%s", p.BatchTimeout, p.WriteTimeout))
	}
	if !slices.Contains(compressions, p.Compression) {
		problems = append(problems, fmt.Sprintf("Producer.Compression must be one of %v, got: %s", compressions, p.Compression))
	}
	if !slices.Contains(ackModes, p.RequireAcks) {
		problems = append(problems, fmt.Sprintf("Producer.RequireAcks must be one of %v, got: %s", ackModes, p.RequireAcks))
	}

	c := cfg.Consumer
	if c.StartOffset != OffsetNewest && c.StartOffset != OffsetOldest {
		problems = append(problems, fmt.Sprintf("Consumer.StartOffset must be %q or %q, got: %s", OffsetNewest, OffsetOldest, c.StartOffset))
	}
	if c.MaxBytes <= 0 {
		problems = append(problems, fmt.Sprintf("Consumer.MaxBytes must be positive, got: %d", c.MaxBytes))
	}
	if c.MaxWait <= 0 || c.SessionTimeout <= 0 || c.RebalanceTimeout <= 0 {
		problems = append(problems, "Consumer wait, session and rebalance timeouts must be positive")
	}
	if c.MaxRetries < 0 {
		problems = append(problems, fmt.Sprintf("Consumer.MaxRetries cannot be negative, got: %d", c.MaxRetries))
	}

	return problems
}

func (cfg *Config) Validate() error {
	problems := cfg.Problems()
	if len(problems) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("Kafka configuration validation failed:\n")
	for i, p := range problems {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, p)
	}
	return fmt.Errorf("%s", b.String())
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	if !cfg.Enabled {
		log.Info("Kafka disabled")
		return
	}

	log.Info("Kafka configuration loaded successfully",
		"brokers", cfg.Brokers,
		"client_id", cfg.ClientID,
		"reservation_events_topic", cfg.Topics.ReservationEvents,
		"payment_events_topic", cfg.Topics.PaymentEvents,
		"payment_dlq_topic", cfg.Topics.PaymentDLQ,
		"payment_consumer_group", cfg.PaymentConsumerGroup,
		"producer_require_acks", cfg.Producer.RequireAcks,
		"producer_compression", cfg.Producer.Compression,
		"producer_max_attempts", cfg.Producer.MaxAttempts,
		"consumer_start_offset", cfg.Consumer.StartOffset,
		"consumer_max_retries", cfg.Consumer.MaxRetries,
		"enable_middleware", cfg.EnableMiddleware,
	)
}
