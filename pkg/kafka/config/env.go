package kafka_config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvKafkaEnabled  = "KAFKA_ENABLED"
	EnvKafkaBrokers  = "KAFKA_BROKERS"
	EnvKafkaClientID = "KAFKA_CLIENT_ID"

	EnvKafkaReservationEventsTopic = "KAFKA_RESERVATION_EVENTS_TOPIC"
	EnvKafkaPaymentEventsTopic     = "KAFKA_PAYMENT_EVENTS_TOPIC"
	EnvKafkaPaymentDLQTopic        = "KAFKA_PAYMENT_DLQ_TOPIC"
	EnvKafkaPaymentConsumerGroup   = "KAFKA_PAYMENT_CONSUMER_GROUP"

	EnvKafkaProducerMaxAttempts  = "KAFKA_PRODUCER_MAX_ATTEMPTS"
	EnvKafkaProducerBatchTimeout = "KAFKA_PRODUCER_BATCH_TIMEOUT"
	EnvKafkaProducerWriteTimeout = "KAFKA_PRODUCER_WRITE_TIMEOUT"
	EnvKafkaProducerRequireAcks  = "KAFKA_PRODUCER_REQUIRE_ACKS"
	EnvKafkaProducerCompression  = "KAFKA_PRODUCER_COMPRESSION"

	EnvKafkaConsumerStartOffset      = "KAFKA_CONSUMER_START_OFFSET"
	EnvKafkaConsumerMaxBytes         = "KAFKA_CONSUMER_MAX_BYTES"
	EnvKafkaConsumerMaxWait          = "KAFKA_CONSUMER_MAX_WAIT"
	EnvKafkaConsumerSessionTimeout   = "KAFKA_CONSUMER_SESSION_TIMEOUT"
	EnvKafkaConsumerRebalanceTimeout = "KAFKA_CONSUMER_REBALANCE_TIMEOUT"
	EnvKafkaConsumerMaxRetries       = "KAFKA_CONSUMER_MAX_RETRIES"

	EnvKafkaEnableMiddleware = "KAFKA_ENABLE_MIDDLEWARE"
)

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envList(key, fallback string) []string {
	parts := strings.Split(envString(key, fallback), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
