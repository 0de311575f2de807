package kafka_config

import "time"

const (
	DefaultKafkaEnabled = false
	DefaultKafkaBrokers = "localhost:9092"
	DefaultClientID     = "rentcore"

	DefaultReservationEventsTopic = "reservation-events"
	DefaultPaymentEventsTopic     = "payment-events"
	DefaultPaymentDLQTopic        = "payment-events-dlq"
	DefaultPaymentConsumerGroup   = "rentcore-payments"

	DefaultProducerMaxAttempts  = 5
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerWriteTimeout = 10 * time.Second
	DefaultProducerRequireAcks  = "all"
	DefaultProducerCompression  = "snappy"

	DefaultConsumerStartOffset      = OffsetOldest
	DefaultConsumerMaxBytes         = 1 << 20
	DefaultConsumerMaxWait          = 500 * time.Millisecond
	DefaultConsumerSessionTimeout   = 10 * time.Second
	DefaultConsumerRebalanceTimeout = 30 * time.Second
	DefaultConsumerMaxRetries       = 3

	DefaultEnableMiddleware = true
)
