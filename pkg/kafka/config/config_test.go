package kafka_config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Enabled: true,
		Brokers: []string{"localhost:9092"},
		Topics: Topics{
			ReservationEvents: DefaultReservationEventsTopic,
			PaymentEvents:     DefaultPaymentEventsTopic,
			PaymentDLQ:        DefaultPaymentDLQTopic,
		},
		PaymentConsumerGroup: DefaultPaymentConsumerGroup,
		Producer: Producer{
			MaxAttempts:  DefaultProducerMaxAttempts,
			BatchTimeout: DefaultProducerBatchTimeout,
			WriteTimeout: DefaultProducerWriteTimeout,
			RequireAcks:  DefaultProducerRequireAcks,
			Compression:  DefaultProducerCompression,
		},
		Consumer: Consumer{
			StartOffset:      DefaultConsumerStartOffset,
			MaxBytes:         DefaultConsumerMaxBytes,
			MaxWait:          DefaultConsumerMaxWait,
			SessionTimeout:   DefaultConsumerSessionTimeout,
			RebalanceTimeout: DefaultConsumerRebalanceTimeout,
			MaxRetries:       DefaultConsumerMaxRetries,
		},
	}
}

func TestProblems(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"valid", func(*Config) {}, ""},
		{"no brokers", func(c *Config) { c.Brokers = nil }, "broker"},
		{"dlq equals source", func(c *Config) { c.Topics.PaymentDLQ = c.Topics.PaymentEvents }, "PaymentDLQ"},
		{"bad compression", func(c *Config) { c.Producer.Compression = "brotli" }, "Compression"},
		{"bad acks", func(c *Config) { c.Producer.RequireAcks = "2" }, "RequireAcks"},
		{"bad offset", func(c *Config) { c.Consumer.StartOffset = "-1" }, "StartOffset"},
		{"negative retries", func(c *Config) { c.Consumer.MaxRetries = -1 }, "MaxRetries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			problems := strings.Join(cfg.Problems(), "\n")

			if tt.wantSub == "" {
				if problems != "" {
					t.Errorf("Problems() = %q, want none", problems)
				}
				if err := cfg.Validate(); err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !strings.Contains(problems, tt.wantSub) {
				t.Errorf("Problems() = %q, want mention of %q", problems, tt.wantSub)
			}
		})
	}
}

func TestLoad_ParsesBrokerList(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " k1:9092, ,k2:9092 ")
	t.Setenv(EnvKafkaProducerRequireAcks, "LEADER")

	cfg := Load()
	if len(cfg.Brokers) != 2 || cfg.Brokers[0] != "k1:9092" || cfg.Brokers[1] != "k2:9092" {
		t.Errorf("Brokers = %v", cfg.Brokers)
	}
	if cfg.Producer.RequireAcks != "leader" {
		t.Errorf("RequireAcks = %q, want leader", cfg.Producer.RequireAcks)
	}
}
