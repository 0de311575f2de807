package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"rentcore/pkg/client"
	kafka_config "rentcore/pkg/kafka/config"
	"rentcore/pkg/logger"
)

type Config struct {
	ServiceName string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	MongoOpTimeout    time.Duration

	Port string

	StorageDriver string
	LockDriver    string
	// CatalogSeedFile is loaded into the catalog at startup when set.
	CatalogSeedFile string

	LockTTL           time.Duration
	LockRetryInterval time.Duration

	HoldTTL         time.Duration
	PendingHoldTTL  time.Duration
	UnpaidHoldTTL   time.Duration
	SelfCancelAfter time.Duration

	SweepInterval  time.Duration
	SweepBatchSize int

	NotifyInterval  time.Duration
	NotifyBatchSize int

	CancelOnPaymentFailure bool

	PaymentEventsSecret string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Kafka *kafka_config.Config

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := FromEnv(serviceName)

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv reads the configuration without validating it.
func FromEnv(serviceName string) *Config {
	holdTTL := getEnvDuration(EnvHoldTTL, DefaultHoldTTL)

	return &Config{
		ServiceName: serviceName,

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		MongoOpTimeout:    getEnvDuration(EnvMongoOpTimeout, DefaultMongoOpTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		StorageDriver: getEnvStr(EnvStorageDriver, DefaultStorageDriver),
		LockDriver:    getEnvStr(EnvLockDriver, DefaultLockDriver),

		CatalogSeedFile: getEnvStr(EnvCatalogSeedFile, ""),

		LockTTL:           getEnvDuration(EnvLockTTL, DefaultLockTTL),
		LockRetryInterval: getEnvDuration(EnvLockRetryInterval, DefaultLockRetryInterval),

		HoldTTL:         holdTTL,
		PendingHoldTTL:  getEnvDuration(EnvPendingHoldTTL, holdTTL),
		UnpaidHoldTTL:   getEnvDuration(EnvUnpaidHoldTTL, holdTTL),
		SelfCancelAfter: getEnvDuration(EnvSelfCancelAfter, holdTTL),

		SweepInterval:  getEnvDuration(EnvSweepInterval, DefaultSweepInterval),
		SweepBatchSize: getEnvNum(EnvSweepBatchSize, DefaultSweepBatchSize),

		NotifyInterval:  getEnvDuration(EnvNotifyInterval, DefaultNotifyInterval),
		NotifyBatchSize: getEnvNum(EnvNotifyBatchSize, DefaultNotifyBatchSize),

		CancelOnPaymentFailure: getEnvBool(EnvCancelOnPaymentFailure, DefaultCancelOnPaymentFailure),

		PaymentEventsSecret: getEnvStr(EnvPaymentEventsSecret, ""),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Kafka: kafka_config.Load(),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    getEnvStr(EnvLogFormat, DefaultLogFormat),
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, "rentcore-"+cfg.ServiceName, cfg.MongoURI, cfg.MongoConnTimeout)
}

// UsesMongo reports whether any driver needs a live MongoDB connection.
func (cfg *Config) UsesMongo() bool {
	return cfg.StorageDriver == DriverMongo || cfg.LockDriver == DriverMongo
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.StorageDriver != DriverMongo && cfg.StorageDriver != DriverMemory {
		errors = append(errors, fmt.Sprintf("StorageDriver must be one of [mongo, memory], got: %s", cfg.StorageDriver))
	}
	if cfg.LockDriver != DriverMongo && cfg.LockDriver != DriverMemory {
		errors = append(errors, fmt.Sprintf("LockDriver must be one of [mongo, memory], got: %s", cfg.LockDriver))
	}
	if cfg.StorageDriver == DriverMemory && cfg.LockDriver == DriverMongo {
		errors = append(errors, "LockDriver mongo requires StorageDriver mongo")
	}

	if cfg.UsesMongo() {
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
		if cfg.MongoOpTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoOpTimeout must be positive, got: %s", cfg.MongoOpTimeout))
		}
	}

	if cfg.LockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("LockTTL must be positive, got: %s", cfg.LockTTL))
	}
	if cfg.LockRetryInterval <= 0 {
		errors = append(errors, fmt.Sprintf("LockRetryInterval must be positive, got: %s", cfg.LockRetryInterval))
	}

	if cfg.HoldTTL <= 0 {
		errors = append(errors, fmt.Sprintf("HoldTTL must be positive, got: %s", cfg.HoldTTL))
	}
	if cfg.PendingHoldTTL <= 0 {
		errors = append(errors, fmt.Sprintf("PendingHoldTTL must be positive, got: %s", cfg.PendingHoldTTL))
	}
	if cfg.UnpaidHoldTTL <= 0 {
		errors = append(errors, fmt.Sprintf("UnpaidHoldTTL must be positive, got: %s", cfg.UnpaidHoldTTL))
	}
	if cfg.SelfCancelAfter < 0 {
		errors = append(errors, fmt.Sprintf("SelfCancelAfter cannot be negative, got: %s", cfg.SelfCancelAfter))
	}

	if cfg.SweepInterval <= 0 {
		errors = append(errors, fmt.Sprintf("SweepInterval must be positive, got: %s", cfg.SweepInterval))
	}
	if cfg.SweepBatchSize <= 0 {
		errors = append(errors, fmt.Sprintf("SweepBatchSize must be positive, got: %d", cfg.SweepBatchSize))
	}
	if cfg.NotifyInterval <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyInterval must be positive, got: %s", cfg.NotifyInterval))
	}
	if cfg.NotifyBatchSize <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyBatchSize must be positive, got: %d", cfg.NotifyBatchSize))
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.Kafka != nil && cfg.Kafka.Enabled {
		errors = append(errors, cfg.Kafka.Problems()...)
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"mongo_op_timeout", cfg.MongoOpTimeout,
		"port", cfg.Port,
		"storage_driver", cfg.StorageDriver,
		"lock_driver", cfg.LockDriver,
		"catalog_seed_file", cfg.CatalogSeedFile,
		"lock_ttl", cfg.LockTTL,
		"lock_retry_interval", cfg.LockRetryInterval,
		"hold_ttl", cfg.HoldTTL,
		"pending_hold_ttl", cfg.PendingHoldTTL,
		"unpaid_hold_ttl", cfg.UnpaidHoldTTL,
		"self_cancel_after", cfg.SelfCancelAfter,
		"sweep_interval", cfg.SweepInterval,
		"sweep_batch_size", cfg.SweepBatchSize,
		"notify_interval", cfg.NotifyInterval,
		"notify_batch_size", cfg.NotifyBatchSize,
		"cancel_on_payment_failure", cfg.CancelOnPaymentFailure,
		"payment_events_secret_set", cfg.PaymentEventsSecret != "",
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
	if cfg.Kafka != nil {
		cfg.Kafka.LogConfiguration(cfg.Log)
	}
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}
