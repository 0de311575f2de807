package config

import "time"

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "rentcore"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultMongoOpTimeout    = 5 * time.Second

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultStorageDriver = DriverMongo
	DefaultLockDriver    = DriverMongo

	DefaultLockTTL           = 15 * time.Second
	DefaultLockRetryInterval = 25 * time.Millisecond

	// All three hold windows fall back to HOLD_TTL when not set on their own.
	DefaultHoldTTL = 20 * time.Minute

	DefaultSweepInterval  = 30 * time.Second
	DefaultSweepBatchSize = 200

	DefaultNotifyInterval  = 5 * time.Second
	DefaultNotifyBatchSize = 100

	DefaultCancelOnPaymentFailure = true

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)
