package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvMongoOpTimeout    = "MONGO_OP_TIMEOUT"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvStorageDriver = "STORAGE_DRIVER"
	EnvLockDriver    = "LOCK_DRIVER"

	EnvCatalogSeedFile = "CATALOG_SEED_FILE"

	EnvLockTTL           = "LOCK_TTL"
	EnvLockRetryInterval = "LOCK_RETRY_INTERVAL"

	EnvHoldTTL         = "HOLD_TTL"
	EnvPendingHoldTTL  = "PENDING_HOLD_TTL"
	EnvUnpaidHoldTTL   = "UNPAID_HOLD_TTL"
	EnvSelfCancelAfter = "SELF_CANCEL_AFTER"

	EnvSweepInterval  = "SWEEP_INTERVAL"
	EnvSweepBatchSize = "SWEEP_BATCH_SIZE"

	EnvNotifyInterval  = "NOTIFY_INTERVAL"
	EnvNotifyBatchSize = "NOTIFY_BATCH_SIZE"

	EnvCancelOnPaymentFailure = "CANCEL_ON_PAYMENT_FAILURE"

	EnvPaymentEventsSecret = "PAYMENT_EVENTS_SECRET"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
