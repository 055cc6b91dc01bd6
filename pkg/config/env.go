package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvMongoTransactions = "MONGO_TRANSACTIONS"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvLockBackend = "LOCK_BACKEND"
	EnvLockTTL     = "LOCK_TTL"
	EnvLockWait    = "LOCK_WAIT"

	EnvGatewayBaseURL         = "PAYMENT_GATEWAY_BASE_URL"
	EnvGatewaySecretKey       = "PAYMENT_GATEWAY_SECRET_KEY"
	EnvGatewayCallbackToken   = "PAYMENT_GATEWAY_CALLBACK_TOKEN"
	EnvGatewayTimeout         = "PAYMENT_GATEWAY_TIMEOUT"
	EnvGatewayInvoiceDuration = "PAYMENT_GATEWAY_INVOICE_DURATION"

	EnvOpenAt               = "STUDIO_OPEN_AT"
	EnvCloseAt              = "STUDIO_CLOSE_AT"
	EnvSelfPhotoGapMinutes  = "SELF_PHOTO_GAP_MINUTES"
	EnvRegularGapMinutes    = "REGULAR_GAP_MINUTES"
	EnvExtraSlabMinutes     = "EXTRA_TIME_SLAB_MINUTES"
	EnvSelfPhotoExtraRate   = "SELF_PHOTO_EXTRA_RATE"
	EnvRegularExtraRate     = "REGULAR_EXTRA_RATE"
	EnvSelfPhotoMaxQuantity = "SELF_PHOTO_MAX_QUANTITY"
	EnvWalkInsShareSchedule = "WALK_INS_SHARE_SCHEDULE"
)
