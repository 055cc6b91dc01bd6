package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "studiobook"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultMongoTransactions = true

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultLockBackend = LockBackendMongo
	DefaultLockTTL     = 30 * time.Second
	DefaultLockWait    = 5 * time.Second
	DefaultLockPrefix  = "studiobook:lock:"

	DefaultGatewayBaseURL         = "https://api.xendit.co"
	DefaultGatewayTimeout         = 10 * time.Second
	DefaultGatewayInvoiceDuration = 24 * time.Hour

	DefaultOpenAt               = "10:00"
	DefaultCloseAt              = "20:30"
	DefaultSelfPhotoGapMinutes  = 5
	DefaultRegularGapMinutes    = 10
	DefaultExtraSlabMinutes     = 5
	DefaultSelfPhotoExtraRate   = 5000
	DefaultRegularExtraRate     = 15000
	DefaultSelfPhotoMaxQuantity = 10
	DefaultWalkInsShareSchedule = true
)

const (
	LockBackendMemory = "memory"
	LockBackendMongo  = "mongo"
	LockBackendRedis  = "redis"
)
