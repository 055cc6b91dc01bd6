package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"studiobook/pkg/civiltime"
	"studiobook/pkg/client"
	"studiobook/pkg/logger"
	"studiobook/pkg/model"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	MongoTransactions bool

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LockBackend string
	LockTTL     time.Duration
	LockWait    time.Duration

	GatewayBaseURL         string
	GatewaySecretKey       string
	GatewayCallbackToken   string
	GatewayTimeout         time.Duration
	GatewayInvoiceDuration time.Duration

	OpenAt               string
	CloseAt              string
	SelfPhotoGapMinutes  int
	RegularGapMinutes    int
	ExtraSlabMinutes     int
	SelfPhotoExtraRate   int
	RegularExtraRate     int
	SelfPhotoMaxQuantity int
	WalkInsShareSchedule bool

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the configuration from the environment, after applying an
// optional .env file, and exits when it is invalid.
func Load(serviceName string) *Config {
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		MongoTransactions: getEnvBool(EnvMongoTransactions, DefaultMongoTransactions),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		LockBackend: getEnvStr(EnvLockBackend, DefaultLockBackend),
		LockTTL:     getEnvDuration(EnvLockTTL, DefaultLockTTL),
		LockWait:    getEnvDuration(EnvLockWait, DefaultLockWait),

		GatewayBaseURL:         getEnvStr(EnvGatewayBaseURL, DefaultGatewayBaseURL),
		GatewaySecretKey:       getEnvStr(EnvGatewaySecretKey, ""),
		GatewayCallbackToken:   getEnvStr(EnvGatewayCallbackToken, ""),
		GatewayTimeout:         getEnvDuration(EnvGatewayTimeout, DefaultGatewayTimeout),
		GatewayInvoiceDuration: getEnvDuration(EnvGatewayInvoiceDuration, DefaultGatewayInvoiceDuration),

		OpenAt:               getEnvStr(EnvOpenAt, DefaultOpenAt),
		CloseAt:              getEnvStr(EnvCloseAt, DefaultCloseAt),
		SelfPhotoGapMinutes:  getEnvNum(EnvSelfPhotoGapMinutes, DefaultSelfPhotoGapMinutes),
		RegularGapMinutes:    getEnvNum(EnvRegularGapMinutes, DefaultRegularGapMinutes),
		ExtraSlabMinutes:     getEnvNum(EnvExtraSlabMinutes, DefaultExtraSlabMinutes),
		SelfPhotoExtraRate:   getEnvNum(EnvSelfPhotoExtraRate, DefaultSelfPhotoExtraRate),
		RegularExtraRate:     getEnvNum(EnvRegularExtraRate, DefaultRegularExtraRate),
		SelfPhotoMaxQuantity: getEnvNum(EnvSelfPhotoMaxQuantity, DefaultSelfPhotoMaxQuantity),
		WalkInsShareSchedule: getEnvBool(EnvWalkInsShareSchedule, DefaultWalkInsShareSchedule),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

// Policies builds the per-kind scheduling and billing policy. Validate has
// already checked the operating window parses.
func (cfg *Config) Policies() model.Policies {
	openAt, _ := civiltime.ParseTimeOfDay(cfg.OpenAt)
	closeAt, _ := civiltime.ParseTimeOfDay(cfg.CloseAt)

	return model.Policies{
		model.SelfPhoto: {
			OpenAt:           openAt,
			CloseAt:          closeAt,
			GapMinutes:       cfg.SelfPhotoGapMinutes,
			ExtraSlabMinutes: cfg.ExtraSlabMinutes,
			ExtraRatePerSlab: int64(cfg.SelfPhotoExtraRate),
			MaxQuantity:      cfg.SelfPhotoMaxQuantity,
		},
		model.Regular: {
			OpenAt:           openAt,
			CloseAt:          closeAt,
			GapMinutes:       cfg.RegularGapMinutes,
			ExtraSlabMinutes: cfg.ExtraSlabMinutes,
			ExtraRatePerSlab: int64(cfg.RegularExtraRate),
			MaxQuantity:      1,
		},
	}
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	openAt, errOpen := civiltime.ParseTimeOfDay(cfg.OpenAt)
	if errOpen != nil {
		errors = append(errors, fmt.Sprintf("OpenAt must be in HH:MM format (00:00-23:59), got: %s", cfg.OpenAt))
	}
	closeAt, errClose := civiltime.ParseTimeOfDay(cfg.CloseAt)
	if errClose != nil {
		errors = append(errors, fmt.Sprintf("CloseAt must be in HH:MM format (00:00-23:59), got: %s", cfg.CloseAt))
	}
	if errOpen == nil && errClose == nil && closeAt <= openAt {
		errors = append(errors, fmt.Sprintf("CloseAt (%s) must be after OpenAt (%s)", cfg.CloseAt, cfg.OpenAt))
	}

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

	switch cfg.LockBackend {
	case LockBackendMemory, LockBackendMongo:
	case LockBackendRedis:
		if cfg.RedisAddr == "" {
			errors = append(errors, "RedisAddr cannot be empty when LockBackend is redis")
		}
	default:
		errors = append(errors, fmt.Sprintf("LockBackend must be one of memory, mongo, redis, got: %s", cfg.LockBackend))
	}
	if cfg.LockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("LockTTL must be positive, got: %s", cfg.LockTTL))
	}
	if cfg.LockWait <= 0 {
		errors = append(errors, fmt.Sprintf("LockWait must be positive, got: %s", cfg.LockWait))
	}

	if cfg.GatewayBaseURL == "" {
		errors = append(errors, "GatewayBaseURL cannot be empty")
	}
	if cfg.GatewayTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("GatewayTimeout must be positive, got: %s", cfg.GatewayTimeout))
	}
	if cfg.GatewayInvoiceDuration <= 0 {
		errors = append(errors, fmt.Sprintf("GatewayInvoiceDuration must be positive, got: %s", cfg.GatewayInvoiceDuration))
	}

	if cfg.SelfPhotoGapMinutes < 0 {
		errors = append(errors, fmt.Sprintf("SelfPhotoGapMinutes cannot be negative, got: %d", cfg.SelfPhotoGapMinutes))
	}
	if cfg.RegularGapMinutes < 0 {
		errors = append(errors, fmt.Sprintf("RegularGapMinutes cannot be negative, got: %d", cfg.RegularGapMinutes))
	}
	if cfg.ExtraSlabMinutes <= 0 {
		errors = append(errors, fmt.Sprintf("ExtraSlabMinutes must be positive, got: %d", cfg.ExtraSlabMinutes))
	}
	if cfg.SelfPhotoExtraRate < 0 {
		errors = append(errors, fmt.Sprintf("SelfPhotoExtraRate cannot be negative, got: %d", cfg.SelfPhotoExtraRate))
	}
	if cfg.RegularExtraRate < 0 {
		errors = append(errors, fmt.Sprintf("RegularExtraRate cannot be negative, got: %d", cfg.RegularExtraRate))
	}
	if cfg.SelfPhotoMaxQuantity <= 0 {
		errors = append(errors, fmt.Sprintf("SelfPhotoMaxQuantity must be positive, got: %d", cfg.SelfPhotoMaxQuantity))
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
		"mongo_transactions", cfg.MongoTransactions,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"lock_backend", cfg.LockBackend,
		"lock_ttl", cfg.LockTTL,
		"lock_wait", cfg.LockWait,
		"gateway_base_url", cfg.GatewayBaseURL,
		"gateway_secret_set", cfg.GatewaySecretKey != "",
		"gateway_callback_token_set", cfg.GatewayCallbackToken != "",
		"gateway_invoice_duration", cfg.GatewayInvoiceDuration,
		"open_at", cfg.OpenAt,
		"close_at", cfg.CloseAt,
		"self_photo_gap_minutes", cfg.SelfPhotoGapMinutes,
		"regular_gap_minutes", cfg.RegularGapMinutes,
		"extra_slab_minutes", cfg.ExtraSlabMinutes,
		"self_photo_extra_rate", cfg.SelfPhotoExtraRate,
		"regular_extra_rate", cfg.RegularExtraRate,
		"walk_ins_share_schedule", cfg.WalkInsShareSchedule,
	)
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
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
