// Package setup builds the reservation stack shared by the bookings API and
// the payments worker from a loaded configuration.
package setup

import (
	"studiobook/internal/bookings/events"
	"studiobook/internal/bookings/handler"
	"studiobook/internal/bookings/lifecycle"
	"studiobook/internal/bookings/repository"
	"studiobook/pkg/config"
	"studiobook/pkg/gateway"
	"studiobook/pkg/kafka"
	kafka_config "studiobook/pkg/kafka/config"
	kafka_middleware "studiobook/pkg/kafka/middleware"
	"studiobook/pkg/lock"
	"studiobook/pkg/middleware"
)

// Stack is the wired reservation core.
type Stack struct {
	Reservations repository.ReservationRepository
	Installments repository.InstallmentRepository
	Catalog      repository.CatalogRepository
	Locker       lock.Locker
	Events       lifecycle.EventPublisher
	Engine       *lifecycle.Engine
	Metrics      *kafka_middleware.Metrics

	producer *kafka.Producer
}

// Build connects the configured backends and wires the lifecycle engine.
// Kafka settings are loaded from the environment; when they are invalid
// reservation events are dropped and the failure is logged.
func Build(cfg *config.Config) *Stack {
	cfg.SetMongo()
	if cfg.LockBackend == config.LockBackendRedis {
		cfg.SetRedis()
	}

	s := &Stack{
		Reservations: repository.NewMongoReservationRepository(cfg),
		Installments: repository.NewMongoInstallmentRepository(cfg),
		Catalog:      repository.NewMongoCatalogRepository(cfg),
		Locker:       NewLocker(cfg),
		Metrics:      kafka_middleware.NewMetrics(),
	}
	s.Events = s.publisher(cfg)

	gw := gateway.NewClient(gateway.Config{
		BaseURL:         cfg.GatewayBaseURL,
		SecretKey:       cfg.GatewaySecretKey,
		InvoiceDuration: cfg.GatewayInvoiceDuration,
		Timeout:         cfg.GatewayTimeout,
	}, cfg.Log)

	s.Engine = lifecycle.NewEngine(lifecycle.Dependencies{
		Reservations: s.Reservations,
		Installments: s.Installments,
		Transactor:   s.Reservations,
		Gateway:      gw,
		Locker:       s.Locker,
		Events:       s.Events,
	}, lifecycle.Options{LockTTL: cfg.LockTTL}, cfg.Log)

	cfg.Log.Info("Reservation stack initialized",
		"database", cfg.MongoDatabaseName,
		"lock_backend", cfg.LockBackend,
		"transactions", cfg.MongoTransactions,
	)
	return s
}

// NewLocker picks the lock backend named by cfg.LockBackend. Mongo and Redis
// backends require the matching client to be connected.
func NewLocker(cfg *config.Config) lock.Locker {
	var l lock.Locker
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		l = lock.NewRedis(cfg.Client.Redis.Client, config.DefaultLockPrefix)
	case config.LockBackendMongo:
		l = lock.NewMongo(cfg.Client.Mongo.Database(cfg.MongoDatabaseName))
	default:
		cfg.Log.Warn("In-process reservation locks only protect a single instance")
		l = lock.NewMemory()
	}
	return lock.WithTimeout(l, cfg.LockWait)
}

func (s *Stack) publisher(cfg *config.Config) lifecycle.EventPublisher {
	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Error("Kafka configuration invalid, reservation events disabled", "error", err)
		return events.Nop{}
	}
	kcfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kcfg, kcfg.ReservationEventsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Error("Failed to create reservation events producer, events disabled", "error", err)
		return events.Nop{}
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(s.Metrics.ProducerMiddleware())
	s.producer = producer

	return events.NewKafkaPublisher(producer, middleware.RequestIDFromContext)
}

// Close flushes the event producer and disconnects the shared clients.
func (s *Stack) Close(cfg *config.Config) {
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			cfg.Log.Error("Failed to close reservation events producer", "error", err)
		}
	}
	cfg.Log.Info("Kafka metrics", s.Metrics.Snapshot().LogAttrs()...)
	cfg.GracefulShutdown()
}

// Checks lists readiness checks for the connected backends.
func (s *Stack) Checks(cfg *config.Config) []handler.Check {
	var checks []handler.Check
	if cfg.Client.Mongo != nil {
		checks = append(checks, handler.Check{Name: "mongodb", Ping: cfg.Client.Mongo.Ping})
	}
	if cfg.Client.Redis != nil {
		checks = append(checks, handler.Check{Name: "redis", Ping: cfg.Client.Redis.Ping})
	}
	return checks
}
