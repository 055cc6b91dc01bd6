package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"studiobook/internal/bookings/events"
	"studiobook/internal/bookings/setup"
	"studiobook/pkg/config"
	"studiobook/pkg/kafka"
	kafka_config "studiobook/pkg/kafka/config"
	kafka_middleware "studiobook/pkg/kafka/middleware"
)

const ServiceName = "payments"

// The payments worker applies gateway invoice notifications delivered on the
// invoice events topic. It shares the lifecycle engine, and therefore the
// reservation locks, with the bookings API.
func main() {
	cfg := config.Load(ServiceName)

	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	cfg.Log.Info("Starting Payments worker")
	stack := setup.Build(cfg)
	defer stack.Close(cfg)

	consumer, err := kafka.NewConsumer(
		kcfg,
		kcfg.InvoiceEventsTopic,
		kcfg.PaymentsGroupID,
		kcfg.InvoiceEventsDLQTopic,
		events.InvoiceEventHandler(stack.Engine, cfg.Log),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create invoice events consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(stack.Metrics.ConsumerMiddleware())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Consuming invoice events",
		"topic", kcfg.InvoiceEventsTopic,
		"group_id", kcfg.PaymentsGroupID,
		"dlq_topic", kcfg.InvoiceEventsDLQTopic,
	)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Invoice events consumer stopped", "error", err)
	}

	cfg.Log.Info("Shutdown signal received, closing consumer")
	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close invoice events consumer", "error", err)
	}
	cfg.Log.Info("Payments worker stopped")
}
