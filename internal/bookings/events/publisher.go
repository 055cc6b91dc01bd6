// Package events publishes reservation lifecycle events to Kafka.
package events

import (
	"context"
	"fmt"

	"studiobook/pkg/kafka"
	"studiobook/pkg/model"
)

const (
	schemaVersion = "1"
	source        = "studiobook-bookings"

	// HeaderStudioID lets consumers route by studio without decoding the value.
	HeaderStudioID = "studio-id"
)

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type CorrelationFunc func(ctx context.Context) string

// KafkaPublisher keys every event by reservation id so consumers see one
// reservation's events in order.
type KafkaPublisher struct {
	producer    MessagePublisher
	correlation CorrelationFunc
}

func NewKafkaPublisher(producer MessagePublisher, correlation CorrelationFunc) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, correlation: correlation}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event model.ReservationEvent) error {
	builder := kafka.NewMessage().
		WithKey(event.ReservationID).
		WithValue(event).
		WithEventType(string(event.Type)).
		WithHeader(HeaderStudioID, event.StudioID).
		WithSchemaVersion(schemaVersion).
		WithSource(source).
		WithTimestamp(event.OccurredAt)
	if p.correlation != nil {
		builder = builder.WithCorrelationID(p.correlation(ctx))
	}

	msg, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build %s event: %w", event.Type, err)
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event for %s: %w", event.Type, event.ReservationID, err)
	}
	return nil
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, model.ReservationEvent) error { return nil }
