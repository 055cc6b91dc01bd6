package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"studiobook/pkg/kafka"
	"studiobook/pkg/logger"
)

func TestMetrics_CountsOutcomes(t *testing.T) {
	m := NewMetrics()
	produce := m.ProducerMiddleware()
	consume := m.ConsumerMiddleware()

	ok := func(ctx context.Context, msg kafka.Message) error { return nil }
	fail := func(ctx context.Context, msg kafka.Message) error { return errors.New("broker down") }

	_ = produce(context.Background(), kafka.Message{}, ok)
	_ = produce(context.Background(), kafka.Message{}, ok)
	_ = produce(context.Background(), kafka.Message{}, fail)
	_ = consume(context.Background(), kafka.Message{}, fail)

	s := m.Snapshot()
	if s.Published != 2 || s.PublishFailed != 1 {
		t.Errorf("publish counts = %d/%d, want 2/1", s.Published, s.PublishFailed)
	}
	if s.Consumed != 0 || s.ConsumeFailed != 1 {
		t.Errorf("consume counts = %d/%d, want 0/1", s.Consumed, s.ConsumeFailed)
	}
	if len(s.LogAttrs())%2 != 0 {
		t.Error("LogAttrs() is not key/value pairs")
	}
}

func TestLoggingMiddleware_PassesErrorThrough(t *testing.T) {
	want := errors.New("handler failed")
	mw := LoggingConsumerMiddleware(logger.Discard())

	err := mw(context.Background(), kafka.Message{Headers: map[string]string{}}, func(ctx context.Context, msg kafka.Message) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}

	pmw := LoggingProducerMiddleware(logger.Discard())
	if err := pmw(context.Background(), kafka.Message{}, func(ctx context.Context, msg kafka.Message) error { return nil }); err != nil {
		t.Errorf("producer middleware error = %v", err)
	}
}
