package kafka_config

import "time"

const (
	DefaultKafkaBrokers = "localhost:9092"

	DefaultReservationEventsTopic = "reservations.events"
	DefaultInvoiceEventsTopic     = "payments.invoice-events"
	DefaultInvoiceEventsDLQTopic  = "payments.invoice-events.dlq"
	DefaultPaymentsGroupID        = "studiobook-payments"

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = -1 // all replicas
	DefaultProducerCompression  = "snappy"

	DefaultConsumerStartOffset       = -2 // oldest, so no invoice event is skipped on first start
	DefaultConsumerMinBytes          = 1
	DefaultConsumerMaxBytes          = 10 * 1024 * 1024 // 10MB
	DefaultConsumerMaxWait           = 500 * time.Millisecond
	DefaultConsumerHeartbeatInterval = 3 * time.Second
	DefaultConsumerSessionTimeout    = 10 * time.Second
	DefaultConsumerMaxRetries        = 3
	DefaultConsumerRetryBackoff      = 500 * time.Millisecond
)
