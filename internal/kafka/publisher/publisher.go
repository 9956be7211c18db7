package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/ajayykmr/sms-forwarder/internal/models"
)

var errProducerNotInitialised = errors.New("kafka publisher: producer not initialised")

// SyncProducer captures the subset of producer behaviour required by the Kafka publishers.
type SyncProducer interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// ErrProducerNotInitialised exposes the sentinel error for callers and tests.
func ErrProducerNotInitialised() error {
	return errProducerNotInitialised
}

// RecordPublisher emits audit records to a Kafka topic using the shared producer.
type RecordPublisher struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewRecordPublisher constructs a RecordPublisher instance.
func NewRecordPublisher(prod SyncProducer, topic string, logger zerolog.Logger) *RecordPublisher {
	if prod == nil {
		return nil
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &RecordPublisher{
		producer: prod,
		topic:    topic,
		logger:   logger,
	}
}

// PublishRecord writes the record to Kafka synchronously, keyed by trace id so
// all records of one invocation land on the same partition.
func (p *RecordPublisher) PublishRecord(_ context.Context, record models.LogRecord) error {
	if p == nil || p.producer == nil {
		return errProducerNotInitialised
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal audit record: %w", err)
	}

	headers := map[string][]byte{
		"content-type": []byte("application/json"),
		"level":        []byte(record.Level),
		"service":      []byte(record.ServiceName),
	}

	if err := p.producer.PublishSync(p.topic, []byte(record.TraceID), headers, payload); err != nil {
		return fmt.Errorf("kafka publisher: publish audit record: %w", err)
	}
	return nil
}
