package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	kafkapublisher "github.com/ajayykmr/sms-forwarder/internal/kafka/publisher"
	"github.com/ajayykmr/sms-forwarder/internal/models"
)

type fakeSyncProducer struct {
	err     error
	topic   string
	key     []byte
	headers map[string][]byte
	payload []byte
}

func (f *fakeSyncProducer) PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error {
	f.topic = topic
	f.key = append([]byte(nil), key...)
	f.headers = headers
	f.payload = append([]byte(nil), payload...)
	return f.err
}

func TestRecordPublisherPublishesRecord(t *testing.T) {
	prod := &fakeSyncProducer{}
	pub := kafkapublisher.NewRecordPublisher(prod, "audit-topic", zerolog.Nop())
	if pub == nil {
		t.Fatalf("expected publisher instance")
	}

	record := models.LogRecord{
		Timestamp:   time.Unix(123, 0).UTC(),
		Level:       models.LevelError,
		Message:     "Resource not found",
		ServiceName: models.ServiceName,
		TraceID:     "trace-1",
		Context:     map[string]string{"MessageSid": "SM1"},
	}

	if err := pub.PublishRecord(context.Background(), record); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	if prod.topic != "audit-topic" {
		t.Fatalf("expected topic audit-topic, got %s", prod.topic)
	}
	if string(prod.key) != "trace-1" {
		t.Fatalf("expected key trace-1, got %s", string(prod.key))
	}
	if ct := prod.headers["content-type"]; string(ct) != "application/json" {
		t.Fatalf("expected content-type header, got %s", string(ct))
	}
	if lvl := prod.headers["level"]; string(lvl) != models.LevelError {
		t.Fatalf("expected level header, got %s", string(lvl))
	}

	var decoded models.LogRecord
	if err := json.Unmarshal(prod.payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.Message != record.Message || decoded.Context["MessageSid"] != "SM1" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestRecordPublisherPropagatesError(t *testing.T) {
	prod := &fakeSyncProducer{err: errors.New("broker down")}
	pub := kafkapublisher.NewRecordPublisher(prod, "audit-topic", zerolog.Nop())

	if err := pub.PublishRecord(context.Background(), models.LogRecord{TraceID: "t"}); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestRecordPublisherNil(t *testing.T) {
	if pub := kafkapublisher.NewRecordPublisher(nil, "audit-topic", zerolog.Nop()); pub != nil {
		t.Fatalf("expected nil publisher for nil producer")
	}

	var pub *kafkapublisher.RecordPublisher
	err := pub.PublishRecord(context.Background(), models.LogRecord{})
	if !errors.Is(err, kafkapublisher.ErrProducerNotInitialised()) {
		t.Fatalf("expected not initialised error, got %v", err)
	}
}
