package audit

import (
	"context"
	"reflect"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ajayykmr/sms-forwarder/internal/models"
)

// Sink receives audit records. Emit never fails the caller; sinks deal with
// their own delivery errors.
type Sink interface {
	Emit(ctx context.Context, record models.LogRecord)
}

// LogSink writes records as structured log lines.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &LogSink{logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(_ context.Context, record models.LogRecord) {
	event := s.logger.Info()
	if record.Level == models.LevelError {
		event = s.logger.Error()
	}

	keys := make([]string, 0, len(record.Context))
	for k := range record.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ctxDict := zerolog.Dict()
	for _, k := range keys {
		ctxDict.Str(k, record.Context[k])
	}

	event.
		Time("record_time", record.Timestamp).
		Str("service_name", record.ServiceName).
		Str("trace_id", record.TraceID).
		Dict("context", ctxDict).
		Msg(record.Message)
}

// Publisher ships a record to an external system.
type Publisher interface {
	PublishRecord(ctx context.Context, record models.LogRecord) error
}

// KafkaSink ships records through a Publisher and logs publish failures.
type KafkaSink struct {
	publisher Publisher
	logger    zerolog.Logger
}

func NewKafkaSink(publisher Publisher, logger zerolog.Logger) *KafkaSink {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &KafkaSink{publisher: publisher, logger: logger}
}

// Emit implements Sink.
func (s *KafkaSink) Emit(ctx context.Context, record models.LogRecord) {
	if s == nil || s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecord(ctx, record); err != nil {
		s.logger.Warn().
			Err(err).
			Str("trace_id", record.TraceID).
			Msg("audit record publish failed")
	}
}

// Multi fans a record out to every sink in order.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(ctx context.Context, record models.LogRecord) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, record)
		}
	}
}
