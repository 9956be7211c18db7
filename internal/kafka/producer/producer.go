package producer

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/ajayykmr/sms-forwarder/internal/config"
	"github.com/ajayykmr/sms-forwarder/internal/models"
)

// Producer ships audit records through a Sarama sync producer. Readiness
// follows the last send and the periodic metadata refresh.
type Producer struct {
	logger zerolog.Logger

	client       sarama.Client
	syncProducer sarama.SyncProducer
	refresh      time.Duration

	ready atomic.Bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New connects to the configured brokers.
func New(cfg config.KafkaConfig, logger zerolog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka producer: at least one broker is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	refresh := cfg.MetadataRefresh()
	client, err := sarama.NewClient(cfg.Brokers, saramaConfig(refresh))
	if err != nil {
		return nil, fmt.Errorf("kafka producer: create client: %w", err)
	}

	syncProd, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka producer: create sync producer: %w", err)
	}

	p := &Producer{
		logger:       logger,
		client:       client,
		syncProducer: syncProd,
		refresh:      refresh,
		stopCh:       make(chan struct{}),
	}
	p.refreshMetadata()

	p.wg.Add(1)
	go p.watchMetadata()

	return p, nil
}

// NewWithSyncProducer wraps an existing sync producer. Readiness then follows
// send outcomes only.
func NewWithSyncProducer(sp sarama.SyncProducer, logger zerolog.Logger) (*Producer, error) {
	if sp == nil {
		return nil, errors.New("kafka producer: sync producer is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	p := &Producer{
		logger:       logger,
		syncProducer: sp,
		stopCh:       make(chan struct{}),
	}
	p.ready.Store(true)
	return p, nil
}

// PublishSync sends one record and waits for all in-sync replicas.
func (p *Producer) PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error {
	if topic == "" {
		return errors.New("kafka producer: topic is required")
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Value:   sarama.ByteEncoder(payload),
		Headers: recordHeaders(headers),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}

	partition, offset, err := p.syncProducer.SendMessage(msg)
	if err != nil {
		p.ready.Store(false)
		return fmt.Errorf("kafka producer: send sync: %w", err)
	}

	p.ready.Store(true)
	p.logger.Debug().
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("audit record acknowledged")
	return nil
}

// IsReady reports whether the last send or metadata refresh succeeded.
func (p *Producer) IsReady() bool {
	return p.ready.Load()
}

// Close stops the metadata watcher and releases the producer and client.
func (p *Producer) Close() error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	var errs []error
	if err := p.syncProducer.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.client != nil && !p.client.Closed() {
		if err := p.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Producer) watchMetadata() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.refreshMetadata()
		}
	}
}

func (p *Producer) refreshMetadata() {
	if err := p.client.RefreshMetadata(); err != nil {
		p.logger.Warn().Err(err).Msg("kafka metadata refresh failed")
		p.ready.Store(false)
		return
	}
	p.ready.Store(true)
}

func recordHeaders(headers map[string][]byte) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	out := make([]sarama.RecordHeader, 0, len(headers))
	for k, v := range headers {
		out = append(out, sarama.RecordHeader{Key: []byte(k), Value: append([]byte(nil), v...)})
	}
	return out
}

func saramaConfig(refresh time.Duration) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = models.ServiceName
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = true
	cfg.Metadata.Full = false
	cfg.Metadata.RefreshFrequency = refresh
	return cfg
}
