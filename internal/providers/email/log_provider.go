package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/mail"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogProvider accepts every message and writes its headers to the logger
// without contacting a mail server. It backs EMAIL_TRANSPORT=log for local
// development.
type LogProvider struct {
	logger zerolog.Logger
	now    func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// LogOption customises the log provider.
type LogOption func(*LogProvider)

// WithLogClock overrides the clock used for timestamps.
func WithLogClock(now func() time.Time) LogOption {
	return func(p *LogProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogRandomSeed fixes the seed used when generating message ids.
func WithLogRandomSeed(seed int64) LogOption {
	return func(p *LogProvider) {
		p.rnd = rand.New(rand.NewSource(seed)) // #nosec G404 -- ids only.
	}
}

// NewLogProvider constructs a LogProvider.
func NewLogProvider(logger zerolog.Logger, opts ...LogOption) *LogProvider {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	p := &LogProvider{
		logger: logger,
		now:    time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Send decodes the message, logs its envelope and reports it as queued.
func (p *LogProvider) Send(ctx context.Context, encoded string) (*RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := decodeRaw(encoded)
	if err != nil {
		return nil, fmt.Errorf("log provider: decode message: %w", err)
	}
	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("log provider: parse message: %w", err)
	}
	body, _ := io.ReadAll(parsed.Body)

	id := p.nextID()
	p.logger.Info().
		Str("provider", "log").
		Str("id", id).
		Str("to", parsed.Header.Get("To")).
		Str("subject", parsed.Header.Get("Subject")).
		Int("body_bytes", len(body)).
		Msg("email accepted by log transport")

	return &RawResponse{
		ID:        id,
		Code:      250,
		Body:      "log: message queued",
		Timestamp: p.now(),
	}, nil
}

func (p *LogProvider) nextID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("log-%08x", p.rnd.Uint32())
}
