package email_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	emailprovider "github.com/ajayykmr/sms-forwarder/internal/providers/email"
)

func TestLogProviderSend(t *testing.T) {
	var buf bytes.Buffer
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	provider := emailprovider.NewLogProvider(zerolog.New(&buf),
		emailprovider.WithLogRandomSeed(7),
		emailprovider.WithLogClock(func() time.Time { return fixed }),
	)

	encoded := base64.URLEncoding.EncodeToString([]byte("to: ops@example.com\r\nsubject: New SMS from +1\r\n\r\nhello"))
	resp, err := provider.Send(context.Background(), encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != 250 || !strings.HasPrefix(resp.ID, "log-") {
		t.Fatalf("unexpected response %#v", resp)
	}
	if !resp.Timestamp.Equal(fixed) {
		t.Fatalf("expected fixed timestamp, got %v", resp.Timestamp)
	}
	if !strings.Contains(buf.String(), `"to":"ops@example.com"`) {
		t.Fatalf("expected recipient in log output, got %s", buf.String())
	}
}

func TestLogProviderSeedIsDeterministic(t *testing.T) {
	encoded := base64.URLEncoding.EncodeToString([]byte("to: ops@example.com\r\n\r\nhello"))

	a := emailprovider.NewLogProvider(zerolog.Nop(), emailprovider.WithLogRandomSeed(3))
	b := emailprovider.NewLogProvider(zerolog.Nop(), emailprovider.WithLogRandomSeed(3))

	ra, _ := a.Send(context.Background(), encoded)
	rb, _ := b.Send(context.Background(), encoded)
	if ra.ID != rb.ID {
		t.Fatalf("expected identical ids for identical seeds: %s vs %s", ra.ID, rb.ID)
	}
}

func TestLogProviderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := emailprovider.NewLogProvider(zerolog.Nop())
	if _, err := provider.Send(ctx, "aGk="); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
