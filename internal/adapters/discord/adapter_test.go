package discord_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	common "github.com/ajayykmr/sms-forwarder/internal/adapters/common"
	discordadapter "github.com/ajayykmr/sms-forwarder/internal/adapters/discord"
	"github.com/ajayykmr/sms-forwarder/internal/faults"
	"github.com/ajayykmr/sms-forwarder/internal/models"
	discordprovider "github.com/ajayykmr/sms-forwarder/internal/providers/discord"
)

type stubProvider struct {
	content string
	raw     *discordprovider.RawResponse
	err     error
}

func (s *stubProvider) Send(_ context.Context, content string) (*discordprovider.RawResponse, error) {
	s.content = content
	return s.raw, s.err
}

func TestAdapterNotify(t *testing.T) {
	provider := &stubProvider{raw: &discordprovider.RawResponse{ID: "1"}}
	adapter, err := discordadapter.NewAdapter(provider, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if adapter.Route() != models.RouteDiscord {
		t.Fatalf("unexpected route %q", adapter.Route())
	}

	msg := models.ExtractedMessage{From: "+15550001111", Body: "ALERT: db down"}
	if err := adapter.Notify(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.content != "**New SMS from +15550001111**\nALERT: db down" {
		t.Fatalf("unexpected content %q", provider.content)
	}
}

func TestFormatContentTruncates(t *testing.T) {
	msg := models.ExtractedMessage{From: "+1", Body: strings.Repeat("é", 3000)}
	content := discordadapter.FormatContent(msg)
	if utf8.RuneCountInString(content) != discordadapter.MaxContentLength {
		t.Fatalf("expected %d runes, got %d", discordadapter.MaxContentLength, utf8.RuneCountInString(content))
	}
}

func TestAdapterNotifyClassification(t *testing.T) {
	cases := []struct {
		name      string
		code      int
		transient bool
	}{
		{"not found", 404, false},
		{"rate limited", 429, true},
		{"server error", 502, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &stubProvider{raw: &discordprovider.RawResponse{Code: tc.code}, err: errors.New("execute webhook failed")}
			adapter, _ := discordadapter.NewAdapter(provider, zerolog.Nop())

			err := adapter.Notify(context.Background(), models.ExtractedMessage{From: "+1", Body: "x"})
			if !faults.Is(err, faults.KindDeliveryFailed) {
				t.Fatalf("expected delivery failure, got %v", err)
			}
			if common.IsTransient(err) != tc.transient {
				t.Fatalf("expected transient=%v", tc.transient)
			}
		})
	}
}
