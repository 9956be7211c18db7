package common

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ajayykmr/sms-forwarder/internal/models"
)

func TestTruncateRaw(t *testing.T) {
	raw := "こんにちは世界" // 7 runes

	if got := TruncateRaw(raw, 10); got != raw {
		t.Fatalf("expected raw string unchanged when under limit, got %q", got)
	}

	if got := TruncateRaw(raw, 3); got != "こんに" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}

	if got := TruncateRaw(raw, 0); got != "" {
		t.Fatalf("expected empty string for non-positive limit, got %q", got)
	}
}

func TestReceiptLogFields(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	log.Info().Object("receipt", Receipt{Route: models.RouteText, ProviderID: "SM1", Status: "queued"}).Msg("sent")

	out := buf.String()
	for _, want := range []string{`"route":"text"`, `"provider_id":"SM1"`, `"status":"queued"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}
