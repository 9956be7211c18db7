package secrets_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ajayykmr/sms-forwarder/internal/secrets"
)

func TestVersionName(t *testing.T) {
	got := secrets.VersionName("proj-1", "gmail-sa")
	if got != "projects/proj-1/secrets/gmail-sa/versions/latest" {
		t.Fatalf("unexpected version name %q", got)
	}
}

func TestStaticSource(t *testing.T) {
	src := secrets.Static{
		secrets.VersionName("p", "s"): []byte(`{"type":"service_account"}`),
	}

	data, err := src.Access(context.Background(), "p", "s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"type":"service_account"}` {
		t.Fatalf("unexpected payload %q", data)
	}

	if _, err := src.Access(context.Background(), "p", "missing"); err == nil {
		t.Fatalf("expected error for unknown secret")
	}
}

func TestSecretManagerRequiresNames(t *testing.T) {
	sm := secrets.NewSecretManager(zerolog.Nop())
	if _, err := sm.Access(context.Background(), "", "s"); err == nil {
		t.Fatalf("expected error for empty project id")
	}
	if _, err := sm.Access(context.Background(), "p", " "); err == nil {
		t.Fatalf("expected error for empty secret name")
	}
}
