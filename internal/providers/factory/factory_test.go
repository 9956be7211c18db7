package factory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/ajayykmr/sms-forwarder/internal/config"
	"github.com/ajayykmr/sms-forwarder/internal/faults"
	"github.com/ajayykmr/sms-forwarder/internal/models"
	"github.com/ajayykmr/sms-forwarder/internal/providers/factory"
	"github.com/ajayykmr/sms-forwarder/internal/secrets"
	"github.com/ajayykmr/sms-forwarder/internal/twilio"
	"github.com/ajayykmr/sms-forwarder/internal/util"
)

type fakeAPI struct{}

func (fakeAPI) FetchMessage(string, *openapi.FetchMessageParams) (*openapi.ApiV2010Message, error) {
	return nil, nil
}

func (fakeAPI) CreateMessage(*openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	return &openapi.ApiV2010Message{}, nil
}

type fakeClients struct {
	err   error
	calls int
}

func (f *fakeClients) New(config.TwilioConfig) (twilio.MessageAPI, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return fakeAPI{}, nil
}

func baseConfig() config.Config {
	var cfg config.Config
	cfg.Email.Destination = "ops@example.com"
	cfg.Email.Transport = "log"
	cfg.Timeouts.ProviderTimeoutSeconds = 5
	return cfg
}

func TestEmailNotifierLogTransport(t *testing.T) {
	f := factory.New(baseConfig(), zerolog.Nop())

	n, err := f.Notifier(context.Background(), models.RouteEmail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == nil || n.Route() != models.RouteEmail {
		t.Fatalf("expected email notifier, got %#v", n)
	}
}

func TestEmailNotifierMissingDestination(t *testing.T) {
	cfg := baseConfig()
	cfg.Email.Destination = ""

	_, err := factory.New(cfg, zerolog.Nop()).Notifier(context.Background(), models.RouteEmail)
	if !faults.Is(err, faults.KindCredentialsMissing) {
		t.Fatalf("expected credentials fault, got %v", err)
	}
}

func TestEmailNotifierGmailMissingSettings(t *testing.T) {
	cfg := baseConfig()
	cfg.Email.Transport = "gmail"

	_, err := factory.New(cfg, zerolog.Nop(), factory.WithSecrets(secrets.Static{})).
		Notifier(context.Background(), models.RouteEmail)
	if !faults.Is(err, faults.KindCredentialsMissing) {
		t.Fatalf("expected credentials fault, got %v", err)
	}
}

func TestEmailNotifierSMTPMissingHost(t *testing.T) {
	cfg := baseConfig()
	cfg.Email.Transport = "smtp"

	_, err := factory.New(cfg, zerolog.Nop()).Notifier(context.Background(), models.RouteEmail)
	if !faults.Is(err, faults.KindCredentialsMissing) {
		t.Fatalf("expected credentials fault, got %v", err)
	}
}

func TestTextNotifier(t *testing.T) {
	cfg := baseConfig()
	clients := &fakeClients{}

	n, err := factory.New(cfg, zerolog.Nop(), factory.WithTwilioClients(clients)).
		Notifier(context.Background(), models.RouteText)
	if err != nil || n != nil {
		t.Fatalf("expected unconfigured text route, got %v %v", n, err)
	}
	if clients.calls != 0 {
		t.Fatalf("client should not be built for an unconfigured route")
	}

	cfg.Text.ToNumber = "+15551112222"
	_, err = factory.New(cfg, zerolog.Nop(), factory.WithTwilioClients(clients)).
		Notifier(context.Background(), models.RouteText)
	if !faults.Is(err, faults.KindCredentialsMissing) {
		t.Fatalf("expected credentials fault without a sending number, got %v", err)
	}

	cfg.Twilio.PhoneNumber = "+15550000000"
	n, err = factory.New(cfg, zerolog.Nop(), factory.WithTwilioClients(clients)).
		Notifier(context.Background(), models.RouteText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Route() != models.RouteText {
		t.Fatalf("unexpected route %q", n.Route())
	}

	bad := cfg
	bad.Text.ToNumber = "555-111-2222"
	_, err = factory.New(bad, zerolog.Nop(), factory.WithTwilioClients(clients)).
		Notifier(context.Background(), models.RouteText)
	if !faults.Is(err, faults.KindCredentialsMissing) || !errors.Is(err, util.ErrInvalidPhone) {
		t.Fatalf("expected credentials fault for a non E.164 number, got %v", err)
	}

	clients.err = faults.CredentialsMissing("TWILIO_AUTH_TOKEN")
	_, err = factory.New(cfg, zerolog.Nop(), factory.WithTwilioClients(clients)).
		Notifier(context.Background(), models.RouteText)
	if !faults.Is(err, faults.KindCredentialsMissing) {
		t.Fatalf("expected client error to pass through, got %v", err)
	}
}

func TestDiscordNotifier(t *testing.T) {
	cfg := baseConfig()

	n, err := factory.New(cfg, zerolog.Nop()).Notifier(context.Background(), models.RouteDiscord)
	if err != nil || n != nil {
		t.Fatalf("expected unconfigured discord route, got %v %v", n, err)
	}

	cfg.Discord.WebhookURL = "https://discord.com/api/webhooks/1/tok"
	n, err = factory.New(cfg, zerolog.Nop()).Notifier(context.Background(), models.RouteDiscord)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Route() != models.RouteDiscord {
		t.Fatalf("unexpected route %q", n.Route())
	}

	cfg.Discord.WebhookURL = "https://discord.com/nowhere"
	_, err = factory.New(cfg, zerolog.Nop()).Notifier(context.Background(), models.RouteDiscord)
	if !faults.Is(err, faults.KindCredentialsMissing) {
		t.Fatalf("expected credentials fault for malformed webhook url, got %v", err)
	}
}

func TestUnsupportedRoute(t *testing.T) {
	if _, err := factory.New(baseConfig(), zerolog.Nop()).Notifier(context.Background(), models.Route("fax")); err == nil {
		t.Fatalf("expected error for unsupported route")
	}
}
