package factory

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	common "github.com/ajayykmr/sms-forwarder/internal/adapters/common"
	discordadapter "github.com/ajayykmr/sms-forwarder/internal/adapters/discord"
	emailadapter "github.com/ajayykmr/sms-forwarder/internal/adapters/email"
	smsadapter "github.com/ajayykmr/sms-forwarder/internal/adapters/sms"
	"github.com/ajayykmr/sms-forwarder/internal/config"
	"github.com/ajayykmr/sms-forwarder/internal/faults"
	"github.com/ajayykmr/sms-forwarder/internal/models"
	discordprovider "github.com/ajayykmr/sms-forwarder/internal/providers/discord"
	emailprovider "github.com/ajayykmr/sms-forwarder/internal/providers/email"
	smsprovider "github.com/ajayykmr/sms-forwarder/internal/providers/sms"
	"github.com/ajayykmr/sms-forwarder/internal/secrets"
	"github.com/ajayykmr/sms-forwarder/internal/twilio"
)

// TwilioClients builds authenticated Twilio REST handles.
type TwilioClients interface {
	New(cfg config.TwilioConfig) (twilio.MessageAPI, error)
}

// Option customises the factory.
type Option func(*Factory)

// WithTwilioClients overrides how Twilio REST handles are built.
func WithTwilioClients(c TwilioClients) Option {
	return func(f *Factory) {
		if c != nil {
			f.twilio = c
		}
	}
}

// WithSecrets overrides the secret source used by the gmail transport.
func WithSecrets(src secrets.Source) Option {
	return func(f *Factory) {
		if src != nil {
			f.secrets = src
		}
	}
}

// WithGmailOptions appends options applied to every gmail provider.
func WithGmailOptions(opts ...emailprovider.GmailOption) Option {
	return func(f *Factory) {
		f.gmailOpts = append(f.gmailOpts, opts...)
	}
}

// WithSMTPOptions appends options applied to every smtp provider.
func WithSMTPOptions(opts ...emailprovider.SMTPOption) Option {
	return func(f *Factory) {
		f.smtpOpts = append(f.smtpOpts, opts...)
	}
}

// WithDiscordOptions appends options applied to every discord provider.
func WithDiscordOptions(opts ...discordprovider.WebhookOption) Option {
	return func(f *Factory) {
		f.discordOpts = append(f.discordOpts, opts...)
	}
}

// Factory builds the notifier for each route from configuration. A fresh
// notifier is built per call.
type Factory struct {
	cfg    config.Config
	logger zerolog.Logger

	twilio      TwilioClients
	secrets     secrets.Source
	gmailOpts   []emailprovider.GmailOption
	smtpOpts    []emailprovider.SMTPOption
	discordOpts []discordprovider.WebhookOption
}

// New constructs a Factory. Without options it talks to the real Twilio,
// Secret Manager and Discord endpoints with the configured provider timeout.
func New(cfg config.Config, logger zerolog.Logger, opts ...Option) *Factory {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	timeout := cfg.Timeouts.ProviderTimeout()

	f := &Factory{
		cfg:       cfg,
		logger:    logger,
		twilio:    twilio.NewClientFactory(twilio.WithTimeout(timeout)),
		secrets:   secrets.NewSecretManager(logger.With().Str("component", "secrets").Logger()),
		gmailOpts: []emailprovider.GmailOption{emailprovider.WithGmailHTTPClient(&http.Client{Timeout: timeout})},
		discordOpts: []discordprovider.WebhookOption{
			discordprovider.WithWebhookHTTPClient(&http.Client{Timeout: timeout}),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Notifier implements common.Factory. It returns nil for the text and discord
// routes when they are not configured. The email route is always configured;
// a missing destination is a credentials fault.
func (f *Factory) Notifier(ctx context.Context, route models.Route) (common.Notifier, error) {
	switch route {
	case models.RouteEmail:
		return f.email(ctx)
	case models.RouteText:
		return f.text()
	case models.RouteDiscord:
		return f.discord()
	default:
		return nil, fmt.Errorf("factory: unsupported route %q", route)
	}
}

func (f *Factory) email(ctx context.Context) (common.Notifier, error) {
	if strings.TrimSpace(f.cfg.Email.Destination) == "" {
		return nil, faults.New(faults.KindCredentialsMissing,
			"Missing required environment variables.",
			map[string]any{"missing": []string{"MY_EMAIL"}})
	}

	logger := f.logger.With().Str("channel", string(models.RouteEmail)).Logger()
	var (
		provider emailprovider.Provider
		err      error
	)
	switch f.cfg.Email.Transport {
	case "smtp":
		provider, err = emailprovider.NewSMTPProvider(f.cfg.Email.SMTP, logger, f.smtpOpts...)
		if err != nil {
			return nil, faults.Wrap(err, faults.KindCredentialsMissing,
				"Missing required environment variables.",
				map[string]any{"missing": []string{"SMTP_HOST", "SMTP_PORT", "SMTP_FROM"}})
		}
	case "log":
		provider = emailprovider.NewLogProvider(logger)
	default:
		provider, err = emailprovider.NewGmailProvider(ctx, f.cfg.Email, f.secrets, logger, f.gmailOpts...)
		if err != nil {
			return nil, err
		}
	}

	logger.Debug().Str("backend", backendName(f.cfg.Email.Transport)).Msg("email provider initialised")
	adapter, err := emailadapter.NewAdapter(provider, strings.TrimSpace(f.cfg.Email.Destination), logger)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

func (f *Factory) text() (common.Notifier, error) {
	if strings.TrimSpace(f.cfg.Text.ToNumber) == "" {
		return nil, nil
	}
	if strings.TrimSpace(f.cfg.Twilio.PhoneNumber) == "" {
		return nil, faults.CredentialsMissing("TWILIO_PHONE_NUMBER")
	}

	api, err := f.twilio.New(f.cfg.Twilio)
	if err != nil {
		return nil, err
	}
	logger := f.logger.With().Str("channel", string(models.RouteText)).Logger()
	provider, err := smsprovider.NewTwilioProvider(api, logger)
	if err != nil {
		return nil, faults.Wrap(err, faults.KindClientRequired, "Twilio client required for function call", nil)
	}
	adapter, err := smsadapter.NewAdapter(provider, f.cfg.Twilio.PhoneNumber, f.cfg.Text.ToNumber, logger)
	if err != nil {
		return nil, faults.Wrap(err, faults.KindCredentialsMissing,
			"Text route phone numbers are invalid",
			map[string]any{"missing": []string{"TWILIO_PHONE_NUMBER", "TEXT_TO_NUMBER"}})
	}
	return adapter, nil
}

func (f *Factory) discord() (common.Notifier, error) {
	if strings.TrimSpace(f.cfg.Discord.WebhookURL) == "" {
		return nil, nil
	}
	logger := f.logger.With().Str("channel", string(models.RouteDiscord)).Logger()
	provider, err := discordprovider.NewWebhookProvider(f.cfg.Discord, logger, f.discordOpts...)
	if err != nil {
		return nil, faults.Wrap(err, faults.KindCredentialsMissing,
			"Discord webhook URL is invalid",
			map[string]any{"missing": []string{"DISCORD_WEBHOOK_URL"}})
	}
	adapter, err := discordadapter.NewAdapter(provider, logger)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}

func backendName(transport string) string {
	if transport == "" {
		return "gmail"
	}
	return transport
}
