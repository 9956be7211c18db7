package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the SMS forwarder. Provider
// credentials are optional at load time; the components that need them report
// a credentials fault when they are absent.
type Config struct {
	App      AppConfig
	Twilio   TwilioConfig
	Email    EmailConfig
	Text     TextConfig
	Discord  DiscordConfig
	Kafka    KafkaConfig
	Timeouts TimeoutConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env                    string `env:"APP_ENV"                  envDefault:"development"`
	Port                   int    `env:"APP_PORT"                 envDefault:"8080"`
	LogLevel               string `env:"LOG_LEVEL"                envDefault:"info"`
	WebhookPath            string `env:"WEBHOOK_PATH"             envDefault:"/webhooks/twilio"`
	PublicBaseURL          string `env:"PUBLIC_BASE_URL"`
	ShutdownTimeoutSeconds int    `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"15"`
}

// TwilioConfig stores Twilio credentials used for signature validation,
// message lookup and outbound texts.
type TwilioConfig struct {
	AccountSID  string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken   string `env:"TWILIO_AUTH_TOKEN"`
	PhoneNumber string `env:"TWILIO_PHONE_NUMBER"`
	// APIBaseURL redirects REST calls, used against local fakes.
	APIBaseURL string `env:"TWILIO_API_BASE_URL"`
}

// SMTPConfig stores SMTP credentials for the smtp mail transport.
type SMTPConfig struct {
	Host string `env:"SMTP_HOST"`
	Port int    `env:"SMTP_PORT" envDefault:"587"`
	User string `env:"SMTP_USER"`
	Pass string `env:"SMTP_PASS"`
	From string `env:"SMTP_FROM"`
}

// EmailConfig describes the email route: where forwarded messages go and
// which transport carries them.
type EmailConfig struct {
	Destination   string `env:"MY_EMAIL"`
	Transport     string `env:"EMAIL_TRANSPORT"      envDefault:"gmail"`
	DelegatedUser string `env:"DELEGATED_USER_EMAIL"`
	ProjectID     string `env:"PROJECT_ID"`
	SecretName    string `env:"SECRET_NAME"`
	SMTP          SMTPConfig
}

// TextConfig enables the text route when a destination number is set.
type TextConfig struct {
	ToNumber string `env:"TEXT_TO_NUMBER"`
}

// DiscordConfig enables the discord route when a webhook URL is set.
type DiscordConfig struct {
	WebhookURL string `env:"DISCORD_WEBHOOK_URL"`
	Username   string `env:"DISCORD_USERNAME" envDefault:"sms-forwarder"`
}

// KafkaConfig enables shipping audit records to Kafka when brokers are set.
type KafkaConfig struct {
	Brokers                []string `env:"KAFKA_BROKERS"                   envSeparator:","`
	AuditTopic             string   `env:"KAFKA_AUDIT_TOPIC"               envDefault:"sms-forwarder.audit"`
	MetadataRefreshSeconds int      `env:"KAFKA_METADATA_REFRESH_SECONDS" envDefault:"30"`
}

// MetadataRefresh returns how often broker metadata is refreshed.
func (k KafkaConfig) MetadataRefresh() time.Duration {
	if k.MetadataRefreshSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(k.MetadataRefreshSeconds) * time.Second
}

// TimeoutConfig contains timeout thresholds for outbound providers.
type TimeoutConfig struct {
	ProviderTimeoutSeconds int `env:"PROVIDER_TIMEOUT_SECONDS" envDefault:"30"`
	TaskTimeoutSeconds     int `env:"TASK_TIMEOUT_SECONDS"     envDefault:"120"`
}

// ProviderTimeout returns the outbound call timeout.
func (t TimeoutConfig) ProviderTimeout() time.Duration {
	return time.Duration(t.ProviderTimeoutSeconds) * time.Second
}

// TaskTimeout bounds one background pipeline run.
func (t TimeoutConfig) TaskTimeout() time.Duration {
	return time.Duration(t.TaskTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns how long shutdown waits for in-flight work.
func (a AppConfig) ShutdownTimeout() time.Duration {
	return time.Duration(a.ShutdownTimeoutSeconds) * time.Second
}

// Load reads environment variables (optionally from a .env file), applies
// defaults and validates the values that have to be well formed.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, describeParseError(err)
	}

	cfg.Kafka.Brokers = compact(cfg.Kafka.Brokers)
	cfg.Email.Transport = strings.ToLower(strings.TrimSpace(cfg.Email.Transport))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []string
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Sprintf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if !strings.HasPrefix(c.App.WebhookPath, "/") {
		errs = append(errs, "WEBHOOK_PATH must start with /")
	}
	switch c.Email.Transport {
	case "gmail", "smtp", "log":
	default:
		errs = append(errs, fmt.Sprintf("EMAIL_TRANSPORT must be gmail, smtp or log, got %q", c.Email.Transport))
	}
	if c.Timeouts.ProviderTimeoutSeconds <= 0 {
		errs = append(errs, "PROVIDER_TIMEOUT_SECONDS must be positive")
	}
	if c.Timeouts.TaskTimeoutSeconds < 0 {
		errs = append(errs, "TASK_TIMEOUT_SECONDS must not be negative")
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// describeParseError names the environment variable behind each field env
// failed to parse. A field name shared by several groups resolves to the
// variables whose value fails on its own.
func describeParseError(err error) error {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return fmt.Errorf("config: parse env: %w", err)
	}

	keys := envKeys(reflect.TypeOf(Config{}), map[string][]string{})
	msgs := make([]string, 0, len(agg.Errors))
	for _, e := range agg.Errors {
		var perr env.ParseError
		if errors.As(e, &perr) {
			if names := failingKeys(keys[perr.Name]); len(names) > 0 {
				msgs = append(msgs, fmt.Sprintf("%s: %v", strings.Join(names, " or "), perr.Err))
				continue
			}
		}
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("config: parse env: %s: %w", strings.Join(msgs, "; "), err)
}

func envKeys(t reflect.Type, out map[string][]string) map[string][]string {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key, _, _ := strings.Cut(f.Tag.Get("env"), ",")
		if key == "" && f.Type.Kind() == reflect.Struct {
			envKeys(f.Type, out)
			continue
		}
		if key != "" {
			out[f.Name] = append(out[f.Name], key)
		}
	}
	return out
}

func failingKeys(keys []string) []string {
	var bad []string
	for _, k := range keys {
		v, ok := os.LookupEnv(k)
		if !ok {
			continue
		}
		only := env.Options{Environment: map[string]string{k: v}}
		if err := env.ParseWithOptions(&Config{}, only); err != nil {
			bad = append(bad, k)
		}
	}
	if len(bad) == 0 {
		return keys
	}
	return bad
}
