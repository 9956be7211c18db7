package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/ajayykmr/sms-forwarder/internal/config"
	"github.com/ajayykmr/sms-forwarder/internal/util"
)

// RawResponse describes what Discord returned for a webhook execution.
type RawResponse struct {
	ID        string
	Code      int
	Body      string
	Timestamp time.Time
}

// Provider posts plain content to a channel.
type Provider interface {
	Send(ctx context.Context, content string) (*RawResponse, error)
}

// WebhookOption customises the webhook provider.
type WebhookOption func(*WebhookProvider)

// WithWebhookHTTPClient overrides the HTTP client used by the Discord session.
func WithWebhookHTTPClient(c *http.Client) WebhookOption {
	return func(p *WebhookProvider) {
		if c != nil {
			p.session.Client = c
		}
	}
}

// WithWebhookClock overrides the clock used for timestamps.
func WithWebhookClock(now func() time.Time) WebhookOption {
	return func(p *WebhookProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WebhookProvider executes a Discord channel webhook.
type WebhookProvider struct {
	logger    zerolog.Logger
	session   *discordgo.Session
	webhookID string
	token     string
	username  string
	now       func() time.Time
}

// ParseWebhookURL splits a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token> into its id and token.
func ParseWebhookURL(raw string) (string, string, error) {
	valid, err := util.ValidateHTTPURL(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord provider: webhook url: %w", err)
	}
	u, err := url.Parse(valid)
	if err != nil {
		return "", "", fmt.Errorf("discord provider: parse webhook url: %w", err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", errors.New("discord provider: webhook url must contain /webhooks/<id>/<token>")
}

// NewWebhookProvider constructs a provider for the configured webhook URL.
func NewWebhookProvider(cfg config.DiscordConfig, logger zerolog.Logger, opts ...WebhookOption) (*WebhookProvider, error) {
	id, token, err := ParseWebhookURL(cfg.WebhookURL)
	if err != nil {
		return nil, err
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord provider: new session: %w", err)
	}
	session.MaxRestRetries = 0
	session.ShouldRetryOnRateLimit = false
	session.Client = &http.Client{Timeout: 30 * time.Second}

	p := &WebhookProvider{
		logger:    logger,
		session:   session,
		webhookID: id,
		token:     token,
		username:  strings.TrimSpace(cfg.Username),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Send executes the webhook and waits for Discord to return the created
// message.
func (p *WebhookProvider) Send(ctx context.Context, content string) (*RawResponse, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("discord provider: content is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := &discordgo.WebhookParams{
		Content:         content,
		Username:        p.username,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}

	msg, err := p.session.WebhookExecute(p.webhookID, p.token, true, params, discordgo.WithContext(ctx))
	if err != nil {
		raw := &RawResponse{Body: err.Error(), Timestamp: p.now()}
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) {
			if restErr.Response != nil {
				raw.Code = restErr.Response.StatusCode
			}
			if len(restErr.ResponseBody) > 0 {
				raw.Body = string(restErr.ResponseBody)
			}
		}
		return raw, fmt.Errorf("discord provider: execute webhook: %w", err)
	}

	raw := &RawResponse{Code: http.StatusOK, Timestamp: p.now()}
	if msg != nil {
		raw.ID = msg.ID
	}
	p.logger.Debug().Str("discord_message_id", raw.ID).Msg("discord webhook executed")
	return raw, nil
}
