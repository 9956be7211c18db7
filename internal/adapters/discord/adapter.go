package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"unicode/utf8"

	"github.com/rs/zerolog"

	common "github.com/ajayykmr/sms-forwarder/internal/adapters/common"
	"github.com/ajayykmr/sms-forwarder/internal/models"
	discordprovider "github.com/ajayykmr/sms-forwarder/internal/providers/discord"
)

// MaxContentLength is the Discord limit on message content.
const MaxContentLength = 2000

// Adapter posts extracted messages to a Discord channel.
type Adapter struct {
	logger   zerolog.Logger
	provider discordprovider.Provider
}

func NewAdapter(provider discordprovider.Provider, logger zerolog.Logger) (*Adapter, error) {
	if provider == nil {
		return nil, errors.New("discord adapter: provider dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Adapter{logger: logger, provider: provider}, nil
}

func (a *Adapter) Route() models.Route { return models.RouteDiscord }

func (a *Adapter) Notify(ctx context.Context, msg models.ExtractedMessage) error {
	raw, err := a.provider.Send(ctx, FormatContent(msg))
	if err != nil {
		a.logger.Warn().
			Str("channel", string(models.RouteDiscord)).
			Err(err).
			Msg("discord adapter send failed")
		return wrapDiscordError(raw, err)
	}

	receipt := common.Receipt{Route: models.RouteDiscord, Status: "sent"}
	if raw != nil {
		receipt.ProviderID = raw.ID
	}
	a.logger.Debug().Object("receipt", receipt).Msg("discord adapter send succeeded")
	return nil
}

// FormatContent renders the channel message, cut to MaxContentLength runes.
func FormatContent(msg models.ExtractedMessage) string {
	content := fmt.Sprintf("**New SMS from %s**\n%s", msg.From, msg.Body)
	if utf8.RuneCountInString(content) > MaxContentLength {
		content = common.TruncateRaw(content, MaxContentLength)
	}
	return content
}

func wrapDiscordError(raw *discordprovider.RawResponse, err error) error {
	if raw != nil {
		switch {
		case raw.Code == http.StatusTooManyRequests, raw.Code >= http.StatusInternalServerError:
			return common.WrapTransient(models.RouteDiscord, err)
		case raw.Code >= http.StatusBadRequest:
			return common.WrapPermanent(models.RouteDiscord, err)
		}
	}
	return common.Classify(models.RouteDiscord, err)
}
