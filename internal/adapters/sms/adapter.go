package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	common "github.com/ajayykmr/sms-forwarder/internal/adapters/common"
	"github.com/ajayykmr/sms-forwarder/internal/models"
	smsprovider "github.com/ajayykmr/sms-forwarder/internal/providers/sms"
	"github.com/ajayykmr/sms-forwarder/internal/util"
)

// Option modifies adapter behaviour.
type Option func(*Adapter)

// WithRawBodyLimit overrides how much of the provider body to keep in receipts.
func WithRawBodyLimit(limit int) Option {
	return func(a *Adapter) {
		if limit > 0 {
			a.maxRawChars = limit
		}
	}
}

// Adapter relays extracted messages to a phone number over the text route.
type Adapter struct {
	logger      zerolog.Logger
	provider    smsprovider.Provider
	from        string
	to          string
	maxRawChars int
}

// NewAdapter constructs an SMS adapter sending from one number to another.
// Both numbers must be E.164.
func NewAdapter(provider smsprovider.Provider, from, to string, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	if provider == nil {
		return nil, errors.New("sms adapter: provider dependency is required")
	}
	to, err := util.NormalizeE164(to)
	if err != nil {
		return nil, fmt.Errorf("sms adapter: destination number: %w", err)
	}
	from, err = util.NormalizeE164(from)
	if err != nil {
		return nil, fmt.Errorf("sms adapter: sending number: %w", err)
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	a := &Adapter{
		logger:      logger,
		provider:    provider,
		from:        from,
		to:          to,
		maxRawChars: common.DefaultRawBodyLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Route implements common.Notifier.
func (a *Adapter) Route() models.Route { return models.RouteText }

// Notify sends "<sender>: <body>" to the configured number.
func (a *Adapter) Notify(ctx context.Context, msg models.ExtractedMessage) error {
	payload := &smsprovider.Payload{
		From: a.from,
		To:   a.to,
		Body: FormatBody(msg),
	}

	raw, err := a.provider.Send(ctx, payload)
	if err != nil {
		a.logger.Warn().
			Str("channel", string(models.RouteText)).
			Str("provider_body", a.truncateRaw(raw)).
			Err(err).
			Msg("sms adapter send failed")
		return wrapSMSError(raw, err)
	}

	receipt := common.Receipt{Route: models.RouteText, Status: "sent", Raw: a.truncateRaw(raw)}
	if raw != nil {
		receipt.ProviderID = raw.ID
		if raw.Status != "" {
			receipt.Status = raw.Status
		}
	}
	a.logger.Debug().Object("receipt", receipt).Msg("sms adapter send succeeded")
	return nil
}

// FormatBody renders the forwarded text.
func FormatBody(msg models.ExtractedMessage) string {
	return fmt.Sprintf("%s: %s", msg.From, msg.Body)
}

func (a *Adapter) truncateRaw(raw *smsprovider.RawResponse) string {
	if raw == nil || raw.Body == "" {
		return ""
	}
	return common.TruncateRaw(raw.Body, a.maxRawChars)
}

func wrapSMSError(raw *smsprovider.RawResponse, err error) error {
	if raw != nil {
		if code, ok := extractTwilioErrorCode(raw.Body); ok {
			switch code {
			case 21610, 21612, 21614, 21211:
				return common.WrapPermanent(models.RouteText, err)
			case 30001, 30002, 30003, 30005:
				return common.WrapTransient(models.RouteText, err)
			}
		}
		switch {
		case raw.Code >= http.StatusInternalServerError:
			return common.WrapTransient(models.RouteText, err)
		case raw.Code == http.StatusTooManyRequests:
			return common.WrapTransient(models.RouteText, err)
		case raw.Code >= http.StatusBadRequest:
			return common.WrapPermanent(models.RouteText, err)
		}
	}
	return common.Classify(models.RouteText, err)
}

func extractTwilioErrorCode(body string) (int, bool) {
	if strings.TrimSpace(body) == "" {
		return 0, false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return 0, false
	}

	val, ok := payload["code"]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case float64:
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
