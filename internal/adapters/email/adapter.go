package email

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"

	common "github.com/ajayykmr/sms-forwarder/internal/adapters/common"
	"github.com/ajayykmr/sms-forwarder/internal/models"
	emailprovider "github.com/ajayykmr/sms-forwarder/internal/providers/email"
)

var smtpErrPattern = regexp.MustCompile(`smtp\s+(\d{3})`)

// Option customises adapter behaviour.
type Option func(*Adapter)

// WithRawBodyLimit overrides the maximum number of characters retained from the
// provider raw response.
func WithRawBodyLimit(limit int) Option {
	return func(a *Adapter) {
		if limit > 0 {
			a.maxRawChars = limit
		}
	}
}

// Adapter forwards extracted messages to a fixed mailbox over an email
// provider.
type Adapter struct {
	logger      zerolog.Logger
	provider    emailprovider.Provider
	destination string
	maxRawChars int
}

// NewAdapter constructs an email adapter delivering to destination.
func NewAdapter(provider emailprovider.Provider, destination string, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	if provider == nil {
		return nil, errors.New("email adapter: provider dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	a := &Adapter{
		logger:      logger,
		provider:    provider,
		destination: destination,
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
func (a *Adapter) Route() models.Route { return models.RouteEmail }

// Notify builds the MIME message for msg and hands it to the provider.
// Malformed arguments surface as INVALID_INPUT; provider failures as
// DELIVERY_FAILED classified transient or permanent.
func (a *Adapter) Notify(ctx context.Context, msg models.ExtractedMessage) error {
	encoded, err := BuildMessage(a.destination, Subject(msg.From), msg.Body)
	if err != nil {
		return err
	}

	raw, err := a.provider.Send(ctx, encoded)
	if err != nil {
		a.logger.Info().
			Str("channel", string(models.RouteEmail)).
			Str("provider_body", a.truncateRaw(raw)).
			Err(err).
			Msg("email adapter send failed")
		return a.wrapError(err, raw)
	}

	receipt := common.Receipt{Route: models.RouteEmail, Status: "sent", Raw: a.truncateRaw(raw)}
	if raw != nil {
		receipt.ProviderID = raw.ID
	}
	a.logger.Debug().Object("receipt", receipt).Msg("email adapter send succeeded")
	return nil
}

func (a *Adapter) wrapError(err error, raw *emailprovider.RawResponse) error {
	code, ok := extractSMTPCode(err)
	if !ok && raw != nil && raw.Code > 0 {
		code = raw.Code
		ok = true
	}

	switch {
	case ok && isPermanentCode(code):
		return common.WrapPermanent(models.RouteEmail, err)
	case common.IsTimeout(err):
		return common.WrapTransient(models.RouteEmail, err)
	case ok && code >= 400 && code < 500:
		return common.WrapTransient(models.RouteEmail, err)
	default:
		return common.Classify(models.RouteEmail, err)
	}
}

func (a *Adapter) truncateRaw(raw *emailprovider.RawResponse) string {
	if raw == nil || raw.Body == "" {
		return ""
	}
	return common.TruncateRaw(raw.Body, a.maxRawChars)
}

func extractSMTPCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	matches := smtpErrPattern.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0, false
	}
	code, convErr := strconv.Atoi(matches[1])
	if convErr != nil {
		return 0, false
	}
	return code, true
}

func isPermanentCode(code int) bool {
	switch code {
	case 530, 535, 550, 551, 553:
		return true
	default:
		return false
	}
}
