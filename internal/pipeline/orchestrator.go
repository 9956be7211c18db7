package pipeline

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	common "github.com/ajayykmr/sms-forwarder/internal/adapters/common"
	"github.com/ajayykmr/sms-forwarder/internal/audit"
	"github.com/ajayykmr/sms-forwarder/internal/config"
	"github.com/ajayykmr/sms-forwarder/internal/faults"
	"github.com/ajayykmr/sms-forwarder/internal/models"
	"github.com/ajayykmr/sms-forwarder/internal/router"
	"github.com/ajayykmr/sms-forwarder/internal/twilio"
)

// Audit messages that are not derived from a fault.
const (
	MessageInvalidSignature = "Invalid Twilio request signature"
	MessageForwarded        = "SMS forwarded successfully"
)

// SignatureValidator checks the provider signature of an inbound request.
type SignatureValidator interface {
	Validate(url string, fields map[string]string, signature string) bool
}

// ValidatorFactory builds a SignatureValidator from the provider credentials.
type ValidatorFactory func(cfg config.TwilioConfig) (SignatureValidator, error)

// ClientFactory builds an authenticated message lookup handle.
type ClientFactory interface {
	New(cfg config.TwilioConfig) (twilio.MessageAPI, error)
}

// Dependencies collects the collaborators the orchestrator needs.
type Dependencies struct {
	Twilio     config.TwilioConfig
	Validators ValidatorFactory
	Clients    ClientFactory
	Notifiers  common.Factory
	Sink       audit.Sink
	Logger     zerolog.Logger
	Now        func() time.Time
	NewTraceID func() string
}

// Orchestrator runs one inbound webhook through signature validation, fetch,
// extraction, routing and notification, and records the outcome.
type Orchestrator struct {
	twilio     config.TwilioConfig
	validators ValidatorFactory
	clients    ClientFactory
	notifiers  common.Factory
	sink       audit.Sink
	logger     zerolog.Logger
	now        func() time.Time
	newTraceID func() string
}

// NewOrchestrator validates deps and fills in defaults: twilio.NewValidator
// for signatures, a log sink for audit records, the wall clock and random
// UUID trace ids.
func NewOrchestrator(deps Dependencies) (*Orchestrator, error) {
	if deps.Clients == nil {
		return nil, errors.New("pipeline: client factory dependency is required")
	}
	if deps.Notifiers == nil {
		return nil, errors.New("pipeline: notifier factory dependency is required")
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "pipeline").Logger()

	o := &Orchestrator{
		twilio:     deps.Twilio,
		validators: deps.Validators,
		clients:    deps.Clients,
		notifiers:  deps.Notifiers,
		sink:       deps.Sink,
		logger:     logger,
		now:        deps.Now,
		newTraceID: deps.NewTraceID,
	}
	if o.validators == nil {
		o.validators = func(cfg config.TwilioConfig) (SignatureValidator, error) {
			v, err := twilio.NewValidator(cfg)
			if err != nil {
				return nil, err
			}
			return v, nil
		}
	}
	if o.sink == nil {
		o.sink = audit.NewLogSink(logger)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newTraceID == nil {
		o.newTraceID = func() string { return uuid.NewString() }
	}
	return o, nil
}

// Run processes one inbound request. Every handled outcome, success or
// failure, is reported through exactly one audit record and Run returns nil.
// Faults outside the handled set are returned for the caller to report.
func (o *Orchestrator) Run(ctx context.Context, req models.InboundRequest) error {
	traceID := o.traceID(req.Headers)
	logger := o.logger.With().
		Str("trace_id", traceID).
		Str("message_sid", req.Form[models.FieldMessageSid]).
		Logger()

	ok, err := o.process(ctx, req, logger)
	if err != nil {
		return o.handle(ctx, req, traceID, err, logger)
	}
	if !ok {
		o.emit(ctx, traceID, models.LevelError, MessageInvalidSignature, req.Form)
		return nil
	}

	o.emit(ctx, traceID, models.LevelInfo, MessageForwarded, req.Form)
	return nil
}

// process reports false without error when the signature does not match.
func (o *Orchestrator) process(ctx context.Context, req models.InboundRequest, logger zerolog.Logger) (bool, error) {
	validator, err := o.validators(o.twilio)
	if err != nil {
		return false, err
	}
	if !validator.Validate(req.URL, req.Form, req.Signature()) {
		logger.Warn().Str("url", req.URL).Msg("signature mismatch; request dropped")
		return false, nil
	}

	api, err := o.clients.New(o.twilio)
	if err != nil {
		return false, err
	}

	canonical, err := twilio.Fetch(ctx, api, req.Form[models.FieldMessageSid])
	if err != nil {
		return false, err
	}

	extracted, err := Extract(canonical)
	if err != nil {
		return false, err
	}

	classified, err := router.Classify(&extracted)
	if err != nil {
		return false, err
	}
	logger.Debug().Interface("routes", classified.Routes).Msg("message classified")

	if err := o.dispatch(ctx, *classified, logger); err != nil {
		return false, err
	}
	return true, nil
}

// dispatch notifies each route in order and stops at the first failure.
func (o *Orchestrator) dispatch(ctx context.Context, msg models.ExtractedMessage, logger zerolog.Logger) error {
	if msg.HasRoute(models.RouteEmail) {
		if err := o.notify(ctx, models.RouteEmail, msg, logger); err != nil {
			return err
		}
	}

	for _, route := range msg.Routes {
		if route == models.RouteEmail {
			continue
		}
		if err := o.notify(ctx, route, msg, logger); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, route models.Route, msg models.ExtractedMessage, logger zerolog.Logger) error {
	notifier, err := o.notifiers.Notifier(ctx, route)
	if err != nil {
		return err
	}
	if notifier == nil {
		logger.Debug().Str("route", string(route)).Msg("no channel configured; route skipped")
		return nil
	}

	start := o.now()
	if err := notifier.Notify(ctx, msg); err != nil {
		return err
	}
	logger.Info().
		Str("route", string(route)).
		Dur("duration", o.now().Sub(start)).
		Msg("notification delivered")
	return nil
}

// handle records the faults the pipeline owns and hands back everything else.
func (o *Orchestrator) handle(ctx context.Context, req models.InboundRequest, traceID string, err error, logger zerolog.Logger) error {
	kind := faults.KindOf(err)
	switch kind {
	case faults.KindCredentialsMissing,
		faults.KindClientAuthFailed,
		faults.KindClientRequired,
		faults.KindNotFound,
		faults.KindMissingField,
		faults.KindEmptyField,
		faults.KindRouteProcessing,
		faults.KindDeliveryFailed:
		logger.Warn().
			Err(err).
			Str("kind", string(kind)).
			Bool("transient", common.IsTransient(err)).
			Msg("pipeline halted")
		o.emit(ctx, traceID, models.LevelError, faults.Message(err), req.Form)
		return nil
	case faults.KindInvalidInput, faults.KindUnknown:
		return err
	}
	return err
}

func (o *Orchestrator) emit(ctx context.Context, traceID, level, message string, form map[string]string) {
	o.sink.Emit(ctx, models.LogRecord{
		Timestamp:   o.now().UTC(),
		Level:       level,
		Message:     message,
		ServiceName: models.ServiceName,
		TraceID:     traceID,
		Context:     auditContext(form),
	})
}

func auditContext(form map[string]string) map[string]string {
	sanitized, err := Sanitize(form)
	if err != nil {
		return models.FallbackAuditContext()
	}
	return sanitized.Map()
}

func (o *Orchestrator) traceID(headers http.Header) string {
	for _, name := range []string{models.HeaderRequestID, models.HeaderIdempotencyToken} {
		if v := strings.TrimSpace(headers.Get(name)); v != "" {
			return v
		}
	}
	return o.newTraceID()
}
