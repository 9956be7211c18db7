package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/ajayykmr/sms-forwarder/internal/twilio"
)

// TwilioOption customises the behaviour of the Twilio SMS provider.
type TwilioOption func(*TwilioProvider)

// WithTwilioClock overrides the clock used for timestamps.
func WithTwilioClock(now func() time.Time) TwilioOption {
	return func(p *TwilioProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// TwilioProvider sends text messages through the Twilio Messages resource.
type TwilioProvider struct {
	logger zerolog.Logger
	api    twilio.MessageAPI
	now    func() time.Time
}

// NewTwilioProvider wraps an authenticated REST handle.
func NewTwilioProvider(api twilio.MessageAPI, logger zerolog.Logger, opts ...TwilioOption) (*TwilioProvider, error) {
	if api == nil || (reflect.ValueOf(api).Kind() == reflect.Ptr && reflect.ValueOf(api).IsNil()) {
		return nil, errors.New("twilio sms provider: api client is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	p := &TwilioProvider{
		logger: logger,
		api:    api,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Send creates one outbound message. The REST client has no context support so
// cancellation is only observed before the call.
func (p *TwilioProvider) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("twilio sms provider: payload is required")
	}
	if strings.TrimSpace(payload.To) == "" {
		return nil, errors.New("twilio sms provider: recipient is required")
	}
	if strings.TrimSpace(payload.From) == "" {
		return nil, errors.New("twilio sms provider: from number is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := &openapi.CreateMessageParams{}
	params.SetFrom(payload.From)
	params.SetTo(payload.To)
	params.SetBody(payload.Body)

	msg, err := p.api.CreateMessage(params)
	if err != nil {
		raw := &RawResponse{Timestamp: p.now(), Body: err.Error()}
		var restErr *client.TwilioRestError
		if errors.As(err, &restErr) {
			raw.Code = restErr.Status
			raw.Status = "failed"
			raw.Body = restErrorBody(restErr)
		}
		return raw, fmt.Errorf("twilio sms provider: create message: %w", err)
	}

	raw := &RawResponse{Code: 201, Timestamp: p.now()}
	if msg != nil {
		if msg.Sid != nil {
			raw.ID = *msg.Sid
		}
		if msg.Status != nil {
			raw.Status = *msg.Status
		}
	}
	p.logger.Debug().
		Str("provider_id", raw.ID).
		Str("provider_status", raw.Status).
		Msg("twilio message created")
	return raw, nil
}

func restErrorBody(e *client.TwilioRestError) string {
	data, err := json.Marshal(map[string]any{
		"code":    e.Code,
		"status":  e.Status,
		"message": e.Message,
	})
	if err != nil {
		return e.Message
	}
	return string(data)
}
