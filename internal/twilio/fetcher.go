package twilio

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/ajayykmr/sms-forwarder/internal/faults"
	"github.com/ajayykmr/sms-forwarder/internal/models"
)

// Fetch retrieves the canonical message record for sid. It never retries.
func Fetch(ctx context.Context, api MessageAPI, sid string) (models.CanonicalMessage, error) {
	if api == nil || (reflect.ValueOf(api).Kind() == reflect.Ptr && reflect.ValueOf(api).IsNil()) {
		return models.CanonicalMessage{}, faults.New(faults.KindClientRequired,
			"Twilio client required for function call", nil)
	}
	if strings.TrimSpace(sid) == "" {
		return models.CanonicalMessage{}, faults.InvalidInput(models.FieldMessageSid,
			"message sid must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return models.CanonicalMessage{}, err
	}

	msg, err := api.FetchMessage(sid, &openapi.FetchMessageParams{})
	if err != nil {
		return models.CanonicalMessage{}, classifyRestError(err, sid)
	}
	if msg == nil {
		return models.CanonicalMessage{}, faults.New(faults.KindNotFound, "Resource not found",
			map[string]any{faults.MetaMessageSID: sid})
	}
	return toCanonical(sid, msg), nil
}

func classifyRestError(err error, sid string) error {
	var restErr *client.TwilioRestError
	if !errors.As(err, &restErr) {
		return err
	}
	meta := map[string]any{
		faults.MetaMessageSID: sid,
		"twilio_code":         restErr.Code,
		"twilio_status":       restErr.Status,
	}
	switch restErr.Status {
	case http.StatusNotFound:
		return faults.Wrap(err, faults.KindNotFound, "Resource not found", meta)
	case http.StatusUnauthorized, http.StatusForbidden:
		return faults.Wrap(err, faults.KindClientAuthFailed, "Twilio client authentication failed", meta)
	default:
		return err
	}
}

// toCanonical never marks a field absent: the message resource always carries
// every key, so a nil pointer is a null value.
func toCanonical(sid string, msg *openapi.ApiV2010Message) models.CanonicalMessage {
	out := models.CanonicalMessage{
		SID:         sid,
		From:        msg.From,
		To:          msg.To,
		Body:        msg.Body,
		Status:      msg.Status,
		NumMedia:    msg.NumMedia,
		NumSegments: msg.NumSegments,
		Direction:   msg.Direction,
		DateCreated: parseDate(msg.DateCreated),
	}
	if msg.Sid != nil && *msg.Sid != "" {
		out.SID = *msg.Sid
	}
	if msg.AccountSid != nil {
		out.AccountSID = *msg.AccountSid
	}
	return out
}

// parseDate keeps a null date nil and turns an empty or unparseable one into
// the zero time.
func parseDate(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	var ts time.Time
	value := strings.TrimSpace(*raw)
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			ts = parsed
			break
		}
	}
	return &ts
}
