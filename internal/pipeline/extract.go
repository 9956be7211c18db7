package pipeline

import (
	"github.com/ajayykmr/sms-forwarder/internal/faults"
	"github.com/ajayykmr/sms-forwarder/internal/models"
	"github.com/ajayykmr/sms-forwarder/internal/util"
)

// Extract projects the canonical record onto the three fields the router and
// notifiers need. A field the record does not carry raises MISSING_FIELD; a
// null, empty or zero one raises EMPTY_FIELD. Fields are checked in the order
// from, body, created_at.
func Extract(msg models.CanonicalMessage) (models.ExtractedMessage, error) {
	if err := checkField(msg, models.CanonicalFrom, msg.From == nil || *msg.From == ""); err != nil {
		return models.ExtractedMessage{}, err
	}
	if err := checkField(msg, models.CanonicalBody, msg.Body == nil || *msg.Body == ""); err != nil {
		return models.ExtractedMessage{}, err
	}
	if err := checkField(msg, models.CanonicalCreatedAt, msg.DateCreated == nil || msg.DateCreated.IsZero()); err != nil {
		return models.ExtractedMessage{}, err
	}

	return models.ExtractedMessage{
		CreatedAt: *msg.DateCreated,
		From:      *msg.From,
		Body:      *msg.Body,
	}, nil
}

func checkField(msg models.CanonicalMessage, field string, empty bool) error {
	if !msg.Has(field) {
		return faults.MissingField(field)
	}
	if empty {
		return faults.EmptyField(field)
	}
	return nil
}

// Sanitize reduces the raw webhook form to a log-safe audit context. The
// message id is required; the account id is cut to its last four characters.
func Sanitize(raw map[string]string) (models.AuditContext, error) {
	sid, ok := raw[models.FieldMessageSid]
	if !ok {
		return models.AuditContext{}, faults.MissingField(models.FieldMessageSid)
	}
	if sid == "" {
		return models.AuditContext{}, faults.EmptyField(models.FieldMessageSid)
	}

	return models.AuditContext{
		MessageSid:    sid,
		AccountSid:    util.LastN(raw[models.FieldAccountSid], 4),
		ApiVersion:    raw[models.FieldApiVersion],
		MessageStatus: raw[models.FieldMessageStatus],
		NumMedia:      raw[models.FieldNumMedia],
	}, nil
}
