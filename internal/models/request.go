package models

import "net/http"

// Inbound webhook form field names as posted by Twilio.
const (
	FieldSmsSid        = "SmsSid"
	FieldSmsStatus     = "SmsStatus"
	FieldMessageSid    = "MessageSid"
	FieldAccountSid    = "AccountSid"
	FieldFrom          = "From"
	FieldApiVersion    = "ApiVersion"
	FieldSmsMessageSid = "SmsMessageSid"
	FieldNumSegments   = "NumSegments"
	FieldTo            = "To"
	FieldBody          = "Body"
	FieldNumMedia      = "NumMedia"
	FieldMessageStatus = "MessageStatus"
	FieldForwardedFrom = "ForwardedFrom"
)

// RequiredWebhookFields lists the form fields every inbound SMS webhook must
// carry. Order is the order validation errors are reported in.
var RequiredWebhookFields = []string{
	FieldSmsSid,
	FieldSmsStatus,
	FieldMessageSid,
	FieldAccountSid,
	FieldFrom,
	FieldApiVersion,
	FieldSmsMessageSid,
	FieldNumSegments,
	FieldTo,
	FieldBody,
	FieldNumMedia,
}

// WebhookPayload is the typed view of an inbound SMS webhook. The geolocation
// fields are optional and may be empty.
type WebhookPayload struct {
	SmsSid        string `json:"SmsSid"`
	SmsStatus     string `json:"SmsStatus"`
	MessageSid    string `json:"MessageSid"`
	AccountSid    string `json:"AccountSid"`
	From          string `json:"From"`
	ApiVersion    string `json:"ApiVersion"`
	SmsMessageSid string `json:"SmsMessageSid"`
	NumSegments   string `json:"NumSegments"`
	To            string `json:"To"`
	Body          string `json:"Body"`
	NumMedia      string `json:"NumMedia"`

	ForwardedFrom string `json:"ForwardedFrom,omitempty"`
	MessageStatus string `json:"MessageStatus,omitempty"`
	FromZip       string `json:"FromZip,omitempty"`
	FromCity      string `json:"FromCity,omitempty"`
	FromState     string `json:"FromState,omitempty"`
	FromCountry   string `json:"FromCountry,omitempty"`
	ToZip         string `json:"ToZip,omitempty"`
	ToCity        string `json:"ToCity,omitempty"`
	ToState       string `json:"ToState,omitempty"`
	ToCountry     string `json:"ToCountry,omitempty"`
}

// PayloadFromForm projects the raw form into the typed payload.
func PayloadFromForm(form map[string]string) WebhookPayload {
	return WebhookPayload{
		SmsSid:        form[FieldSmsSid],
		SmsStatus:     form[FieldSmsStatus],
		MessageSid:    form[FieldMessageSid],
		AccountSid:    form[FieldAccountSid],
		From:          form[FieldFrom],
		ApiVersion:    form[FieldApiVersion],
		SmsMessageSid: form[FieldSmsMessageSid],
		NumSegments:   form[FieldNumSegments],
		To:            form[FieldTo],
		Body:          form[FieldBody],
		NumMedia:      form[FieldNumMedia],
		ForwardedFrom: form[FieldForwardedFrom],
		MessageStatus: form[FieldMessageStatus],
		FromZip:       form["FromZip"],
		FromCity:      form["FromCity"],
		FromState:     form["FromState"],
		FromCountry:   form["FromCountry"],
		ToZip:         form["ToZip"],
		ToCity:        form["ToCity"],
		ToState:       form["ToState"],
		ToCountry:     form["ToCountry"],
	}
}

// InboundRequest is everything the pipeline receives from the HTTP layer: the
// URL the provider signed, the original headers and the untouched form fields.
type InboundRequest struct {
	URL     string
	Headers http.Header
	Form    map[string]string
}

// Signature returns the provider signature header value.
func (r InboundRequest) Signature() string {
	return r.Headers.Get(HeaderTwilioSignature)
}

// Header names read from inbound webhook requests.
const (
	HeaderTwilioSignature  = "X-Twilio-Signature"
	HeaderRequestID        = "X-Request-Id"
	HeaderIdempotencyToken = "I-Twilio-Idempotency-Token"
)
