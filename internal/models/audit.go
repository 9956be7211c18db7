package models

import "time"

// Log levels carried by audit records.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// ServiceName identifies this service in audit records.
const ServiceName = "sms-forwarder"

// NotFoundMessageSID stands in for the message id when the inbound payload
// cannot be sanitized.
const NotFoundMessageSID = "Not Found"

// FallbackAuditContext is logged when sanitizing the inbound payload fails.
func FallbackAuditContext() map[string]string {
	return map[string]string{"MessageSid": NotFoundMessageSID}
}

// AuditContext is the log-safe projection of an inbound webhook. It never
// carries the message body, phone numbers or the full account id.
type AuditContext struct {
	MessageSid    string `json:"MessageSid"`
	AccountSid    string `json:"AccountSid,omitempty"`
	ApiVersion    string `json:"ApiVersion,omitempty"`
	MessageStatus string `json:"MessageStatus,omitempty"`
	NumMedia      string `json:"NumMedia,omitempty"`
}

// Map flattens the context for structured log fields.
func (c AuditContext) Map() map[string]string {
	return map[string]string{
		"MessageSid":    c.MessageSid,
		"AccountSid":    c.AccountSid,
		"ApiVersion":    c.ApiVersion,
		"MessageStatus": c.MessageStatus,
		"NumMedia":      c.NumMedia,
	}
}

// LogRecord is a write-once audit entry produced at each pipeline decision
// point.
type LogRecord struct {
	Timestamp   time.Time         `json:"timestamp"`
	Level       string            `json:"level"`
	Message     string            `json:"message"`
	ServiceName string            `json:"service_name"`
	TraceID     string            `json:"trace_id"`
	Context     map[string]string `json:"context"`
}
