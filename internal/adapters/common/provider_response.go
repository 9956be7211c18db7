package common

import (
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/ajayykmr/sms-forwarder/internal/models"
)

// DefaultRawBodyLimit defines the maximum number of characters retained from a
// provider response body when attaching it to a Receipt.
const DefaultRawBodyLimit = 1024

// Receipt captures what a provider reported after accepting a message.
type Receipt struct {
	Route      models.Route `json:"route"`
	ProviderID string       `json:"provider_id,omitempty"`
	Status     string       `json:"status"`
	Raw        string       `json:"raw,omitempty"`
}

// MarshalZerologObject lets receipts be attached to log events.
func (r Receipt) MarshalZerologObject(e *zerolog.Event) {
	e.Str("route", string(r.Route)).Str("status", r.Status)
	if r.ProviderID != "" {
		e.Str("provider_id", r.ProviderID)
	}
}

// TruncateRaw trims the supplied string to the specified rune limit. If limit
// is zero or negative it returns an empty string.
func TruncateRaw(raw string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit])
}
