package sms

import (
	"context"
	"time"
)

// Payload is a single outbound text message.
type Payload struct {
	From string
	To   string
	Body string
}

// RawResponse describes the low-level provider response returned after an SMS
// has been processed.
type RawResponse struct {
	ID        string
	Code      int
	Status    string
	Body      string
	Timestamp time.Time
}

// Provider represents an outbound SMS provider (e.g. Twilio).
type Provider interface {
	Send(ctx context.Context, payload *Payload) (*RawResponse, error)
}
