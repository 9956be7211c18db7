package email

import (
	"context"
	"time"
)

// RawResponse mirrors the low level transport response that adapters inspect.
type RawResponse struct {
	ID        string
	Code      int
	Body      string
	Timestamp time.Time
}

// Provider hands a base64url encoded MIME message to a mail transport.
type Provider interface {
	Send(ctx context.Context, encoded string) (*RawResponse, error)
}
