package common

import (
	"context"

	"github.com/ajayykmr/sms-forwarder/internal/models"
)

// Notifier forwards an extracted message over a single route. Implementations
// translate the message into a provider payload and classify failures with
// DeliveryFailed.
type Notifier interface {
	Route() models.Route
	Notify(ctx context.Context, msg models.ExtractedMessage) error
}

// Factory builds the notifier for a route. It returns a nil Notifier when the
// route has no channel configured. Construction happens per invocation so
// credential and authentication faults surface on the invocation that hit them.
type Factory interface {
	Notifier(ctx context.Context, route models.Route) (Notifier, error)
}
