package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/ajayykmr/sms-forwarder/internal/faults"
	"github.com/ajayykmr/sms-forwarder/internal/models"
)

// MetaTransient marks delivery faults that a later attempt could succeed on.
const MetaTransient = "transient"

// WrapTransient annotates a provider failure that may succeed if repeated.
func WrapTransient(route models.Route, err error) error {
	return deliveryFault(route, err, true)
}

// WrapPermanent annotates a provider failure that will not succeed if repeated.
func WrapPermanent(route models.Route, err error) error {
	return deliveryFault(route, err, false)
}

// Classify wraps err as transient or permanent depending on whether it looks
// like a timeout or cancellation.
func Classify(route models.Route, err error) error {
	if IsTimeout(err) {
		return WrapTransient(route, err)
	}
	return WrapPermanent(route, err)
}

// IsTransient reports whether err is a delivery fault marked transient.
func IsTransient(err error) bool {
	if !faults.Is(err, faults.KindDeliveryFailed) {
		return false
	}
	return faults.Meta(err, MetaTransient) == true
}

// IsTimeout reports whether err stems from a deadline, cancellation or network
// timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func deliveryFault(route models.Route, err error, transient bool) error {
	if err == nil {
		err = errors.New("unknown delivery error")
	}
	if faults.KindOf(err) != faults.KindUnknown {
		return err
	}
	return faults.Wrap(err, faults.KindDeliveryFailed,
		fmt.Sprintf("%s delivery failed: %v", route, err),
		map[string]any{
			faults.MetaRoute: string(route),
			MetaTransient:    transient,
		})
}
