package router

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ajayykmr/sms-forwarder/internal/faults"
	"github.com/ajayykmr/sms-forwarder/internal/models"
)

const (
	criticalMarker = "[CRITICAL]"
	warningMarker  = "[WARNING]"
)

// authKeywords are matched case-sensitively anywhere in the body.
var authKeywords = []string{
	"code",
	"verification",
	"authentication",
	"login",
	"passcode",
	"access",
	"sign-in",
}

// otpPattern matches a run of 4 to 8 decimal digits, in any script, that is
// not joined to a letter, number or underscore on either side.
var otpPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])\p{Nd}{4,8}(?:$|[^\p{L}\p{N}_])`)

// Classify attaches the delivery routes for msg. The first matching rule wins
// and email is always the first route. The input is never modified.
func Classify(msg *models.ExtractedMessage) (out *models.ExtractedMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = routeFault(fmt.Errorf("panic: %v", r))
		}
	}()

	if msg == nil {
		return nil, routeFault(fmt.Errorf("message is nil"))
	}

	classified := msg.Clone()
	classified.Routes = Routes(msg.Body)
	return &classified, nil
}

// Routes evaluates the routing rules against a message body.
func Routes(body string) []models.Route {
	switch {
	case strings.Contains(body, criticalMarker):
		return []models.Route{models.RouteEmail, models.RouteText, models.RouteDiscord}
	case strings.Contains(body, warningMarker):
		return []models.Route{models.RouteEmail, models.RouteDiscord}
	case isVerificationCode(body):
		return []models.Route{models.RouteEmail, models.RouteText}
	default:
		return []models.Route{models.RouteEmail}
	}
}

func isVerificationCode(body string) bool {
	for _, kw := range authKeywords {
		if strings.Contains(body, kw) {
			return otpPattern.MatchString(body)
		}
	}
	return false
}

func routeFault(cause error) error {
	return faults.Wrap(cause, faults.KindRouteProcessing, "Error processing routes", nil)
}
