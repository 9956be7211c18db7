package twilio

import (
	"net/http"
	"strings"

	"github.com/twilio/twilio-go/client"

	"github.com/ajayykmr/sms-forwarder/internal/config"
	"github.com/ajayykmr/sms-forwarder/internal/faults"
)

// Validator checks the X-Twilio-Signature of inbound webhooks against the
// account auth token.
type Validator struct {
	rv client.RequestValidator
}

// NewValidator builds a Validator. A missing auth token is a credentials
// fault, not a signature mismatch.
func NewValidator(cfg config.TwilioConfig) (*Validator, error) {
	token := strings.TrimSpace(cfg.AuthToken)
	if token == "" {
		return nil, faults.New(faults.KindCredentialsMissing,
			"Twilio credentials are not set as environment variables",
			map[string]any{"missing": []string{"TWILIO_AUTH_TOKEN"}})
	}
	return &Validator{rv: client.NewRequestValidator(token)}, nil
}

// Validate reports whether signature matches the HMAC of url and fields.
// fields must be the form exactly as received.
func (v *Validator) Validate(url string, fields map[string]string, signature string) bool {
	if v == nil || signature == "" {
		return false
	}
	return v.rv.Validate(url, fields, signature)
}

// RequestURL reconstructs the URL the provider signed. When publicBaseURL is
// set it replaces the scheme and host seen by this process.
func RequestURL(r *http.Request, publicBaseURL string) string {
	if base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"); base != "" {
		return base + r.URL.RequestURI()
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
