package twilio

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	twiliogo "github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/ajayykmr/sms-forwarder/internal/config"
	"github.com/ajayykmr/sms-forwarder/internal/faults"
)

// MessageAPI is the subset of the Twilio REST API the forwarder calls.
// *openapi.ApiService satisfies it.
type MessageAPI interface {
	FetchMessage(sid string, params *openapi.FetchMessageParams) (*openapi.ApiV2010Message, error)
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// ClientOption customises the client factory.
type ClientOption func(*ClientFactory)

// WithHTTPClient swaps the HTTP client used for REST calls.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(f *ClientFactory) {
		if c != nil {
			f.httpClient = c
		}
	}
}

// WithTimeout sets the per request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(f *ClientFactory) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// ClientFactory builds an authenticated REST handle per pipeline invocation.
type ClientFactory struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClientFactory constructs a ClientFactory.
func NewClientFactory(opts ...ClientOption) *ClientFactory {
	f := &ClientFactory{timeout: 30 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// New returns a REST handle authenticated with the configured account.
func (f *ClientFactory) New(cfg config.TwilioConfig) (MessageAPI, error) {
	var missing []string
	if strings.TrimSpace(cfg.AccountSID) == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if len(missing) > 0 {
		return nil, faults.New(faults.KindCredentialsMissing,
			"Twilio credentials are not set as environment variables",
			map[string]any{"missing": missing})
	}

	httpClient := f.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: f.timeout}
	}
	if base := strings.TrimSpace(cfg.APIBaseURL); base != "" {
		target, err := url.Parse(base)
		if err != nil || target.Host == "" {
			return nil, faults.New(faults.KindCredentialsMissing,
				"Twilio API base URL is invalid",
				map[string]any{"missing": []string{"TWILIO_API_BASE_URL"}})
		}
		httpClient = rebase(httpClient, target)
	}

	rc := &client.Client{
		Credentials: client.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  httpClient,
	}
	rc.SetAccountSid(cfg.AccountSID)

	rest := twiliogo.NewRestClientWithParams(twiliogo.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
		Client:   rc,
	})
	return rest.Api, nil
}

// rebase returns a copy of c whose requests are sent to target instead of
// the public Twilio hosts.
func rebase(c *http.Client, target *url.URL) *http.Client {
	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	cp := *c
	cp.Transport = roundTripFunc(func(req *http.Request) (*http.Response, error) {
		out := req.Clone(req.Context())
		out.URL.Scheme = target.Scheme
		out.URL.Host = target.Host
		out.Host = target.Host
		return next.RoundTrip(out)
	})
	return &cp
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
