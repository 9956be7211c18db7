package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ajayykmr/sms-forwarder/internal/config"
	"github.com/ajayykmr/sms-forwarder/internal/faults"
	"github.com/ajayykmr/sms-forwarder/internal/secrets"
)

// gmailSelf is the Gmail user id meaning the authenticated (delegated) user.
const gmailSelf = "me"

// GmailOption configures the Gmail provider.
type GmailOption func(*gmailOptions)

type gmailOptions struct {
	endpoint   string
	baseClient *http.Client
	now        func() time.Time
}

// WithGmailEndpoint points the Gmail API client at a different base URL.
func WithGmailEndpoint(endpoint string) GmailOption {
	return func(o *gmailOptions) {
		o.endpoint = strings.TrimSpace(endpoint)
	}
}

// WithGmailHTTPClient sets the HTTP client used for token exchange and API
// calls. Its Timeout bounds each request.
func WithGmailHTTPClient(c *http.Client) GmailOption {
	return func(o *gmailOptions) {
		if c != nil {
			o.baseClient = c
		}
	}
}

// WithGmailClock replaces the clock used for timestamps.
func WithGmailClock(now func() time.Time) GmailOption {
	return func(o *gmailOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// GmailProvider sends mail through the Gmail API as a delegated user of a
// service account whose key is held in Secret Manager.
type GmailProvider struct {
	logger  zerolog.Logger
	service *gmail.Service
	now     func() time.Time
}

// NewGmailProvider resolves the service account key, impersonates the
// delegated user and opens a Gmail API client. Missing settings are a
// credentials fault; secret or key failures are an authentication fault.
func NewGmailProvider(ctx context.Context, cfg config.EmailConfig, src secrets.Source, logger zerolog.Logger, opts ...GmailOption) (*GmailProvider, error) {
	var missing []string
	if strings.TrimSpace(cfg.DelegatedUser) == "" {
		missing = append(missing, "DELEGATED_USER_EMAIL")
	}
	if strings.TrimSpace(cfg.ProjectID) == "" {
		missing = append(missing, "PROJECT_ID")
	}
	if strings.TrimSpace(cfg.SecretName) == "" {
		missing = append(missing, "SECRET_NAME")
	}
	if len(missing) > 0 {
		return nil, faults.New(faults.KindCredentialsMissing,
			"Missing required environment variables.",
			map[string]any{"missing": missing})
	}
	if src == nil {
		return nil, faults.New(faults.KindClientRequired, "gmail provider: secret source is required", nil)
	}

	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	settings := &gmailOptions{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(settings)
		}
	}

	key, err := src.Access(ctx, cfg.ProjectID, cfg.SecretName)
	if err != nil {
		return nil, authFault(err)
	}

	jwtCfg, err := google.JWTConfigFromJSON(key, gmail.GmailSendScope)
	if err != nil {
		return nil, authFault(err)
	}
	jwtCfg.Subject = cfg.DelegatedUser

	if settings.baseClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, settings.baseClient)
	}
	httpClient := jwtCfg.Client(ctx)
	if settings.baseClient != nil {
		httpClient.Timeout = settings.baseClient.Timeout
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if settings.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(settings.endpoint))
	}
	svc, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, authFault(err)
	}

	return &GmailProvider{
		logger:  logger,
		service: svc,
		now:     settings.now,
	}, nil
}

// Send submits the encoded message on behalf of the delegated user.
func (p *GmailProvider) Send(ctx context.Context, encoded string) (*RawResponse, error) {
	if encoded == "" {
		return nil, faults.InvalidInput("message", "gmail provider: encoded message is required")
	}

	sent, err := p.service.Users.Messages.Send(gmailSelf, &gmail.Message{Raw: encoded}).Context(ctx).Do()
	if err != nil {
		resp := &RawResponse{Timestamp: p.now(), Body: err.Error()}
		var tokenErr *oauth2.RetrieveError
		if errors.As(err, &tokenErr) {
			return resp, authFault(err)
		}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			resp.Code = apiErr.Code
			resp.Body = apiErr.Message
			if apiErr.Code == http.StatusUnauthorized {
				return resp, authFault(err)
			}
		}
		return resp, err
	}

	p.logger.Debug().Str("gmail_id", sent.Id).Msg("gmail message sent")
	return &RawResponse{
		ID:        sent.Id,
		Code:      sent.HTTPStatusCode,
		Body:      strings.Join(sent.LabelIds, ","),
		Timestamp: p.now(),
	}, nil
}

func authFault(err error) error {
	return faults.Wrap(err, faults.KindClientAuthFailed,
		fmt.Sprintf("Error during authentication with Google APIs. %v", err), nil)
}
