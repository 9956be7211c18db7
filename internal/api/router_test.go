package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajayykmr/sms-forwarder/internal/api"
	"github.com/ajayykmr/sms-forwarder/internal/config"
	"github.com/ajayykmr/sms-forwarder/internal/models"
	"github.com/ajayykmr/sms-forwarder/internal/worker"
)

type recordingRunner struct {
	mu   sync.Mutex
	reqs []models.InboundRequest
}

func (r *recordingRunner) Run(_ context.Context, req models.InboundRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return nil
}

// inlineSubmitter runs tasks synchronously so assertions see their effect.
type inlineSubmitter struct {
	err   error
	names []string
}

func (s *inlineSubmitter) Submit(name string, task worker.Task) error {
	if s.err != nil {
		return s.err
	}
	s.names = append(s.names, name)
	return task(context.Background())
}

func validForm() url.Values {
	return url.Values{
		"SmsSid":        {"SM1"},
		"SmsStatus":     {"received"},
		"MessageSid":    {"SM1"},
		"AccountSid":    {"AC1234"},
		"From":          {"+15550001111"},
		"ApiVersion":    {"2010-04-01"},
		"SmsMessageSid": {"SM1"},
		"NumSegments":   {"1"},
		"To":            {"+15550002222"},
		"Body":          {"hello"},
		"NumMedia":      {"0"},
	}
}

func newRouter(t *testing.T, runner *recordingRunner, sub *inlineSubmitter, opts ...api.Option) http.Handler {
	t.Helper()
	r, err := api.NewRouter(config.AppConfig{
		WebhookPath:   "/webhooks/twilio",
		PublicBaseURL: "https://forwarder.example.com",
	}, runner, sub, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return r
}

func postForm(h http.Handler, form url.Values, signed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signed {
		req.Header.Set(models.HeaderTwilioSignature, "sig")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWebhookAcceptsAndSchedules(t *testing.T) {
	runner := &recordingRunner{}
	sub := &inlineSubmitter{}
	h := newRouter(t, runner, sub)

	rec := postForm(h, validForm(), true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
	require.Len(t, runner.reqs, 1)
	got := runner.reqs[0]
	assert.Equal(t, "https://forwarder.example.com/webhooks/twilio", got.URL)
	assert.Equal(t, "sig", got.Signature())
	assert.Equal(t, "hello", got.Form["Body"])
	assert.Equal(t, []string{"webhook SM1"}, sub.names)
}

func TestWebhookRejectsMissingFields(t *testing.T) {
	runner := &recordingRunner{}
	h := newRouter(t, runner, &inlineSubmitter{})

	form := validForm()
	form.Del("Body")
	form.Del("SmsSid")
	rec := postForm(h, form, true)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, http.StatusUnprocessableEntity, body.ErrorCode)
	require.Len(t, body.ValidationErrors, 2)
	assert.Equal(t, "SmsSid", body.ValidationErrors[0].Field)
	assert.Equal(t, "Body", body.ValidationErrors[1].Field)
	assert.Equal(t, models.ValidationTypeMissing, body.ValidationErrors[0].Type)
	assert.Empty(t, runner.reqs)
}

func TestWebhookAcceptsEmptyBodyField(t *testing.T) {
	runner := &recordingRunner{}
	h := newRouter(t, runner, &inlineSubmitter{})

	form := validForm()
	form.Set("Body", "")
	rec := postForm(h, form, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.reqs, 1)
}

func TestWebhookRequiresSignatureHeader(t *testing.T) {
	runner := &recordingRunner{}
	h := newRouter(t, runner, &inlineSubmitter{})

	rec := postForm(h, validForm(), false)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, http.StatusForbidden, decodeError(t, rec).ErrorCode)
	assert.Empty(t, runner.reqs)
}

func TestWebhookUnavailableWhenStopped(t *testing.T) {
	h := newRouter(t, &recordingRunner{}, &inlineSubmitter{err: worker.ErrStopped})

	rec := postForm(h, validForm(), true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhookOtherMethodsNotAllowed(t *testing.T) {
	h := newRouter(t, &recordingRunner{}, &inlineSubmitter{})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/webhooks/twilio", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		body := decodeError(t, rec)
		assert.Equal(t, models.ErrorResponse{
			ErrorCode:   405,
			Description: "Not allowed",
			Message:     "Method Not Allowed",
		}, body)
	}
}

func TestUnknownPathNotFound(t *testing.T) {
	h := newRouter(t, &recordingRunner{}, &inlineSubmitter{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decodeError(t, rec).ErrorCode)
}

func TestHealthz(t *testing.T) {
	h := newRouter(t, &recordingRunner{}, &inlineSubmitter{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	h = newRouter(t, &recordingRunner{}, &inlineSubmitter{}, api.WithReadiness("audit_kafka", func() bool { return false }))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.JSONEq(t, `{"status":"ok","checks":{"audit_kafka":false}}`, rec.Body.String())
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := api.NewRouter(config.AppConfig{}, nil, &inlineSubmitter{}, zerolog.Nop())
	assert.Error(t, err)
	_, err = api.NewRouter(config.AppConfig{}, &recordingRunner{}, nil, zerolog.Nop())
	assert.Error(t, err)
}
