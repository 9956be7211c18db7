package api

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ajayykmr/sms-forwarder/internal/config"
	"github.com/ajayykmr/sms-forwarder/internal/models"
	"github.com/ajayykmr/sms-forwarder/internal/twilio"
	"github.com/ajayykmr/sms-forwarder/internal/worker"
)

const maxFormBytes = 64 << 10

// Runner processes one accepted webhook.
type Runner interface {
	Run(ctx context.Context, req models.InboundRequest) error
}

// Submitter schedules work detached from the request.
type Submitter interface {
	Submit(name string, task worker.Task) error
}

// Option customises the router.
type Option func(*Handler)

// WithReadiness adds a named check to the health response.
func WithReadiness(name string, check func() bool) Option {
	return func(h *Handler) {
		if name != "" && check != nil {
			h.checks[name] = check
		}
	}
}

// Handler serves the webhook and health endpoints.
type Handler struct {
	app       config.AppConfig
	runner    Runner
	submitter Submitter
	logger    zerolog.Logger
	checks    map[string]func() bool
}

// NewRouter wires the webhook and health routes on a gorilla/mux router.
func NewRouter(app config.AppConfig, runner Runner, submitter Submitter, logger zerolog.Logger, opts ...Option) (*mux.Router, error) {
	if runner == nil {
		return nil, errors.New("api: runner dependency is required")
	}
	if submitter == nil {
		return nil, errors.New("api: submitter dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	if app.WebhookPath == "" {
		app.WebhookPath = "/webhooks/twilio"
	}

	h := &Handler{
		app:       app,
		runner:    runner,
		submitter: submitter,
		logger:    logger.With().Str("component", "api").Logger(),
		checks:    map[string]func() bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	r := mux.NewRouter()
	r.Use(h.logRequests)
	r.HandleFunc(app.WebhookPath, h.webhook).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	r.NotFoundHandler = http.HandlerFunc(notFound)
	return r, nil
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "Malformed form body")
		return
	}

	form := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			form[key] = values[0]
		}
	}

	if missing := missingFields(form); len(missing) > 0 {
		writeValidation(w, missing)
		return
	}
	if r.Header.Get(models.HeaderTwilioSignature) == "" {
		writeError(w, http.StatusForbidden, "Forbidden", "Missing X-Twilio-Signature header")
		return
	}

	payload := models.PayloadFromForm(form)
	req := models.InboundRequest{
		URL:     twilio.RequestURL(r, h.app.PublicBaseURL),
		Headers: r.Header.Clone(),
		Form:    form,
	}
	err := h.submitter.Submit("webhook "+payload.MessageSid, func(ctx context.Context) error {
		return h.runner.Run(ctx, req)
	})
	if err != nil {
		h.logger.Error().Err(err).Str("message_sid", payload.MessageSid).Msg("webhook not scheduled")
		writeError(w, http.StatusServiceUnavailable, "Service Unavailable", "Shutting down")
		return
	}

	h.logger.Debug().
		Str("message_sid", payload.MessageSid).
		Str("sms_status", payload.SmsStatus).
		Str("num_media", payload.NumMedia).
		Msg("webhook accepted")
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	if len(h.checks) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make(map[string]bool, len(names))
	for _, name := range names {
		checks[name] = h.checks[name]()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "checks": checks})
}

func missingFields(form map[string]string) []models.ValidationError {
	var out []models.ValidationError
	for _, field := range models.RequiredWebhookFields {
		if _, ok := form[field]; ok {
			continue
		}
		out = append(out, models.ValidationError{
			Field:   field,
			Message: "Field required",
			Type:    models.ValidationTypeMissing,
		})
	}
	return out
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Not allowed", "Method Not Allowed")
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not found", "Not Found")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}
