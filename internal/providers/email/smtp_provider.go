package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajayykmr/sms-forwarder/internal/config"
)

// SMTPOption configures the behaviour of the SMTP provider.
type SMTPOption func(*SMTPProvider)

// WithSMTPTLSConfig overrides the TLS configuration used when negotiating STARTTLS.
func WithSMTPTLSConfig(cfg *tls.Config) SMTPOption {
	return func(p *SMTPProvider) {
		p.tlsConfig = cfg
	}
}

// WithSMTPDialer swaps the network dialer used to establish SMTP connections.
func WithSMTPDialer(d Dialer) SMTPOption {
	return func(p *SMTPProvider) {
		if d != nil {
			p.dialer = d
		}
	}
}

// WithSMTPAuth supplies a custom SMTP auth strategy. When omitted the provider uses
// the credentials from the supplied configuration.
func WithSMTPAuth(auth smtp.Auth) SMTPOption {
	return func(p *SMTPProvider) {
		p.auth = auth
	}
}

// WithSMTPClock replaces the clock used for timestamps.
func WithSMTPClock(now func() time.Time) SMTPOption {
	return func(p *SMTPProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithSMTPHelloName customises the EHLO/HELO identity presented to the server.
func WithSMTPHelloName(name string) SMTPOption {
	return func(p *SMTPProvider) {
		if strings.TrimSpace(name) != "" {
			p.helloName = strings.TrimSpace(name)
		}
	}
}

// Dialer abstracts net.Dialer to simplify testing.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// SMTPProvider implements Provider by relaying through an SMTP server.
type SMTPProvider struct {
	logger    zerolog.Logger
	host      string
	port      int
	from      string
	auth      smtp.Auth
	tlsConfig *tls.Config
	dialer    Dialer
	now       func() time.Time
	helloName string
}

// NewSMTPProvider constructs a Provider backed by an SMTP server.
func NewSMTPProvider(cfg config.SMTPConfig, logger zerolog.Logger, opts ...SMTPOption) (*SMTPProvider, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp provider: host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("smtp provider: invalid port %d", cfg.Port)
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("smtp provider: from address is required")
	}

	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	p := &SMTPProvider{
		logger:    logger,
		host:      cfg.Host,
		port:      cfg.Port,
		from:      strings.TrimSpace(cfg.From),
		dialer:    &net.Dialer{Timeout: 30 * time.Second},
		now:       time.Now,
		helloName: "localhost",
	}

	if strings.TrimSpace(cfg.User) != "" {
		p.auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}

	p.tlsConfig = &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// Send decodes the encoded MIME message and delivers it to the recipients
// named in its To header. The From header is replaced with the configured
// sender since the SMTP server cannot resolve the "me" alias.
func (p *SMTPProvider) Send(ctx context.Context, encoded string) (*RawResponse, error) {
	if encoded == "" {
		return nil, errors.New("smtp provider: encoded message is required")
	}

	raw, err := decodeRaw(encoded)
	if err != nil {
		return nil, fmt.Errorf("smtp provider: decode message: %w", err)
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("smtp provider: parse message: %w", err)
	}

	recipients, err := normalizeEnvelopeList(splitAddresses(parsed.Header.Get("To")))
	if err != nil {
		return nil, fmt.Errorf("smtp provider: invalid recipient: %w", err)
	}
	if len(recipients) == 0 {
		return nil, errors.New("smtp provider: at least one recipient is required")
	}

	envelopeFrom, err := normalizeEnvelopeAddress(p.from)
	if err != nil {
		return nil, fmt.Errorf("smtp provider: invalid from address: %w", err)
	}

	body, err := io.ReadAll(parsed.Body)
	if err != nil {
		return nil, fmt.Errorf("smtp provider: read body: %w", err)
	}
	message := p.buildMessage(parsed.Header, string(body))

	resp := &RawResponse{
		ID:        parsed.Header.Get("Message-Id"),
		Timestamp: p.now(),
	}

	if err := p.deliver(ctx, envelopeFrom, recipients, message); err != nil {
		code, body := classifySMTPError(err)
		resp.Code = code
		resp.Body = body
		if resp.Body == "" {
			resp.Body = err.Error()
		}
		return resp, err
	}

	resp.Code = 250
	resp.Body = "smtp: message accepted"
	p.logger.Debug().
		Str("host", p.host).
		Int("recipients", len(recipients)).
		Msg("smtp message accepted")
	return resp, nil
}

func (p *SMTPProvider) deliver(ctx context.Context, from string, recipients []string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(p.host, strconv.Itoa(p.port))
	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp provider: dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	client, err := smtp.NewClient(conn, p.host)
	if err != nil {
		return fmt.Errorf("smtp provider: new client: %w", err)
	}
	defer client.Close()

	if err := client.Hello(p.helloName); err != nil {
		return fmt.Errorf("smtp provider: hello: %w", err)
	}

	if cfg := p.sessionTLSConfig(); cfg != nil {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(cfg); err != nil {
				return fmt.Errorf("smtp provider: starttls: %w", err)
			}
		}
	}

	if p.auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(p.auth); err != nil {
				return fmt.Errorf("smtp provider: auth: %w", err)
			}
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp provider: mail from: %w", err)
	}

	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp provider: rcpt to %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp provider: data: %w", err)
	}

	if _, err := writer.Write(message); err != nil {
		_ = writer.Close()
		return fmt.Errorf("smtp provider: data write: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp provider: data close: %w", err)
	}

	if err := client.Quit(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("smtp provider: quit: %w", err)
	}

	return ctx.Err()
}

func (p *SMTPProvider) buildMessage(header mail.Header, body string) []byte {
	headers := make(map[string]string, len(header)+4)
	for key, values := range header {
		canonical := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(key))
		if canonical == "" || len(values) == 0 || strings.TrimSpace(values[0]) == "" {
			continue
		}
		headers[canonical] = sanitizeHeaderValue(values[0])
	}

	headers["From"] = p.from
	delete(headers, "Bcc")

	if _, ok := headers["Date"]; !ok {
		headers["Date"] = p.now().UTC().Format(time.RFC1123Z)
	}
	if _, ok := headers["Mime-Version"]; !ok {
		headers["Mime-Version"] = "1.0"
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "text/plain; charset=UTF-8"
	}

	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, key := range keys {
		buf.WriteString(key)
		buf.WriteString(": ")
		buf.WriteString(headers[key])
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	buf.WriteString(normalizeBody(body))

	return buf.Bytes()
}

func (p *SMTPProvider) sessionTLSConfig() *tls.Config {
	if p.tlsConfig == nil {
		return nil
	}
	cfg := p.tlsConfig.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = p.host
	}
	return cfg
}

func normalizeBody(body string) string {
	if body == "" {
		return ""
	}
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.ReplaceAll(normalized, "\n", "\r\n")
}

func sanitizeHeaderValue(value string) string {
	clean := strings.ReplaceAll(value, "\r", " ")
	clean = strings.ReplaceAll(clean, "\n", " ")
	return strings.TrimSpace(clean)
}

func decodeRaw(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if decoded, err := base64.URLEncoding.DecodeString(encoded); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
}

func splitAddresses(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeEnvelopeList(addresses []string) ([]string, error) {
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		parsed, err := normalizeEnvelopeAddress(addr)
		if err != nil {
			return nil, err
		}
		result = append(result, parsed)
	}
	return result, nil
}

func normalizeEnvelopeAddress(value string) (string, error) {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return "", err
	}
	if addr.Address == "" {
		return "", errors.New("empty address")
	}
	return addr.Address, nil
}

func classifySMTPError(err error) (int, string) {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code, strings.TrimSpace(tpErr.Msg)
	}

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return 0, "smtp: timeout"
	}

	return 0, ""
}
