package secrets

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// Source resolves secret payloads by project and secret name.
type Source interface {
	Access(ctx context.Context, projectID, secretName string) ([]byte, error)
}

// VersionName returns the resource name of the latest version of a secret.
func VersionName(projectID, secretName string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, secretName)
}

// SecretManager reads secrets from Google Secret Manager. A client is opened
// per Access call and closed before returning.
type SecretManager struct {
	logger zerolog.Logger
	opts   []option.ClientOption
}

// NewSecretManager constructs a SecretManager. Client options are passed to
// every client it opens.
func NewSecretManager(logger zerolog.Logger, opts ...option.ClientOption) *SecretManager {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &SecretManager{logger: logger, opts: opts}
}

// Access returns the payload of the latest version of the secret.
func (s *SecretManager) Access(ctx context.Context, projectID, secretName string) ([]byte, error) {
	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(secretName) == "" {
		return nil, errors.New("secrets: project id and secret name are required")
	}

	client, err := secretmanager.NewClient(ctx, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("secrets: create client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("secret manager client close failed")
		}
	}()

	name := VersionName(projectID, secretName)
	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("secrets: access %s: %w", name, err)
	}
	if resp.GetPayload() == nil {
		return nil, fmt.Errorf("secrets: %s has no payload", name)
	}

	s.logger.Debug().Str("secret", name).Msg("secret version accessed")
	return resp.GetPayload().GetData(), nil
}

// Static serves fixed payloads, keyed by VersionName.
type Static map[string][]byte

// Access implements Source.
func (s Static) Access(_ context.Context, projectID, secretName string) ([]byte, error) {
	name := VersionName(projectID, secretName)
	data, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("secrets: %s not found", name)
	}
	return data, nil
}
