package kubernetes

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/versioning"
)

// secretKeys lists the accepted keys for each credential field, first match wins
var secretKeys = struct {
	name, email, token, repository []string
}{
	name:       []string{"name", "username", "GIT_USER_NAME"},
	email:      []string{"email", "GIT_USER_EMAIL"},
	token:      []string{"token", "password", "GIT_TOKEN"},
	repository: []string{"repository", "GIT_REPOSITORY"},
}

// SecretCredentials reads git credentials from a Secret on every publish,
// so a rotated token is used without restarting the pod. Fields missing
// from the Secret fall back to Fallback.
type SecretCredentials struct {
	client    *Client
	namespace string
	name      string
	fallback  versioning.Credentials
	logger    *zap.Logger
}

// NewSecretCredentials creates a credentials source for the Secret
// namespace/name
func NewSecretCredentials(client *Client, namespace, name string, fallback versioning.Credentials, logger *zap.Logger) *SecretCredentials {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecretCredentials{
		client:    client,
		namespace: namespace,
		name:      name,
		fallback:  fallback,
		logger:    logger.Named("kubernetes"),
	}
}

// ParseSecretRef splits "namespace/name"; a bare name uses defaultNamespace
func ParseSecretRef(ref, defaultNamespace string) (namespace, name string, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", fmt.Errorf("empty secret reference")
	}
	if ns, n, ok := strings.Cut(ref, "/"); ok {
		if ns == "" || n == "" {
			return "", "", fmt.Errorf("invalid secret reference %q", ref)
		}
		return ns, n, nil
	}
	return defaultNamespace, ref, nil
}

// Credentials implements versioning.CredentialsSource
func (s *SecretCredentials) Credentials(ctx context.Context) (versioning.Credentials, error) {
	data, err := s.client.GetSecretData(ctx, s.namespace, s.name)
	if err != nil {
		return versioning.Credentials{}, err
	}

	creds := versioning.Credentials{
		Name:       pick(data, secretKeys.name, s.fallback.Name),
		Email:      pick(data, secretKeys.email, s.fallback.Email),
		Token:      pick(data, secretKeys.token, s.fallback.Token),
		Repository: pick(data, secretKeys.repository, s.fallback.Repository),
	}
	s.logger.Debug("Loaded git credentials from secret",
		zap.String("secret", s.namespace+"/"+s.name), zap.Bool("complete", creds.Complete()))
	return creds, nil
}

func pick(data map[string]string, keys []string, fallback string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(data[k]); v != "" {
			return v
		}
	}
	return fallback
}
