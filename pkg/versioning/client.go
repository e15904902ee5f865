package versioning

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ErrCredentialsMissing means publishing was skipped because the identity or
// access token is not configured. It is a valid state, not a failure.
var ErrCredentialsMissing = errors.New("versioning: credentials not configured")

// Step names one stage of a publish
type Step string

const (
	StepStage  Step = "stage"
	StepCommit Step = "commit"
	StepPush   Step = "push"
)

// Client is the version-control boundary: three fallible calls made in order
type Client interface {
	Stage(ctx context.Context, path string) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context) error
}

// StepError reports which publish step failed, with the command and output
// needed to diagnose it
type StepError struct {
	Step    Step
	Command string
	Output  string
	Err     error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Step)
	if e.Command != "" {
		msg += fmt.Sprintf(" (%s)", e.Command)
	}
	msg += ": " + e.Err.Error()
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Credentials identify the committer and authorise the push
type Credentials struct {
	Name       string
	Email      string
	Token      string
	Repository string // owner/name on the remote host
}

// Complete reports whether every field needed for an authenticated push is set
func (c Credentials) Complete() bool {
	return c.Name != "" && c.Email != "" && c.Token != "" && c.Repository != ""
}

// Missing lists the unset fields, for the skip log line
func (c Credentials) Missing() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", c.Name}, {"email", c.Email}, {"token", c.Token}, {"repository", c.Repository},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// CredentialsSource resolves credentials at publish time, so a rotated
// token is picked up without a restart
type CredentialsSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticCredentials always returns the same credentials
type StaticCredentials Credentials

// Credentials returns c
func (c StaticCredentials) Credentials(context.Context) (Credentials, error) {
	return Credentials(c), nil
}

// EnvCredentials reads GIT_USER_NAME, GIT_USER_EMAIL, GIT_TOKEN and
// GIT_REPOSITORY from the process environment on every call
type EnvCredentials struct{}

// Credentials returns the current environment values
func (EnvCredentials) Credentials(context.Context) (Credentials, error) {
	return Credentials{
		Name:       os.Getenv("GIT_USER_NAME"),
		Email:      os.Getenv("GIT_USER_EMAIL"),
		Token:      os.Getenv("GIT_TOKEN"),
		Repository: os.Getenv("GIT_REPOSITORY"),
	}, nil
}

// redact hides the token in a command line or output before it is logged
// tokenUser is the HTTPS user name sent alongside a token. The committer's
// display name is not a valid login.
const tokenUser = "x-access-token"

// redact masks token in s, both raw and in its URL-escaped userinfo form
func redact(s, token string) string {
	if token == "" {
		return s
	}
	s = strings.ReplaceAll(s, token, "***")
	if escaped := strings.TrimPrefix(url.UserPassword("", token).String(), ":"); escaped != token {
		s = strings.ReplaceAll(s, escaped, "***")
	}
	return s
}
