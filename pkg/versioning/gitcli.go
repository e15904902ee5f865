package versioning

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// CLIClient drives the git binary in a working copy
type CLIClient struct {
	dir    string
	remote string
	branch string
	host   string
	creds  Credentials
	gitBin string
}

// CLIOption configures a CLIClient
type CLIOption func(*CLIClient)

// WithRemote pushes to a named remote instead of an authenticated URL
func WithRemote(remote string) CLIOption {
	return func(c *CLIClient) { c.remote = remote }
}

// WithBranch sets the branch to push (default: current HEAD)
func WithBranch(branch string) CLIOption {
	return func(c *CLIClient) { c.branch = branch }
}

// WithHost sets the remote host used to build the push URL (default github.com)
func WithHost(host string) CLIOption {
	return func(c *CLIClient) { c.host = host }
}

// NewCLIClient returns a client operating on the working copy at dir
func NewCLIClient(dir string, creds Credentials, opts ...CLIOption) *CLIClient {
	c := &CLIClient{
		dir:    dir,
		host:   "github.com",
		creds:  creds,
		gitBin: "git",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stage runs git add for path
func (c *CLIClient) Stage(ctx context.Context, path string) error {
	return c.run(ctx, StepStage, "add", "--", path)
}

// Commit records the staged changes. An empty index counts as success.
func (c *CLIClient) Commit(ctx context.Context, message string) error {
	args := []string{}
	if c.creds.Name != "" {
		args = append(args, "-c", "user.name="+c.creds.Name)
	}
	if c.creds.Email != "" {
		args = append(args, "-c", "user.email="+c.creds.Email)
	}
	args = append(args, "commit", "-m", message)

	err := c.run(ctx, StepCommit, args...)
	var stepErr *StepError
	if errors.As(err, &stepErr) && nothingToCommit(stepErr.Output) {
		return nil
	}
	return err
}

// Push sends the branch to the remote
func (c *CLIClient) Push(ctx context.Context) error {
	target := c.remote
	if target == "" {
		target = c.pushURL()
	}
	ref := c.branch
	if ref == "" {
		ref = "HEAD"
	}
	return c.run(ctx, StepPush, "push", target, ref)
}

func (c *CLIClient) pushURL() string {
	u := url.URL{
		Scheme: "https",
		User:   url.UserPassword(tokenUser, c.creds.Token),
		Host:   c.host,
		Path:   "/" + strings.TrimSuffix(c.creds.Repository, ".git") + ".git",
	}
	return u.String()
}

func (c *CLIClient) run(ctx context.Context, step Step, args ...string) error {
	cmd := exec.CommandContext(ctx, c.gitBin, args...)
	cmd.Dir = c.dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return &StepError{
			Step:    step,
			Command: redact(c.gitBin+" "+strings.Join(args, " "), c.creds.Token),
			Output:  redact(out.String(), c.creds.Token),
			Err:     err,
		}
	}
	return nil
}

func nothingToCommit(output string) bool {
	return strings.Contains(output, "nothing to commit") || strings.Contains(output, "nothing added to commit")
}

// RemoteURL is the HTTPS clone URL of repository (owner/name) on host
func RemoteURL(host, repository string) string {
	if host == "" {
		host = "github.com"
	}
	return fmt.Sprintf("https://%s/%s.git", host, strings.TrimSuffix(repository, ".git"))
}
