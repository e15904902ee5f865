package versioning

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GoGitClient performs the publish steps in-process with go-git
type GoGitClient struct {
	repo   *git.Repository
	dir    string
	remote string
	branch string
	url    string
	creds  Credentials
}

// NewGoGitClient opens the working copy at dir. remote names the remote to
// push to; when url is set, it is used instead of the remote's configured URL.
func NewGoGitClient(dir, remote, branch, url string, creds Credentials) (*GoGitClient, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", dir, err)
	}
	if remote == "" {
		remote = git.DefaultRemoteName
	}
	if dir, err = filepath.Abs(dir); err != nil {
		return nil, fmt.Errorf("failed to resolve repository path: %w", err)
	}
	return &GoGitClient{repo: repo, dir: dir, remote: remote, branch: branch, url: url, creds: creds}, nil
}

// Stage adds path to the index. Absolute paths are made relative to the
// working copy.
func (c *GoGitClient) Stage(_ context.Context, path string) error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return &StepError{Step: StepStage, Command: "worktree", Err: err}
	}
	rel := path
	if filepath.IsAbs(path) {
		if rel, err = filepath.Rel(c.dir, path); err != nil {
			return &StepError{Step: StepStage, Command: "add " + path, Err: err}
		}
	}
	if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
		return &StepError{Step: StepStage, Command: "add " + rel, Err: err}
	}
	return nil
}

// Commit records the index. A clean index counts as success.
func (c *GoGitClient) Commit(_ context.Context, message string) error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return &StepError{Step: StepCommit, Command: "worktree", Err: err}
	}
	status, err := wt.Status()
	if err != nil {
		return &StepError{Step: StepCommit, Command: "status", Err: err}
	}
	if !hasStaged(status) {
		return nil
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: c.creds.Name, Email: c.creds.Email, When: time.Now()},
	})
	if err != nil {
		return &StepError{Step: StepCommit, Command: "commit", Err: err}
	}
	return nil
}

// Push sends the branch (or HEAD's branch) to the remote
func (c *GoGitClient) Push(ctx context.Context) error {
	branch := c.branch
	if branch == "" {
		head, err := c.repo.Head()
		if err != nil {
			return &StepError{Step: StepPush, Command: "head", Err: err}
		}
		branch = head.Name().Short()
	}
	ref := plumbing.NewBranchReferenceName(branch)

	opts := &git.PushOptions{
		RemoteName: c.remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(ref.String() + ":" + ref.String())},
	}
	if c.url != "" {
		opts.RemoteURL = c.url
	}
	if c.creds.Token != "" {
		opts.Auth = &githttp.BasicAuth{Username: tokenUser, Password: c.creds.Token}
	}

	err := c.repo.PushContext(ctx, opts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return &StepError{Step: StepPush, Command: "push " + c.remote + " " + branch, Err: err}
	}
	return nil
}

func hasStaged(status git.Status) bool {
	for _, s := range status {
		if s.Staging != git.Unmodified && s.Staging != git.Untracked {
			return true
		}
	}
	return false
}
