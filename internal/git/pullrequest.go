package git

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"gitflow/internal/logging"
)

// PullRequest describes a pull request to open.
type PullRequest struct {
	Base  string
	Head  string
	Title string
	Body  string
	Draft bool
}

// PullRequestResult is the outcome of a create request. AlreadyExists and
// NoCommitsBetween are successful negative outcomes, not errors.
type PullRequestResult struct {
	Created          bool
	AlreadyExists    bool
	NoCommitsBetween bool
	URL              string
}

// Open reports whether a pull request now backs the head branch.
func (r PullRequestResult) Open() bool {
	return r.Created || r.AlreadyExists
}

// PullRequester opens and queries pull requests on the hosting service.
type PullRequester interface {
	CreatePullRequest(ctx context.Context, pr PullRequest) (PullRequestResult, error)
	HasOpenPullRequest(ctx context.Context, head string) (bool, error)
}

// ErrGHNotInstalled is returned when the gh binary cannot be found.
var ErrGHNotInstalled = errors.New("gh CLI is not installed")

// GHCLI opens pull requests through the gh command-line tool.
type GHCLI struct {
	runner     *Runner
	classifier *Classifier
}

var _ PullRequester = (*GHCLI)(nil)

// NewGHCLI returns a gh-backed PullRequester running in dir.
func NewGHCLI(dir string, timeout time.Duration, classifier *Classifier) *GHCLI {
	if classifier == nil {
		classifier = NewClassifier()
	}
	return &GHCLI{runner: NewRunner("gh", dir, timeout), classifier: classifier}
}

func (g *GHCLI) available() error {
	if _, err := exec.LookPath(g.runner.Name); err != nil {
		return ErrGHNotInstalled
	}
	return nil
}

// CreatePullRequest runs `gh pr create`.
func (g *GHCLI) CreatePullRequest(ctx context.Context, pr PullRequest) (PullRequestResult, error) {
	if err := g.available(); err != nil {
		return PullRequestResult{}, err
	}
	args := []string{"pr", "create", "--base", pr.Base, "--head", pr.Head, "--title", pr.Title, "--body", pr.Body}
	if pr.Draft {
		args = append(args, "--draft")
	}
	res, err := g.runner.Run(ctx, args...)
	if err != nil {
		switch g.classifier.Classify(err) {
		case FailurePullRequestExists:
			logging.Logger.Debug("pull request already exists", "base", pr.Base, "head", pr.Head)
			return PullRequestResult{AlreadyExists: true}, nil
		case FailureNoCommitsBetween:
			return PullRequestResult{NoCommitsBetween: true}, nil
		}
		return PullRequestResult{}, fmt.Errorf("failed to create pull request %s -> %s: %w", pr.Head, pr.Base, err)
	}
	return PullRequestResult{Created: true, URL: lastLine(res.Stdout)}, nil
}

// HasOpenPullRequest runs `gh pr list --head <head> --state open --json number`.
func (g *GHCLI) HasOpenPullRequest(ctx context.Context, head string) (bool, error) {
	if err := g.available(); err != nil {
		return false, err
	}
	res, err := g.runner.Run(ctx, "pr", "list", "--head", head, "--state", "open", "--json", "number")
	if err != nil {
		return false, fmt.Errorf("failed to list pull requests for %s: %w", head, err)
	}
	var prs []struct {
		Number int `json:"number"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &prs); err != nil {
		return false, fmt.Errorf("failed to parse gh output: %w", err)
	}
	return len(prs) > 0, nil
}

func lastLine(s string) string {
	all := lines(s)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}
