package git

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v61/github"
	"golang.org/x/oauth2"

	"gitflow/internal/logging"
)

// ParseGitHubOwnerRepo extracts owner and repo from a GitHub remote URL.
// Supports https://github.com/owner/repo, https://host/owner/repo, ssh://git@host/owner/repo
// and git@host:owner/repo. Local paths and file:// remotes are rejected.
func ParseGitHubOwnerRepo(remoteURL string) (owner, repo string, err error) {
	u := remoteURL
	if strings.HasPrefix(u, "git@") {
		u = strings.TrimPrefix(u, "git@")
		parts := strings.SplitN(u, ":", 2)
		if len(parts) != 2 {
			return "", "", fmt.Errorf("invalid git SSH URL: %s", remoteURL)
		}
		return splitOwnerRepo(parts[1])
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return "", "", fmt.Errorf("invalid URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https", "ssh", "git":
	default:
		return "", "", fmt.Errorf("not a GitHub remote URL: %s", remoteURL)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("invalid URL: missing host")
	}
	return splitOwnerRepo(parsed.Path)
}

func splitOwnerRepo(path string) (string, string, error) {
	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return "", "", fmt.Errorf("invalid GitHub path: %s", path)
	}
	return segments[0], segments[1], nil
}

// NewClient creates a GitHub API client. token must be non-empty.
// baseURL is optional: empty means github.com; set it for GitHub Enterprise.
// Never log or expose token.
func NewClient(ctx context.Context, token, baseURL string) (*github.Client, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if baseURL == "" {
		return client, nil
	}
	apiBase := strings.TrimSuffix(baseURL, "/") + "/api/v3"
	return client.WithEnterpriseURLs(apiBase, apiBase)
}

// rateLimitInitialInterval is the first wait after a rate-limit response.
var rateLimitInitialInterval = time.Second

// WithRateLimitRetry runs fn, retrying up to maxRetries times with exponential
// backoff while GitHub answers with a rate-limit error. Other errors are returned at once.
func WithRateLimitRetry(ctx context.Context, maxRetries uint64, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = rateLimitInitialInterval
	bo.MaxElapsedTime = 2 * time.Minute

	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		var rateErr *github.RateLimitError
		var abuseErr *github.AbuseRateLimitError
		if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
			logging.Logger.Debug("github rate limited, retrying", "error", err)
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
}

// APIPullRequester opens pull requests through the GitHub REST API.
type APIPullRequester struct {
	client     *github.Client
	owner      string
	repo       string
	classifier *Classifier
	maxRetries uint64
}

var _ PullRequester = (*APIPullRequester)(nil)

// NewAPIPullRequester returns a PullRequester for owner/repo.
func NewAPIPullRequester(client *github.Client, owner, repo string, classifier *Classifier) *APIPullRequester {
	if classifier == nil {
		classifier = NewClassifier()
	}
	return &APIPullRequester{client: client, owner: owner, repo: repo, classifier: classifier, maxRetries: 2}
}

// CreatePullRequest opens base <- head. Validation failures saying the PR already
// exists or that there is nothing to merge are mapped onto the result flags.
func (a *APIPullRequester) CreatePullRequest(ctx context.Context, pr PullRequest) (PullRequestResult, error) {
	req := &github.NewPullRequest{
		Title: github.String(pr.Title),
		Head:  github.String(pr.Head),
		Base:  github.String(pr.Base),
		Body:  github.String(pr.Body),
		Draft: github.Bool(pr.Draft),
	}
	var created *github.PullRequest
	err := WithRateLimitRetry(ctx, a.maxRetries, func() error {
		var err error
		created, _, err = a.client.PullRequests.Create(ctx, a.owner, a.repo, req)
		return err
	})
	if err != nil {
		switch a.classifier.ClassifyText(apiErrorText(err)) {
		case FailurePullRequestExists:
			return PullRequestResult{AlreadyExists: true}, nil
		case FailureNoCommitsBetween:
			return PullRequestResult{NoCommitsBetween: true}, nil
		}
		return PullRequestResult{}, fmt.Errorf("failed to create pull request %s -> %s: %w", pr.Head, pr.Base, err)
	}
	return PullRequestResult{Created: true, URL: created.GetHTMLURL()}, nil
}

// HasOpenPullRequest lists open pull requests whose head is owner:head.
func (a *APIPullRequester) HasOpenPullRequest(ctx context.Context, head string) (bool, error) {
	opts := &github.PullRequestListOptions{
		State:       "open",
		Head:        a.owner + ":" + head,
		ListOptions: github.ListOptions{PerPage: 1},
	}
	var prs []*github.PullRequest
	err := WithRateLimitRetry(ctx, a.maxRetries, func() error {
		var err error
		prs, _, err = a.client.PullRequests.List(ctx, a.owner, a.repo, opts)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to list pull requests for %s: %w", head, err)
	}
	return len(prs) > 0, nil
}

// apiErrorText flattens a GitHub validation error into its messages.
func apiErrorText(err error) string {
	var errResp *github.ErrorResponse
	if !errors.As(err, &errResp) {
		return err.Error()
	}
	if errResp.Response != nil && errResp.Response.StatusCode != http.StatusUnprocessableEntity {
		return errResp.Message
	}
	parts := []string{errResp.Message}
	for _, e := range errResp.Errors {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, "\n")
}
