package flow

import (
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitflow/internal/git"
	"gitflow/internal/gittest"
)

var testNow = time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)

type fakeProbe struct {
	online bool
}

func (p fakeProbe) IsReachable(context.Context, string) bool { return p.online }

// fakePRs records pull request calls. With a zero result every request is created.
type fakePRs struct {
	created []git.PullRequest
	result  git.PullRequestResult
	err     error
	open    bool
	openErr error
}

func (f *fakePRs) CreatePullRequest(_ context.Context, pr git.PullRequest) (git.PullRequestResult, error) {
	f.created = append(f.created, pr)
	if f.err != nil {
		return git.PullRequestResult{}, f.err
	}
	if f.result != (git.PullRequestResult{}) {
		return f.result, nil
	}
	return git.PullRequestResult{Created: true, URL: fmt.Sprintf("https://github.com/acme/app/pull/%d", len(f.created))}, nil
}

func (f *fakePRs) HasOpenPullRequest(context.Context, string) (bool, error) {
	return f.open, f.openErr
}

// scriptedPrompt answers prompts from a queue. Select answers must be one of
// the offered choices; Confirm takes "yes" or "no"; an empty queue yields defaults.
type scriptedPrompt struct {
	answers []string
	asked   []string
}

func (p *scriptedPrompt) next() (string, bool) {
	if len(p.answers) == 0 {
		return "", false
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, true
}

func (p *scriptedPrompt) Select(prompt string, choices []string) (string, error) {
	p.asked = append(p.asked, prompt)
	a, ok := p.next()
	if !ok {
		return "", fmt.Errorf("unexpected prompt %q", prompt)
	}
	if !slices.Contains(choices, a) {
		return "", fmt.Errorf("answer %q is not one of %v", a, choices)
	}
	return a, nil
}

func (p *scriptedPrompt) Confirm(prompt string, def bool) (bool, error) {
	p.asked = append(p.asked, prompt)
	a, ok := p.next()
	if !ok {
		return def, nil
	}
	return a == "yes", nil
}

func (p *scriptedPrompt) Text(prompt, def string) (string, error) {
	p.asked = append(p.asked, prompt)
	a, ok := p.next()
	if !ok {
		return def, nil
	}
	return a, nil
}

type recordingPrinter struct {
	lines []string
}

func (p *recordingPrinter) add(level, format string, args ...any) {
	p.lines = append(p.lines, level+": "+fmt.Sprintf(format, args...))
}

func (p *recordingPrinter) Infof(format string, args ...any)    { p.add("info", format, args...) }
func (p *recordingPrinter) Successf(format string, args ...any) { p.add("success", format, args...) }
func (p *recordingPrinter) Warnf(format string, args ...any)    { p.add("warn", format, args...) }
func (p *recordingPrinter) Errorf(format string, args ...any)   { p.add("error", format, args...) }

func (p *recordingPrinter) contains(substr string) bool {
	for _, l := range p.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

type harness struct {
	setup   *gittest.Setup
	repo    *git.Repo
	session *Session
	prs     *fakePRs
	prompt  *scriptedPrompt
	out     *recordingPrinter
}

func newHarness(t *testing.T, online bool, answers ...string) *harness {
	t.Helper()
	setup := gittest.New(t)
	return newHarnessFor(t, setup, online, answers...)
}

func newHarnessFor(t *testing.T, setup *gittest.Setup, online bool, answers ...string) *harness {
	t.Helper()
	ctx := context.Background()
	repo, err := git.Open(ctx, setup.Work, 30*time.Second, nil)
	require.NoError(t, err)

	h := &harness{
		setup:  setup,
		repo:   repo,
		prs:    &fakePRs{},
		prompt: &scriptedPrompt{answers: answers},
		out:    &recordingPrinter{},
	}
	h.session, err = NewSession(ctx, Options{
		Repo:         repo,
		Probe:        fakeProbe{online: online},
		PullRequests: h.prs,
		Prompt:       h.prompt,
		Out:          h.out,
		Remote:       "origin",
		Now:          func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return h
}

func (h *harness) mergeInProgress(t *testing.T) bool {
	t.Helper()
	inProgress, err := h.repo.IsMergeInProgress(context.Background())
	require.NoError(t, err)
	return inProgress
}

// runAllowingFailure runs git in dir and ignores its exit status, for commands
// such as a conflicting merge that are expected to fail.
func runAllowingFailure(dir string, args ...string) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	_ = cmd.Run()
}
