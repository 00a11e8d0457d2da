// Package flow implements the git-flow branch lifecycle: naming, divergence
// analysis, protected-branch fallback and the start/finish/update/merge workflows.
package flow

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"gitflow/internal/git"
)

// Repository is the set of git primitives the workflows drive.
type Repository interface {
	GitDir(ctx context.Context) (string, error)
	CurrentBranch(ctx context.Context) (string, error)
	RevParse(ctx context.Context, ref string) (string, error)
	BranchExists(ctx context.Context, name string) bool
	RemoteBranchExists(ctx context.Context, remote, name string) bool
	LocalBranches(ctx context.Context) ([]string, error)
	RemoteBranches(ctx context.Context, remote string) ([]string, error)

	Checkout(ctx context.Context, branch string) error
	CheckoutForce(ctx context.Context, branch string) error
	CheckoutPaths(ctx context.Context, ref string, paths ...string) error
	PathExists(ctx context.Context, ref, path string) bool
	CreateBranch(ctx context.Context, branch, startPoint string) error
	CreateTrackingBranch(ctx context.Context, remote, branch string) error
	RenameBranch(ctx context.Context, oldName, newName string) error
	SetUpstream(ctx context.Context, remote, branch string) error
	DeleteLocalBranch(ctx context.Context, branch string, force bool) error
	DeleteRemoteBranch(ctx context.Context, remote, branch string) error

	Status(ctx context.Context) ([]git.StatusEntry, error)
	IsDirty(ctx context.Context) (bool, error)
	ConflictingPaths(ctx context.Context) ([]string, error)
	IsMergeInProgress(ctx context.Context) (bool, error)
	Add(ctx context.Context, paths ...string) error
	AddAll(ctx context.Context) error
	HasStagedChanges(ctx context.Context) (bool, error)
	Commit(ctx context.Context, message string) error
	CommitNoEdit(ctx context.Context) error
	HeadCommit(ctx context.Context) (git.LastCommit, error)
	StashPush(ctx context.Context, message string) error
	StashPop(ctx context.Context) error
	StashSave(ctx context.Context, message string, includeUntracked bool) error
	Stashes(ctx context.Context) ([]git.StashEntry, error)
	StashShow(ctx context.Context, ref string) (string, error)
	StashApply(ctx context.Context, ref string, pop bool) error
	StashDrop(ctx context.Context, ref string) error
	StashClear(ctx context.Context) error

	Fetch(ctx context.Context, remote string, refs ...string) error
	FetchAll(ctx context.Context) error
	FetchPrune(ctx context.Context, remote string) error
	Pull(ctx context.Context, remote, branch string) error
	PullRebase(ctx context.Context, remote, branch string) error
	RebaseAbort(ctx context.Context) error
	Push(ctx context.Context, remote, refspec string, opts git.PushOptions) error

	Tags(ctx context.Context) ([]string, error)
	TagExists(ctx context.Context, tag string) bool
	CreateTag(ctx context.Context, tag, message string) error
	PushTag(ctx context.Context, remote, tag string) error

	MergeBase(ctx context.Context, a, b string) (string, error)
	AheadBehind(ctx context.Context, base, head string) (ahead, behind int, err error)
	Diff(ctx context.Context, from, to string) (string, error)
	Merge(ctx context.Context, source string, opts git.MergeOptions) error
	MergeAbort(ctx context.Context) error
	MergeTool(ctx context.Context) error

	Remotes(ctx context.Context) ([][2]string, error)

	Dir() string
	Classifier() *git.Classifier
}

var _ Repository = (*git.Repo)(nil)

// Reachability answers whether a remote can be contacted right now.
type Reachability interface {
	IsReachable(ctx context.Context, remote string) bool
}

// Prompter asks the user for a decision. Every call blocks until answered.
type Prompter interface {
	Select(prompt string, choices []string) (string, error)
	Confirm(prompt string, def bool) (bool, error)
	Text(prompt, def string) (string, error)
}

// Printer is the display sink for user-visible progress.
type Printer interface {
	Infof(format string, args ...any)
	Successf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Options configures a Session.
type Options struct {
	Repo              Repository
	Probe             Reachability
	PullRequests      git.PullRequester
	Prompt            Prompter
	Out               Printer
	Remote            string
	Branches          Branches
	DefaultIncrement  Increment
	DraftPullRequests bool
	Now               func() time.Time
}

// Session carries everything one command invocation needs. It is built once
// per invocation and passed to every operation.
type Session struct {
	repo     Repository
	probe    Reachability
	prs      git.PullRequester
	prompt   Prompter
	out      Printer
	remote   string
	branches Branches
	incr     Increment
	draft    bool
	now      func() time.Time

	resolver Resolver
	analyzer *Analyzer
	fallback *Fallback
	ledger   *Ledger
}

// NewSession wires the collaborators together.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if opts.Repo == nil || opts.Probe == nil || opts.Prompt == nil || opts.Out == nil {
		return nil, fmt.Errorf("session requires a repository, probe, prompter and printer")
	}
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	if opts.Branches == (Branches{}) {
		opts.Branches = DefaultBranches()
	}
	if opts.DefaultIncrement == "" {
		opts.DefaultIncrement = IncrementPatch
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	gitDir, err := opts.Repo.GitDir(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to locate git directory: %w", err)
	}
	ledger := NewLedger(filepath.Join(gitDir, "gitflow", "side-branches.yml"))

	s := &Session{
		repo:     opts.Repo,
		probe:    opts.Probe,
		prs:      opts.PullRequests,
		prompt:   opts.Prompt,
		out:      opts.Out,
		remote:   opts.Remote,
		branches: opts.Branches,
		incr:     opts.DefaultIncrement,
		draft:    opts.DraftPullRequests,
		now:      opts.Now,
		resolver: Resolver{Branches: opts.Branches, Now: opts.Now},
		ledger:   ledger,
	}
	s.analyzer = &Analyzer{repo: s.repo, probe: s.probe, remote: s.remote}
	s.fallback = &Fallback{
		repo:   s.repo,
		probe:  s.probe,
		prs:    s.prs,
		out:    s.out,
		ledger: s.ledger,
		remote: s.remote,
		draft:  s.draft,
		now:    s.now,
	}
	return s, nil
}

// Analyzer returns the session's divergence analyzer.
func (s *Session) Analyzer() *Analyzer { return s.analyzer }

// Fallback returns the session's protected-branch fallback handler.
func (s *Session) Fallback() *Fallback { return s.fallback }

// Ledger returns the persisted side-branch ledger.
func (s *Session) Ledger() *Ledger { return s.ledger }

// Resolver returns the session's branch naming resolver.
func (s *Session) Resolver() Resolver { return s.resolver }

// Branches returns the configured long-lived branch names.
func (s *Session) Branches() Branches { return s.branches }

// Remote returns the remote name the session pushes to.
func (s *Session) Remote() string { return s.remote }

func (s *Session) online(ctx context.Context) bool {
	return s.probe.IsReachable(ctx, s.remote)
}

// restore returns to branch; see restoreBranch.
func (s *Session) restore(ctx context.Context, branch string) {
	restoreBranch(ctx, s.repo, s.out, branch)
}

// checkout switches to branch when it is not already current.
func (s *Session) checkout(ctx context.Context, branch string) error {
	current, err := s.repo.CurrentBranch(ctx)
	if err == nil && current == branch {
		return nil
	}
	if err := s.repo.Checkout(ctx, branch); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", branch, err)
	}
	return nil
}

// checkoutOrTrack switches to branch, creating it from its remote
// counterpart when only that exists.
func (s *Session) checkoutOrTrack(ctx context.Context, branch string) error {
	if s.repo.BranchExists(ctx, branch) {
		return s.checkout(ctx, branch)
	}
	if !s.repo.RemoteBranchExists(ctx, s.remote, branch) && s.online(ctx) {
		_ = s.repo.Fetch(ctx, s.remote, branch)
	}
	if !s.repo.RemoteBranchExists(ctx, s.remote, branch) {
		return fmt.Errorf("%w: branch %s does not exist", ErrRefNotResolvable, branch)
	}
	if err := s.repo.CreateTrackingBranch(ctx, s.remote, branch); err != nil {
		return fmt.Errorf("failed to create %s from %s/%s: %w", branch, s.remote, branch, err)
	}
	return nil
}

// pullIfOnline brings the current branch up to date with its remote counterpart.
func (s *Session) pullIfOnline(ctx context.Context, branch string) {
	if !s.online(ctx) {
		s.out.Warnf("No network connection. Skipping pull of %s.", branch)
		return
	}
	if !s.repo.RemoteBranchExists(ctx, s.remote, branch) {
		if err := s.repo.Fetch(ctx, s.remote); err != nil || !s.repo.RemoteBranchExists(ctx, s.remote, branch) {
			return
		}
	}
	if err := s.repo.Pull(ctx, s.remote, branch); err != nil {
		s.out.Warnf("Failed to pull %s: %v", branch, err)
		return
	}
	s.out.Infof("Pulled latest changes for %s", branch)
}
