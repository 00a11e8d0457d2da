package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"gitflow/internal/git"
	"gitflow/internal/logging"
)

// OperationOutcome is the result of a step that may partially fail.
type OperationOutcome struct {
	Success            bool
	PullRequestCreated bool
	PullRequestURL     string
	ConflictingPaths   []string
	Err                error
	// SideBranch names the branch created to carry a pull request after a
	// protected-branch rejection.
	SideBranch string
	// PendingPush is set when the work exists only locally and must be pushed
	// once the remote is reachable.
	PendingPush bool
}

// sideBranchTimeLayout is YYYYMMDDHHMMSS.
const sideBranchTimeLayout = "20060102150405"

// Fallback pushes branches and, when the remote rejects a push to a
// protected branch, reroutes the change through a side branch and a pull request.
type Fallback struct {
	repo   Repository
	probe  Reachability
	prs    git.PullRequester
	out    Printer
	ledger *Ledger
	remote string
	draft  bool
	now    func() time.Time
}

// PushOrFallback pushes localBranch to the session remote. The branch active
// on entry is active again on return, whichever path was taken.
func (f *Fallback) PushOrFallback(ctx context.Context, localBranch string) OperationOutcome {
	original, _ := f.repo.CurrentBranch(ctx)
	defer restoreBranch(ctx, f.repo, f.out, original)

	if !f.probe.IsReachable(ctx, f.remote) {
		f.out.Warnf("No network connection. %s will be pushed when online.", localBranch)
		return OperationOutcome{PendingPush: true}
	}

	err := f.push(ctx, localBranch)
	if err == nil {
		f.out.Successf("Pushed %s to %s", localBranch, f.remote)
		return OperationOutcome{Success: true}
	}

	switch kind := f.repo.Classifier().Classify(err); kind {
	case git.FailureUpToDate:
		return OperationOutcome{Success: true}
	case git.FailureProtectedBranch:
		f.out.Warnf("%s is protected on %s. Opening a pull request instead.", localBranch, f.remote)
		return f.Divert(ctx, localBranch, localBranch, "update-"+localBranch)
	default:
		logging.Logger.Debug("push failed", "branch", localBranch, "kind", kind.String(), "error", err)
		f.out.Errorf("Failed to push %s: %v", localBranch, err)
		return OperationOutcome{Err: fmt.Errorf("failed to push %s: %w", localBranch, err)}
	}
}

// push pushes branch with upstream tracking. A non-fast-forward rejection is
// answered once by rebasing onto the remote branch and pushing again.
func (f *Fallback) push(ctx context.Context, branch string) error {
	attempts := 0
	op := func() error {
		attempts++
		err := f.repo.Push(ctx, f.remote, branch, git.PushOptions{SetUpstream: true})
		if err == nil {
			return nil
		}
		if f.repo.Classifier().Classify(err) != git.FailureNonFastForward || attempts > 1 {
			return backoff.Permanent(err)
		}
		f.out.Warnf("%s has new commits on %s. Rebasing and retrying the push.", branch, f.remote)
		if err := f.rebaseOnto(ctx, branch); err != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1), ctx)
	return backoff.Retry(op, bo)
}

func (f *Fallback) rebaseOnto(ctx context.Context, branch string) error {
	current, err := f.repo.CurrentBranch(ctx)
	if err != nil || current != branch {
		if err := f.repo.Checkout(ctx, branch); err != nil {
			return fmt.Errorf("failed to checkout %s for rebase: %w", branch, err)
		}
	}
	if err := f.repo.PullRebase(ctx, f.remote, branch); err != nil {
		if abortErr := f.repo.RebaseAbort(ctx); abortErr != nil {
			logging.Logger.Debug("rebase abort failed", "branch", branch, "error", abortErr)
		}
		return fmt.Errorf("failed to rebase %s onto %s/%s: %w", branch, f.remote, branch, err)
	}
	return nil
}

// Divert creates a side branch named "{prefix}-{UTC timestamp}" from source,
// pushes it and requests a pull request into target. Offline, the side branch
// is created locally and flagged for a later push. Either way it is recorded
// in the ledger.
func (f *Fallback) Divert(ctx context.Context, source, target, prefix string) OperationOutcome {
	return f.divert(ctx, source, target, prefix,
		fmt.Sprintf("Direct push to %s was rejected because the branch is protected.", target))
}

func (f *Fallback) divert(ctx context.Context, source, target, prefix, body string) OperationOutcome {
	original, _ := f.repo.CurrentBranch(ctx)
	defer restoreBranch(ctx, f.repo, f.out, original)

	side := f.sideBranchName(ctx, prefix)
	if err := f.repo.CreateBranch(ctx, side, source); err != nil {
		f.out.Errorf("Failed to create side branch %s: %v", side, err)
		return OperationOutcome{Err: fmt.Errorf("failed to create side branch %s: %w", side, err)}
	}
	logging.Logger.Debug("created side branch", "side", side, "source", source, "target", target)

	entry := SideBranch{Branch: side, Target: target, CreatedAt: f.now().UTC()}
	outcome := OperationOutcome{SideBranch: side}

	if !f.probe.IsReachable(ctx, f.remote) {
		f.out.Warnf("No network connection. Side branch %s will need to be pushed when online.", side)
		outcome.PendingPush = true
		f.record(entry)
		return outcome
	}

	if err := f.repo.Push(ctx, f.remote, side, git.PushOptions{SetUpstream: true}); err != nil {
		f.out.Errorf("Failed to push side branch %s: %v", side, err)
		outcome.PendingPush = true
		outcome.Err = fmt.Errorf("failed to push side branch %s: %w", side, err)
		f.record(entry)
		return outcome
	}
	entry.Pushed = true
	outcome.Success = true

	if f.prs == nil {
		f.out.Warnf("No pull request backend configured. Open a pull request from %s into %s manually.", side, target)
		f.record(entry)
		return outcome
	}

	res, err := f.prs.CreatePullRequest(ctx, git.PullRequest{
		Base:  target,
		Head:  side,
		Title: pullRequestTitle(side, target),
		Body:  body,
		Draft: f.draft,
	})
	switch {
	case err != nil:
		f.out.Errorf("Failed to create pull request from %s into %s: %v", side, target, err)
		outcome.Err = err
	case res.Created:
		f.out.Successf("Created pull request from %s into %s %s", side, target, res.URL)
		outcome.PullRequestCreated = true
		outcome.PullRequestURL = res.URL
		entry.PullURL = res.URL
	case res.AlreadyExists:
		f.out.Infof("A pull request from %s into %s already exists", side, target)
	case res.NoCommitsBetween:
		f.out.Infof("No commits between %s and %s; no pull request needed", target, side)
	}
	f.record(entry)
	return outcome
}

// sideBranchName returns prefix plus the UTC timestamp, suffixed -2, -3, ...
// when a local branch of that name already exists.
func (f *Fallback) sideBranchName(ctx context.Context, prefix string) string {
	base := prefix + "-" + f.now().UTC().Format(sideBranchTimeLayout)
	name := base
	for i := 2; f.repo.BranchExists(ctx, name); i++ {
		name = fmt.Sprintf("%s-%d", base, i)
	}
	return name
}

func (f *Fallback) record(entry SideBranch) {
	if f.ledger == nil {
		return
	}
	if err := f.ledger.Record(entry); err != nil {
		f.out.Warnf("Failed to record side branch %s: %v", entry.Branch, err)
	}
}

func pullRequestTitle(head, base string) string {
	return fmt.Sprintf("Merge %s into %s", head, base)
}

// restoreBranch checks out branch again unless a merge is still in progress,
// in which case the conflicted branch must stay checked out.
func restoreBranch(ctx context.Context, repo Repository, out Printer, branch string) {
	if branch == "" || branch == "HEAD" {
		return
	}
	if inProgress, err := repo.IsMergeInProgress(ctx); err == nil && inProgress {
		out.Warnf("A merge is in progress; staying on the current branch. Run 'gitflow continue-merge' once conflicts are resolved.")
		return
	}
	current, err := repo.CurrentBranch(ctx)
	if err == nil && current == branch {
		return
	}
	logging.Logger.Debug("restoring branch", "from", current, "to", branch)
	if err := repo.Checkout(ctx, branch); err != nil {
		out.Errorf("Failed to switch back to %s: %v", branch, err)
		return
	}
	out.Infof("Switched back to %s", branch)
}
