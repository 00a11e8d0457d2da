package flow

import (
	"context"
	"fmt"

	"gitflow/internal/git"
)

// Choices offered when the local branch is behind its remote counterpart.
const (
	ChoicePullRebase = "Pull and rebase"
	ChoiceForcePush  = "Force push"
	ChoiceCreatePR   = "Create pull request"
)

// PushOptions controls Push.
type PushOptions struct {
	// Branch defaults to the current branch.
	Branch string
	Force  bool
	// PullRequest opens a pull request from the current branch into Branch
	// instead of pushing.
	PullRequest bool
}

// Push publishes a branch after comparing it with its remote counterpart.
func (s *Session) Push(ctx context.Context, opts PushOptions) (res OperationOutcome, err error) {
	current, err := s.repo.CurrentBranch(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to determine current branch: %w", err)
	}
	branch := opts.Branch
	if branch == "" {
		branch = current
	}

	var rec reconciliation
	defer func() {
		s.restore(ctx, current)
		s.offerStashPop(ctx, rec)
	}()
	rec, err = s.reconcile(ctx, "pushing "+branch)
	if err != nil {
		return res, err
	}

	if !s.online(ctx) {
		s.out.Warnf("No network connection. Changes will be pushed when online.")
		return OperationOutcome{PendingPush: true}, nil
	}
	if err := s.repo.Fetch(ctx, s.remote); err != nil {
		s.out.Warnf("Failed to fetch from %s: %v", s.remote, err)
	}

	if opts.PullRequest {
		if current == branch {
			return res, fmt.Errorf("%w: cannot open a pull request from %s into itself", ErrInvalidSpecification, branch)
		}
		pr := s.openPullRequest(ctx, current, branch, pullRequestTitle(current, branch), "Automated pull request from gitflow")
		return OperationOutcome{Success: !pr.failed, PullRequestCreated: pr.created, PullRequestURL: pr.url}, nil
	}

	if !s.repo.RemoteBranchExists(ctx, s.remote, branch) {
		return s.fallback.PushOrFallback(ctx, branch), nil
	}

	report, err := s.analyzer.Analyze(ctx, branch, branch)
	if err != nil {
		return res, err
	}
	switch {
	case report.Behind > 0:
		s.out.Warnf("%s is %d commit(s) behind %s/%s.", branch, report.Behind, s.remote, branch)
		if opts.Force {
			return s.forcePush(ctx, branch, report), nil
		}
		return s.resolveBehind(ctx, current, branch, report)
	case report.Ahead > 0:
		s.out.Infof("%s is %d commit(s) ahead of %s/%s.", branch, report.Ahead, s.remote, branch)
		return s.fallback.PushOrFallback(ctx, branch), nil
	default:
		s.out.Infof("%s is up to date with %s/%s. No push needed.", branch, s.remote, branch)
		return OperationOutcome{Success: true}, nil
	}
}

func (s *Session) resolveBehind(ctx context.Context, current, branch string, report DivergenceReport) (OperationOutcome, error) {
	choices := []string{ChoicePullRebase, ChoiceForcePush}
	if current != branch {
		choices = append(choices, ChoiceCreatePR)
	}
	choices = append(choices, ChoiceAbort)

	choice, err := s.prompt.Select("How would you like to proceed?", choices)
	if err != nil {
		return OperationOutcome{}, err
	}
	switch choice {
	case ChoicePullRebase:
		if err := s.checkout(ctx, branch); err != nil {
			return OperationOutcome{}, err
		}
		if err := s.repo.PullRebase(ctx, s.remote, branch); err != nil {
			_ = s.repo.RebaseAbort(ctx)
			return OperationOutcome{Err: err}, fmt.Errorf("failed to rebase %s: %w", branch, err)
		}
		s.out.Successf("Rebased %s onto %s/%s", branch, s.remote, branch)
		if report.Ahead == 0 {
			return OperationOutcome{Success: true}, nil
		}
		return s.fallback.PushOrFallback(ctx, branch), nil
	case ChoiceForcePush:
		return s.forcePush(ctx, branch, report), nil
	case ChoiceCreatePR:
		pr := s.openPullRequest(ctx, current, branch, pullRequestTitle(current, branch), "Automated pull request from gitflow")
		return OperationOutcome{Success: !pr.failed, PullRequestCreated: pr.created, PullRequestURL: pr.url}, nil
	default:
		return OperationOutcome{}, ErrUserAbort
	}
}

// forcePush overwrites the remote branch. It refuses when the comparison was
// made against stale local refs.
func (s *Session) forcePush(ctx context.Context, branch string, report DivergenceReport) OperationOutcome {
	if report.Degraded {
		err := fmt.Errorf("refusing to force-push %s without an up-to-date view of %s", branch, s.remote)
		s.out.Errorf("%v", err)
		return OperationOutcome{Err: err}
	}
	if err := s.repo.Push(ctx, s.remote, branch, git.PushOptions{Force: true}); err != nil {
		s.out.Errorf("Failed to force-push %s: %v", branch, err)
		return OperationOutcome{Err: fmt.Errorf("failed to force-push %s: %w", branch, err)}
	}
	s.out.Successf("Force-pushed %s to %s", branch, s.remote)
	return OperationOutcome{Success: true}
}
