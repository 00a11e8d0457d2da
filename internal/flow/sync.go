package flow

import (
	"context"
	"fmt"

	"gitflow/internal/logging"
)

// FetchOptions controls Fetch.
type FetchOptions struct {
	// Remote defaults to the session remote.
	Remote string
	Branch string
	Prune  bool
	// All fetches every remote and always prunes.
	All bool
}

// Fetch downloads refs without touching any local branch.
func (s *Session) Fetch(ctx context.Context, opts FetchOptions) error {
	remote := opts.Remote
	if remote == "" {
		remote = s.remote
	}
	if !s.probe.IsReachable(ctx, remote) {
		return fmt.Errorf("%w: unable to fetch from %s", ErrOffline, remote)
	}

	var err error
	switch {
	case opts.All:
		s.out.Infof("Fetching changes from all remotes...")
		err = s.repo.FetchAll(ctx)
	case opts.Branch != "":
		s.out.Infof("Fetching branch %s from %s...", opts.Branch, remote)
		err = s.repo.Fetch(ctx, remote, opts.Branch)
	case opts.Prune:
		s.out.Infof("Fetching changes from %s and pruning deleted branches...", remote)
		err = s.repo.FetchPrune(ctx, remote)
	default:
		s.out.Infof("Fetching changes from %s...", remote)
		err = s.repo.Fetch(ctx, remote)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	s.out.Successf("Fetched changes.")
	return nil
}

// PullOptions controls Pull.
type PullOptions struct {
	// Branch defaults to the current branch. Another branch is checked out,
	// pulled and left again.
	Branch string
	// All pulls every local branch that differs from its remote counterpart.
	All    bool
	Prune  bool
	Rebase bool
}

// PullResult lists what happened to each branch considered.
type PullResult struct {
	Updated  []string
	UpToDate []string
	Failed   []string
	// Merge is set when a pull stopped on conflicts.
	Merge *MergeResult
}

// Pull fetches from the session remote and brings local branches up to date,
// by merge or, with Rebase, by rebasing local commits on top.
func (s *Session) Pull(ctx context.Context, opts PullOptions) (res PullResult, err error) {
	if !s.online(ctx) {
		return res, fmt.Errorf("%w: unable to pull from %s", ErrOffline, s.remote)
	}
	original, err := s.repo.CurrentBranch(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to determine current branch: %w", err)
	}

	var rec reconciliation
	defer func() {
		s.restore(ctx, original)
		s.popUnlessMerging(ctx, rec)
	}()
	rec, err = s.reconcile(ctx, "pulling")
	if err != nil {
		return res, err
	}

	switch {
	case opts.All:
		err = s.repo.FetchAll(ctx)
	case opts.Prune:
		err = s.repo.FetchPrune(ctx, s.remote)
	default:
		err = s.repo.Fetch(ctx, s.remote)
	}
	if err != nil {
		return res, fmt.Errorf("failed to fetch from %s: %w", s.remote, err)
	}
	s.out.Successf("Fetched changes from %s.", s.remote)

	branches := []string{opts.Branch}
	if opts.Branch == "" {
		branches[0] = original
	}
	if opts.All {
		if branches, err = s.repo.LocalBranches(ctx); err != nil {
			return res, fmt.Errorf("failed to list branches: %w", err)
		}
	}

	for _, branch := range branches {
		if !s.repo.RemoteBranchExists(ctx, s.remote, branch) {
			if !opts.All {
				return res, fmt.Errorf("%w: %s/%s", ErrRefNotResolvable, s.remote, branch)
			}
			logging.Logger.Debug("pull skipped", "branch", branch, "reason", "no remote counterpart")
			continue
		}
		incoming, _, err := s.repo.AheadBehind(ctx, branch, s.remote+"/"+branch)
		if err == nil && incoming == 0 {
			s.out.Infof("%s is up to date.", branch)
			res.UpToDate = append(res.UpToDate, branch)
			continue
		}

		if err := s.checkout(ctx, branch); err != nil {
			s.out.Errorf("%v", err)
			res.Failed = append(res.Failed, branch)
			continue
		}
		s.out.Infof("Pulling changes for %s...", branch)
		merge, err := s.pullBranch(ctx, branch, opts.Rebase)
		switch {
		case err != nil:
			s.out.Errorf("Failed to pull %s: %v", branch, err)
			res.Failed = append(res.Failed, branch)
		case merge != nil:
			res.Merge = merge
			if !merge.Completed() {
				res.Failed = append(res.Failed, branch)
				if merge.State == MergeConflicted {
					return res, nil
				}
				continue
			}
			res.Updated = append(res.Updated, branch)
		default:
			s.out.Successf("Pulled changes for %s.", branch)
			res.Updated = append(res.Updated, branch)
		}
	}
	return res, nil
}

// pullBranch pulls the checked-out branch. A rebase that fails is abandoned;
// a merge that stops on conflicts goes to the conflict prompt.
func (s *Session) pullBranch(ctx context.Context, branch string, rebase bool) (*MergeResult, error) {
	if rebase {
		if err := s.repo.PullRebase(ctx, s.remote, branch); err != nil {
			if abortErr := s.repo.RebaseAbort(ctx); abortErr != nil {
				logging.Logger.Debug("rebase abort failed", "branch", branch, "error", abortErr)
			}
			return nil, err
		}
		return nil, nil
	}

	pullErr := s.repo.Pull(ctx, s.remote, branch)
	if pullErr == nil {
		return nil, nil
	}
	paths, err := s.repo.ConflictingPaths(ctx)
	if err != nil || len(paths) == 0 {
		return nil, pullErr
	}
	s.out.Warnf("Merge conflicts detected when pulling %s.", branch)
	merge, err := s.resolveConflicts(ctx, paths, "")
	if err != nil {
		return nil, err
	}
	return &merge, nil
}
