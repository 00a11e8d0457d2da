package flow

import (
	"context"
	"errors"
	"fmt"

	"gitflow/internal/git"
)

// RemoveOptions controls Remove.
type RemoveOptions struct {
	// Remote also deletes the branches on the remote.
	Remote bool
	// Force deletes unmerged branches and ignores open pull requests.
	Force bool
}

// Remove deletes branches. The long-lived branches are never deleted, and a
// remote branch backing an open pull request is kept unless forced.
func (s *Session) Remove(ctx context.Context, branches []string, opts RemoveOptions) error {
	if len(branches) == 0 {
		return fmt.Errorf("%w: no branch given", ErrInvalidSpecification)
	}
	online := s.online(ctx)
	deleteRemote := opts.Remote
	if opts.Remote && !online {
		s.out.Warnf("No network connection. Only local branches will be deleted.")
		deleteRemote = false
	}
	if deleteRemote {
		if err := s.repo.Fetch(ctx, s.remote); err != nil {
			s.out.Warnf("Failed to fetch from %s: %v", s.remote, err)
		}
	}

	var errs []error
	for _, branch := range branches {
		if s.branches.Protected(branch) {
			s.out.Errorf("You cannot delete the %s branch. Skipping.", branch)
			continue
		}
		if deleteRemote && !opts.Force {
			open, err := s.hasOpenPullRequest(ctx, branch)
			if err != nil {
				s.out.Warnf("Could not check for open pull requests on %s: %v. Use --force to delete it anyway. Skipping.", branch, err)
				continue
			}
			if open {
				s.out.Warnf("There are open pull requests for %s. Use --force to delete it anyway. Skipping.", branch)
				continue
			}
		}

		if s.repo.BranchExists(ctx, branch) {
			if current, _ := s.repo.CurrentBranch(ctx); current == branch {
				if err := s.checkoutOrTrack(ctx, s.branches.Develop); err != nil {
					errs = append(errs, err)
					continue
				}
				s.out.Infof("Switched to %s", s.branches.Develop)
			}
			if err := s.repo.DeleteLocalBranch(ctx, branch, opts.Force); err != nil {
				if s.repo.Classifier().Classify(err) == git.FailureNotFullyMerged {
					s.out.Warnf("%s is not fully merged. Use --force to delete it anyway.", branch)
				} else {
					s.out.Errorf("Failed to delete %s: %v", branch, err)
				}
				errs = append(errs, fmt.Errorf("failed to delete %s: %w", branch, err))
				continue
			}
			s.out.Successf("Deleted local branch %s", branch)
		} else if !deleteRemote {
			s.out.Warnf("No local branch named %s.", branch)
		}

		if deleteRemote && s.repo.RemoteBranchExists(ctx, s.remote, branch) {
			if err := s.repo.DeleteRemoteBranch(ctx, s.remote, branch); err != nil {
				s.out.Errorf("Failed to delete %s/%s: %v", s.remote, branch, err)
				errs = append(errs, fmt.Errorf("failed to delete %s/%s: %w", s.remote, branch, err))
				continue
			}
			s.out.Successf("Deleted remote branch %s/%s", s.remote, branch)
		}
	}
	return errors.Join(errs...)
}

// RenameOptions controls Rename.
type RenameOptions struct {
	// Remote renames the remote branch as well.
	Remote bool
}

// Rename renames a local branch and optionally its remote counterpart. When
// the old remote branch is protected, a side branch and pull request carry
// the rename instead.
func (s *Session) Rename(ctx context.Context, oldName, newName string, opts RenameOptions) (res OperationOutcome, err error) {
	if s.branches.Protected(oldName) || s.branches.Protected(newName) {
		return res, fmt.Errorf("%w: cannot rename %s or %s", ErrInvalidSpecification, s.branches.Main, s.branches.Develop)
	}
	if oldName == "" || newName == "" || oldName == newName {
		return res, fmt.Errorf("%w: rename needs two different branch names", ErrInvalidSpecification)
	}
	if err := validateName(newName); err != nil {
		return res, err
	}
	if !s.repo.BranchExists(ctx, oldName) {
		return res, fmt.Errorf("%w: branch %s does not exist", ErrRefNotResolvable, oldName)
	}
	if s.repo.BranchExists(ctx, newName) {
		return res, fmt.Errorf("%w: branch %s already exists", ErrInvalidSpecification, newName)
	}

	var rec reconciliation
	defer func() { s.offerStashPop(ctx, rec) }()
	rec, err = s.reconcile(ctx, "renaming "+oldName)
	if err != nil {
		return res, err
	}

	if err := s.repo.RenameBranch(ctx, oldName, newName); err != nil {
		return res, fmt.Errorf("failed to rename %s to %s: %w", oldName, newName, err)
	}
	s.out.Successf("Renamed local branch %s to %s", oldName, newName)
	if !opts.Remote {
		return OperationOutcome{Success: true}, nil
	}

	if !s.online(ctx) {
		s.out.Warnf("No network connection. Remote operations were skipped; sync when online.")
		return OperationOutcome{PendingPush: true}, nil
	}
	if err := s.repo.Fetch(ctx, s.remote); err != nil {
		s.out.Warnf("Failed to fetch from %s: %v", s.remote, err)
	}
	hadRemote := s.repo.RemoteBranchExists(ctx, s.remote, oldName)

	if err := s.repo.Push(ctx, s.remote, newName, git.PushOptions{SetUpstream: true}); err != nil {
		s.out.Errorf("Failed to push %s: %v", newName, err)
		return OperationOutcome{Err: fmt.Errorf("failed to push %s: %w", newName, err)}, nil
	}
	if hadRemote {
		if err := s.repo.DeleteRemoteBranch(ctx, s.remote, oldName); err != nil {
			if s.repo.Classifier().Classify(err) != git.FailureProtectedBranch {
				s.out.Errorf("Failed to delete %s/%s: %v", s.remote, oldName, err)
				return OperationOutcome{Err: fmt.Errorf("failed to delete %s/%s: %w", s.remote, oldName, err)}, nil
			}
			s.out.Warnf("%s is protected on %s. Opening a pull request for the rename.", oldName, s.remote)
			return s.fallback.Divert(ctx, newName, oldName, fmt.Sprintf("rename-%s-to-%s", oldName, newName)), nil
		}
	}
	if err := s.repo.SetUpstream(ctx, s.remote, newName); err != nil {
		s.out.Warnf("Failed to set upstream of %s: %v", newName, err)
	}
	s.out.Successf("Renamed remote branch %s to %s", oldName, newName)
	return OperationOutcome{Success: true}, nil
}

// BranchListing is the output of ListBranches.
type BranchListing struct {
	Current string
	Local   []string
	Remote  []string
	// Stale is set when the remote could not be fetched.
	Stale bool
}

// ListBranches returns local and remote-tracking branches, refreshing the
// remote ones first when online.
func (s *Session) ListBranches(ctx context.Context) (BranchListing, error) {
	var listing BranchListing
	if s.online(ctx) {
		if err := s.repo.FetchAll(ctx); err != nil {
			s.out.Warnf("Failed to fetch: %v", err)
			listing.Stale = true
		}
	} else {
		listing.Stale = true
	}
	listing.Current, _ = s.repo.CurrentBranch(ctx)

	var err error
	if listing.Local, err = s.repo.LocalBranches(ctx); err != nil {
		return listing, fmt.Errorf("failed to list local branches: %w", err)
	}
	if listing.Remote, err = s.repo.RemoteBranches(ctx, s.remote); err != nil {
		return listing, fmt.Errorf("failed to list remote branches: %w", err)
	}
	return listing, nil
}

// StatusReport describes the repository for the status command.
type StatusReport struct {
	Branch     string
	LastCommit git.LastCommit
	// Tracked is false when the branch has no remote counterpart.
	Tracked      bool
	Ahead        int
	Behind       int
	Changes      []git.StatusEntry
	Remotes      [][2]string
	SideBranches []SideBranch
}

// Status gathers the current branch, last commit, divergence from the
// remote, working tree changes, remotes and pending side branches.
func (s *Session) Status(ctx context.Context) (StatusReport, error) {
	var report StatusReport
	var err error
	if report.Branch, err = s.repo.CurrentBranch(ctx); err != nil {
		return report, fmt.Errorf("failed to determine current branch: %w", err)
	}
	if report.LastCommit, err = s.repo.HeadCommit(ctx); err != nil {
		return report, fmt.Errorf("failed to read last commit: %w", err)
	}
	if s.repo.RemoteBranchExists(ctx, s.remote, report.Branch) {
		ahead, behind, err := s.repo.AheadBehind(ctx, s.remote+"/"+report.Branch, "HEAD")
		if err == nil {
			report.Tracked = true
			report.Ahead, report.Behind = ahead, behind
		}
	}
	if report.Changes, err = s.repo.Status(ctx); err != nil {
		return report, fmt.Errorf("failed to read working tree status: %w", err)
	}
	if report.Remotes, err = s.repo.Remotes(ctx); err != nil {
		return report, fmt.Errorf("failed to list remotes: %w", err)
	}
	if report.SideBranches, err = s.ledger.List(); err != nil {
		s.out.Warnf("Failed to read side-branch ledger: %v", err)
	}
	return report, nil
}

// CleanupOptions controls Cleanup.
type CleanupOptions struct {
	// Remote also deletes remote side branches whose pull requests are closed.
	Remote bool
}

// Cleanup deletes the side branches recorded in the ledger and returns the
// entries it removed. Pushed entries stay recorded until their remote copy
// is deleted; unpushed ones are only deleted after confirmation.
func (s *Session) Cleanup(ctx context.Context, opts CleanupOptions) ([]SideBranch, error) {
	entries, err := s.ledger.List()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		s.out.Infof("No side branches recorded.")
		return nil, nil
	}

	online := opts.Remote && s.online(ctx)
	if opts.Remote && !online {
		s.out.Warnf("No network connection. Remote side branches are kept.")
	}

	var removed []SideBranch
	for _, e := range entries {
		if !e.Pushed {
			ok, err := s.prompt.Confirm(fmt.Sprintf("Side branch %s was never pushed. Delete it anyway?", e.Branch), false)
			if err != nil {
				return removed, err
			}
			if !ok {
				continue
			}
		}
		if !s.deleteSideLocal(ctx, e.Branch) {
			continue
		}
		if e.Pushed {
			if !online {
				continue
			}
			open, err := s.hasOpenPullRequest(ctx, e.Branch)
			if err != nil {
				s.out.Warnf("Keeping %s/%s: could not check its pull request: %v", s.remote, e.Branch, err)
				continue
			}
			if open {
				s.out.Infof("Keeping %s/%s: its pull request is still open.", s.remote, e.Branch)
				continue
			}
			if err := s.repo.DeleteRemoteBranch(ctx, s.remote, e.Branch); err != nil {
				s.out.Errorf("Failed to delete %s/%s: %v", s.remote, e.Branch, err)
				continue
			}
			s.out.Successf("Deleted remote branch %s/%s", s.remote, e.Branch)
		}
		if err := s.ledger.Remove(e.Branch); err != nil {
			return removed, err
		}
		removed = append(removed, e)
	}
	return removed, nil
}

func (s *Session) deleteSideLocal(ctx context.Context, branch string) bool {
	if !s.repo.BranchExists(ctx, branch) {
		return true
	}
	if current, _ := s.repo.CurrentBranch(ctx); current == branch {
		if err := s.checkoutOrTrack(ctx, s.branches.Develop); err != nil {
			s.out.Errorf("Failed to leave %s: %v", branch, err)
			return false
		}
	}
	if err := s.repo.DeleteLocalBranch(ctx, branch, true); err != nil {
		s.out.Errorf("Failed to delete %s: %v", branch, err)
		return false
	}
	s.out.Successf("Deleted local branch %s", branch)
	return true
}
