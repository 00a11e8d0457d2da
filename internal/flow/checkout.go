package flow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SwitchOptions controls Switch.
type SwitchOptions struct {
	// Force discards local changes instead of asking what to do with them.
	Force bool
}

// Switch checks out target. A target that is neither a local nor a remote
// branch is taken as a path whose local changes are reverted. An empty target
// is picked from a list of branches. It returns the branch now checked out.
func (s *Session) Switch(ctx context.Context, target string, opts SwitchOptions) (string, error) {
	online := s.online(ctx)
	if target == "" {
		var err error
		if target, err = s.pickBranch(ctx, "Select a branch:", online); err != nil {
			return "", err
		}
	}

	branch := strings.TrimPrefix(target, s.remote+"/")
	remoteQualified := branch != target
	if online && !s.repo.BranchExists(ctx, branch) && !s.repo.RemoteBranchExists(ctx, s.remote, branch) {
		s.fetchRemoteBranch(ctx, branch)
	}
	if !s.repo.BranchExists(ctx, branch) && !s.repo.RemoteBranchExists(ctx, s.remote, branch) {
		return "", s.revertPath(ctx, target, opts.Force)
	}

	if opts.Force {
		if !s.repo.BranchExists(ctx, branch) {
			if err := s.repo.CreateTrackingBranch(ctx, s.remote, branch); err != nil {
				return "", fmt.Errorf("failed to track %s/%s: %w", s.remote, branch, err)
			}
		} else if err := s.repo.CheckoutForce(ctx, branch); err != nil {
			return "", fmt.Errorf("failed to checkout %s: %w", branch, err)
		}
		s.out.Successf("Switched to branch %s", branch)
		return branch, nil
	}

	rec, err := s.reconcile(ctx, "switching to "+branch)
	if err != nil {
		return "", err
	}
	if rec.stashed {
		s.out.Infof("Your changes remain in the stash. Run 'gitflow unstash' to reapply them.")
	}

	existed := s.repo.BranchExists(ctx, branch)
	if err := s.checkoutOrTrack(ctx, branch); err != nil {
		return "", err
	}
	s.out.Successf("Switched to branch %s", branch)
	if existed && remoteQualified {
		s.pullIfOnline(ctx, branch)
	}
	return branch, nil
}

// pickBranch offers local branches and, online, the remote branches that have
// no local counterpart yet, prefixed with the remote name.
func (s *Session) pickBranch(ctx context.Context, prompt string, online bool) (string, error) {
	choices, err := s.repo.LocalBranches(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list branches: %w", err)
	}
	if online {
		remote, err := s.repo.RemoteBranches(ctx, s.remote)
		if err != nil {
			return "", fmt.Errorf("failed to list remote branches: %w", err)
		}
		for _, b := range remote {
			if !s.repo.BranchExists(ctx, b) {
				choices = append(choices, s.remote+"/"+b)
			}
		}
	} else {
		s.out.Warnf("Offline mode: only local branches are available.")
	}
	if len(choices) == 0 {
		return "", fmt.Errorf("%w: no branches to choose from", ErrRefNotResolvable)
	}
	return s.prompt.Select(prompt, choices)
}

// revertPath discards the working tree changes under path after confirmation.
func (s *Session) revertPath(ctx context.Context, path string, force bool) error {
	if _, err := os.Stat(filepath.Join(s.repo.Dir(), path)); err != nil {
		return fmt.Errorf("%w: %s is neither a branch nor a path", ErrRefNotResolvable, path)
	}
	if !force {
		ok, err := s.prompt.Confirm(fmt.Sprintf("Discard local changes in %s?", path), false)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserAbort
		}
	}
	if err := s.repo.CheckoutPaths(ctx, "", path); err != nil {
		return fmt.Errorf("failed to revert %s: %w", path, err)
	}
	s.out.Successf("Reverted changes in %s", path)
	return nil
}
