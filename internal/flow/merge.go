package flow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gitflow/internal/git"
	"gitflow/internal/logging"
)

// Choices offered when a merge stops on conflicts.
const (
	ChoiceMergeTool    = "Open merge tool"
	ChoiceAbortMerge   = "Abort merge"
	ChoiceResolveLater = "Resolve manually later"
)

// MergeState is where a merge ended up.
type MergeState string

const (
	MergeUpToDate    MergeState = "up_to_date"
	MergeFastForward MergeState = "fast_forward"
	MergeClean       MergeState = "clean"
	MergeConflicted  MergeState = "conflicted"
	MergeAborted     MergeState = "aborted"
)

// MergeRequest asks for Source to be merged into Target.
type MergeRequest struct {
	Source string
	Target string
	NoFF   bool
	Squash bool
}

// MergeResult describes a finished or suspended merge.
type MergeResult struct {
	State            MergeState
	ConflictingPaths []string
}

// Completed reports whether the target now contains the source.
func (r MergeResult) Completed() bool {
	switch r.State {
	case MergeUpToDate, MergeFastForward, MergeClean:
		return true
	}
	return false
}

// Merge merges req.Source into req.Target. A merge already in progress is
// resumed through ContinueMerge instead of starting a second one.
func (s *Session) Merge(ctx context.Context, req MergeRequest) (result MergeResult, err error) {
	inProgress, err := s.repo.IsMergeInProgress(ctx)
	if err != nil {
		return MergeResult{}, err
	}
	if inProgress {
		s.out.Infof("Continuing previous merge...")
		return s.ContinueMerge(ctx)
	}

	original, _ := s.repo.CurrentBranch(ctx)
	if req.Source == "" {
		req.Source = original
	}
	if req.Target == "" {
		req.Target = original
	}
	if req.Source == req.Target {
		return MergeResult{}, fmt.Errorf("%w: cannot merge %s into itself", ErrInvalidSpecification, req.Source)
	}

	var rec reconciliation
	defer func() {
		s.restore(ctx, original)
		s.popUnlessMerging(ctx, rec)
	}()

	rec, err = s.reconcile(ctx, fmt.Sprintf("merging %s into %s", req.Source, req.Target))
	if err != nil {
		return MergeResult{}, err
	}
	return s.mergeInto(ctx, req)
}

// mergeInto checks out the target and merges the source into it. Conflicts
// are handed to the conflict prompt.
func (s *Session) mergeInto(ctx context.Context, req MergeRequest) (MergeResult, error) {
	targetRev, err := s.repo.RevParse(ctx, req.Target)
	if err != nil {
		return MergeResult{}, fmt.Errorf("%w: %s", ErrRefNotResolvable, req.Target)
	}
	if _, err := s.repo.RevParse(ctx, req.Source); err != nil {
		return MergeResult{}, fmt.Errorf("%w: %s", ErrRefNotResolvable, req.Source)
	}
	mergeBase, err := s.repo.MergeBase(ctx, req.Target, req.Source)
	if err != nil {
		return MergeResult{}, fmt.Errorf("failed to find merge base of %s and %s: %w", req.Target, req.Source, err)
	}
	ahead, behind, err := s.repo.AheadBehind(ctx, req.Target, req.Source)
	if err != nil {
		s.out.Warnf("Unable to compare %s and %s. Proceeding with merge.", req.Source, req.Target)
	} else if ahead == 0 {
		s.out.Infof("%s already contains %s. No merge needed.", req.Target, req.Source)
		return MergeResult{State: MergeUpToDate}, nil
	} else {
		s.out.Infof("%s is %d commit(s) ahead and %d commit(s) behind %s.", req.Source, ahead, behind, req.Target)
	}

	if err := s.checkout(ctx, req.Target); err != nil {
		return MergeResult{}, err
	}

	if mergeBase == targetRev && !req.NoFF && !req.Squash {
		if err := s.repo.Merge(ctx, req.Source, git.MergeOptions{FFOnly: true}); err != nil {
			return MergeResult{}, fmt.Errorf("failed to fast-forward %s to %s: %w", req.Target, req.Source, err)
		}
		s.out.Successf("Fast-forwarded %s to %s", req.Target, req.Source)
		return MergeResult{State: MergeFastForward}, nil
	}

	logging.Logger.Debug("merge attempted", "source", req.Source, "target", req.Target, "no_ff", req.NoFF, "squash", req.Squash)
	mergeErr := s.repo.Merge(ctx, req.Source, git.MergeOptions{NoCommit: true, NoFF: req.NoFF, Squash: req.Squash})
	paths, err := s.repo.ConflictingPaths(ctx)
	if err != nil {
		return MergeResult{}, fmt.Errorf("failed to read merge status: %w", err)
	}
	if len(paths) > 0 {
		s.out.Warnf("Merge conflicts detected when merging %s into %s.", req.Source, req.Target)
		return s.resolveConflicts(ctx, paths, mergeMessage(req.Source, req.Target))
	}
	if mergeErr != nil {
		if inProgress, _ := s.repo.IsMergeInProgress(ctx); inProgress {
			_ = s.repo.MergeAbort(ctx)
		}
		return MergeResult{}, fmt.Errorf("failed to merge %s into %s: %w", req.Source, req.Target, mergeErr)
	}

	committed, err := s.concludeMerge(ctx, mergeMessage(req.Source, req.Target))
	if err != nil {
		return MergeResult{}, err
	}
	if committed {
		s.out.Successf("Successfully merged %s into %s.", req.Source, req.Target)
	} else {
		s.out.Infof("Merge completed but there were no changes to commit.")
	}
	return MergeResult{State: MergeClean}, nil
}

// ContinueMerge resumes a merge left in progress: it re-offers the conflict
// prompt while conflicts remain and commits otherwise.
func (s *Session) ContinueMerge(ctx context.Context) (MergeResult, error) {
	inProgress, err := s.repo.IsMergeInProgress(ctx)
	if err != nil {
		return MergeResult{}, err
	}
	if !inProgress {
		return MergeResult{}, ErrMergeNotInProgress
	}

	paths, err := s.repo.ConflictingPaths(ctx)
	if err != nil {
		return MergeResult{}, fmt.Errorf("failed to read merge status: %w", err)
	}
	if len(paths) > 0 {
		s.out.Warnf("There are still conflicting files.")
		return s.resolveConflicts(ctx, paths, "")
	}

	if err := s.repo.CommitNoEdit(ctx); err != nil {
		return MergeResult{}, fmt.Errorf("failed to complete merge: %w", err)
	}
	s.out.Successf("Successfully completed the merge.")
	return MergeResult{State: MergeClean}, nil
}

// resolveConflicts lists the conflicting paths and lets the user pick a way
// forward. An empty message commits with git's prepared merge message.
func (s *Session) resolveConflicts(ctx context.Context, paths []string, message string) (MergeResult, error) {
	for _, p := range paths {
		s.out.Warnf("  - %s", p)
	}
	conflicted := MergeResult{State: MergeConflicted, ConflictingPaths: paths}

	choice, err := s.prompt.Select("How would you like to proceed?",
		[]string{ChoiceMergeTool, ChoiceAbortMerge, ChoiceResolveLater})
	if err != nil {
		return conflicted, err
	}

	switch choice {
	case ChoiceMergeTool:
		if err := s.repo.MergeTool(ctx); err != nil {
			s.out.Errorf("Merge tool failed: %v", err)
			return conflicted, nil
		}
		remaining, err := s.repo.ConflictingPaths(ctx)
		if err != nil {
			return conflicted, fmt.Errorf("failed to read merge status: %w", err)
		}
		if len(remaining) > 0 {
			s.out.Warnf("Resolve the remaining conflicts, stage the changes and run 'gitflow continue-merge'.")
			return MergeResult{State: MergeConflicted, ConflictingPaths: remaining}, nil
		}
		s.out.Successf("Conflicts resolved. Continuing merge...")
		if _, err := s.concludeMerge(ctx, message); err != nil {
			return conflicted, err
		}
		s.removeMergeBackups(ctx)
		return MergeResult{State: MergeClean}, nil
	case ChoiceAbortMerge:
		if err := s.repo.MergeAbort(ctx); err != nil {
			return conflicted, fmt.Errorf("failed to abort merge: %w", err)
		}
		s.out.Warnf("Merge aborted.")
		return MergeResult{State: MergeAborted}, nil
	default:
		s.out.Warnf("Resolve the conflicts, stage the changes and run 'gitflow continue-merge'.")
		return conflicted, nil
	}
}

// concludeMerge commits the merged index. It reports false when neither a
// merge nor staged changes were pending.
func (s *Session) concludeMerge(ctx context.Context, message string) (bool, error) {
	inProgress, err := s.repo.IsMergeInProgress(ctx)
	if err != nil {
		return false, err
	}
	if !inProgress {
		staged, err := s.repo.HasStagedChanges(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to inspect staged changes: %w", err)
		}
		if !staged {
			return false, nil
		}
	}
	if message == "" {
		err = s.repo.CommitNoEdit(ctx)
	} else {
		err = s.repo.Commit(ctx, message)
	}
	if err != nil {
		return false, fmt.Errorf("failed to commit merge: %w", err)
	}
	return true, nil
}

// removeMergeBackups deletes the untracked *.orig files a merge tool leaves behind.
func (s *Session) removeMergeBackups(ctx context.Context) {
	entries, err := s.repo.Status(ctx)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.Code != "??" || !strings.HasSuffix(e.Path, ".orig") {
			continue
		}
		if err := os.Remove(filepath.Join(s.repo.Dir(), e.Path)); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Logger.Debug("failed to remove merge backup", "path", e.Path, "error", err)
		}
	}
}

// popUnlessMerging offers the stash back unless a merge is still in progress.
func (s *Session) popUnlessMerging(ctx context.Context, rec reconciliation) {
	if !rec.stashed {
		return
	}
	if inProgress, err := s.repo.IsMergeInProgress(ctx); err == nil && inProgress {
		s.out.Infof("Your changes remain in the stash until the merge is finished.")
		return
	}
	s.offerStashPop(ctx, rec)
}

func mergeMessage(source, target string) string {
	return fmt.Sprintf("Merge branch '%s' into %s", source, target)
}
