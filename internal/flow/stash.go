package flow

import (
	"context"
	"fmt"
	"strings"

	"gitflow/internal/git"
)

// StashOptions controls Stash.
type StashOptions struct {
	Message   string
	Untracked bool
}

// Stash shelves the working tree changes. It reports false when there was
// nothing to stash.
func (s *Session) Stash(ctx context.Context, opts StashOptions) (bool, error) {
	entries, err := s.repo.Status(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read working tree status: %w", err)
	}
	pending := false
	for _, e := range entries {
		if e.Code != "??" || opts.Untracked {
			pending = true
			break
		}
	}
	if !pending {
		s.out.Infof("No local changes to stash.")
		return false, nil
	}

	message := strings.Join(strings.Fields(opts.Message), " ")
	if err := s.repo.StashSave(ctx, message, opts.Untracked); err != nil {
		return false, fmt.Errorf("failed to stash changes: %w", err)
	}
	if message != "" {
		s.out.Successf("Stashed changes: %s", message)
	} else {
		s.out.Successf("Stashed changes.")
	}
	if opts.Untracked {
		s.out.Infof("Included untracked files in the stash.")
	}
	return true, nil
}

// Stashes lists the stash, newest first.
func (s *Session) Stashes(ctx context.Context) ([]git.StashEntry, error) {
	entries, err := s.repo.Stashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stashes: %w", err)
	}
	return entries, nil
}

// ShowStash returns the patch recorded in ref.
func (s *Session) ShowStash(ctx context.Context, ref string) (string, error) {
	patch, err := s.repo.StashShow(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrRefNotResolvable, ref)
	}
	return patch, nil
}

// DropStash deletes ref from the stash.
func (s *Session) DropStash(ctx context.Context, ref string) error {
	entry, err := s.findStash(ctx, ref)
	if err != nil {
		return err
	}
	if err := s.repo.StashDrop(ctx, entry.Ref); err != nil {
		return fmt.Errorf("failed to drop %s: %w", entry.Ref, err)
	}
	s.out.Successf("Deleted stash: %s", entry)
	return nil
}

// ClearStashes deletes every stash entry after confirmation. It reports
// whether the stash was cleared.
func (s *Session) ClearStashes(ctx context.Context) (bool, error) {
	ok, err := s.prompt.Confirm("Are you sure you want to clear all stashes?", false)
	if err != nil {
		return false, err
	}
	if !ok {
		s.out.Warnf("Stash clear cancelled.")
		return false, nil
	}
	if err := s.repo.StashClear(ctx); err != nil {
		return false, fmt.Errorf("failed to clear stashes: %w", err)
	}
	s.out.Successf("Cleared all stashes.")
	return true, nil
}

// UnstashOptions controls Unstash.
type UnstashOptions struct {
	// Ref is picked from the stash list when empty.
	Ref string
	// Apply keeps the entry in the stash.
	Apply bool
}

// Unstash reapplies a stash entry and, unless Apply is set, drops it.
func (s *Session) Unstash(ctx context.Context, opts UnstashOptions) error {
	ref := opts.Ref
	if ref == "" {
		entries, err := s.Stashes(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			s.out.Warnf("No stashes found.")
			return nil
		}
		choices := make([]string, len(entries))
		for i, e := range entries {
			choices[i] = e.String()
		}
		choice, err := s.prompt.Select("Select a stash:", choices)
		if err != nil {
			return err
		}
		ref, _, _ = strings.Cut(choice, ":")
	} else if _, err := s.findStash(ctx, ref); err != nil {
		return err
	}

	if err := s.repo.StashApply(ctx, ref, !opts.Apply); err != nil {
		s.out.Warnf("You may need to resolve conflicts manually.")
		return fmt.Errorf("failed to apply %s: %w", ref, err)
	}
	if opts.Apply {
		s.out.Successf("Applied %s without removing it.", ref)
	} else {
		s.out.Successf("Popped %s.", ref)
	}
	return nil
}

func (s *Session) findStash(ctx context.Context, ref string) (git.StashEntry, error) {
	entries, err := s.Stashes(ctx)
	if err != nil {
		return git.StashEntry{}, err
	}
	for _, e := range entries {
		if e.Ref == ref {
			return e, nil
		}
	}
	return git.StashEntry{}, fmt.Errorf("%w: %s", ErrRefNotResolvable, ref)
}
