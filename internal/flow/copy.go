package flow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// CopyOptions controls Copy.
type CopyOptions struct {
	// Path is relative to the repository root.
	Path string
	// Targets are picked from the local branches when empty.
	Targets []string
	// PullRequest routes every copy through a side branch and a pull request
	// instead of pushing the target directly.
	PullRequest bool
}

// CopyResult is what happened on one target branch.
type CopyResult struct {
	Target string
	// Identical is set when the target already had the same content.
	Identical bool
	Outcome   OperationOutcome
}

var unsafeRefChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Copy commits the current working tree content of a file onto each target
// branch and publishes it, directly or through a pull request. The branch
// active on entry is active again on return.
func (s *Session) Copy(ctx context.Context, opts CopyOptions) (results []CopyResult, err error) {
	original, err := s.repo.CurrentBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to determine current branch: %w", err)
	}
	content, err := os.ReadFile(filepath.Join(s.repo.Dir(), opts.Path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found in %s", ErrRefNotResolvable, opts.Path, original)
	}

	targets := opts.Targets
	if len(targets) == 0 {
		branches, err := s.repo.LocalBranches(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list branches: %w", err)
		}
		branches = slices.DeleteFunc(branches, func(b string) bool { return b == original })
		if len(branches) == 0 {
			return nil, fmt.Errorf("%w: no other branch to copy into", ErrInvalidSpecification)
		}
		target, err := s.prompt.Select("Select the branch to copy into:", branches)
		if err != nil {
			return nil, err
		}
		targets = []string{target}
	}

	var rec reconciliation
	defer func() {
		s.restore(ctx, original)
		s.offerStashPop(ctx, rec)
	}()
	rec, err = s.reconcile(ctx, "copying "+opts.Path)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, target := range targets {
		if target == original {
			s.out.Warnf("%s is the current branch. Skipping.", target)
			continue
		}
		res, err := s.copyInto(ctx, opts, original, target, content)
		if err != nil {
			s.out.Errorf("%v", err)
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (s *Session) copyInto(ctx context.Context, opts CopyOptions, source, target string, content []byte) (CopyResult, error) {
	res := CopyResult{Target: target}
	if err := s.checkoutOrTrack(ctx, target); err != nil {
		return res, err
	}
	s.out.Infof("Switched to branch %s", target)

	dest := filepath.Join(s.repo.Dir(), opts.Path)
	if existing, err := os.ReadFile(dest); err == nil && bytes.Equal(existing, content) {
		s.out.Warnf("%s is identical in %s. Skipping copy.", opts.Path, target)
		res.Identical = true
		return res, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return res, fmt.Errorf("failed to create directory for %s: %w", opts.Path, err)
	}
	// #nosec G306 - the file is committed, not secret
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		return res, fmt.Errorf("failed to write %s in %s: %w", opts.Path, target, err)
	}
	if err := s.repo.Add(ctx, opts.Path); err != nil {
		return res, fmt.Errorf("failed to stage %s: %w", opts.Path, err)
	}
	message := fmt.Sprintf("Copy latest changes for %s from %s to %s", opts.Path, source, target)
	if err := s.repo.Commit(ctx, message); err != nil {
		return res, fmt.Errorf("failed to commit %s in %s: %w", opts.Path, target, err)
	}
	s.out.Successf("Copied the latest changes for %s into %s", opts.Path, target)

	if opts.PullRequest {
		prefix := "cp-" + strings.Trim(unsafeRefChars.ReplaceAllString(opts.Path, "-"), "-") + "-" + target
		res.Outcome = s.fallback.divert(ctx, target, target, prefix,
			fmt.Sprintf("Copy changes for %s from %s into %s.", opts.Path, source, target))
	} else {
		res.Outcome = s.fallback.PushOrFallback(ctx, target)
	}
	return res, nil
}
