package flow

import (
	"context"
	"fmt"
)

// Comparison is the difference of one file between two branches.
type Comparison struct {
	Path string
	From string
	To   string
	// Diff is empty when the file is identical on both sides.
	Diff string
	// Divergence counts commits between the branches; nil when it could not
	// be computed.
	Divergence *DivergenceReport
}

// Compare diffs path as it exists on two branches. Missing branch names are
// picked from a list. A branch that only exists on the remote is read from
// its remote-tracking ref.
func (s *Session) Compare(ctx context.Context, path, from, to string) (Comparison, error) {
	online := s.online(ctx)
	var err error
	if from == "" {
		if from, err = s.pickBranch(ctx, "Select the first branch:", online); err != nil {
			return Comparison{}, err
		}
	}
	if to == "" {
		if to, err = s.pickBranch(ctx, "Select the second branch:", online); err != nil {
			return Comparison{}, err
		}
	}

	fromRef, err := s.comparableRef(ctx, from, path)
	if err != nil {
		return Comparison{}, err
	}
	toRef, err := s.comparableRef(ctx, to, path)
	if err != nil {
		return Comparison{}, err
	}

	diff, err := s.repo.Diff(ctx, fromRef+":"+path, toRef+":"+path)
	if err != nil {
		return Comparison{}, fmt.Errorf("failed to diff %s between %s and %s: %w", path, from, to, err)
	}
	cmp := Comparison{Path: path, From: fromRef, To: toRef, Diff: diff}
	if report, err := s.analyzer.Analyze(ctx, fromRef, toRef); err == nil {
		cmp.Divergence = &report
	}
	return cmp, nil
}

// comparableRef resolves branch to a local or remote-tracking ref that has path.
func (s *Session) comparableRef(ctx context.Context, branch, path string) (string, error) {
	ref := branch
	if !s.repo.BranchExists(ctx, branch) && s.repo.RemoteBranchExists(ctx, s.remote, branch) {
		ref = s.remote + "/" + branch
	}
	if _, err := s.repo.RevParse(ctx, ref); err != nil {
		return "", fmt.Errorf("%w: %s", ErrRefNotResolvable, branch)
	}
	if !s.repo.PathExists(ctx, ref, path) {
		return "", fmt.Errorf("%w: %s does not exist in %s", ErrRefNotResolvable, path, branch)
	}
	return ref, nil
}
