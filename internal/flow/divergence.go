package flow

import (
	"context"
	"fmt"
	"strings"

	"gitflow/internal/logging"
)

// DivergenceReport compares a target ref with a source ref.
type DivergenceReport struct {
	Target    string
	Source    string
	MergeBase string
	// Ahead counts commits in source missing from target; Behind the reverse.
	Ahead               int
	Behind              int
	FastForwardPossible bool
	// Degraded is set when the remote could not be consulted and local refs
	// stood in for it. Degraded reports never authorise destructive steps.
	Degraded bool
}

// NoDifferences reports that neither side has commits the other lacks.
func (r DivergenceReport) NoDifferences() bool {
	return r.Ahead == 0 && r.Behind == 0
}

// Analyzer computes divergence reports. Reports are always computed fresh.
type Analyzer struct {
	repo   Repository
	probe  Reachability
	remote string
}

// Analyze compares target with source. When the remote is reachable the
// target's remote-tracking ref is refreshed and preferred over the local one.
func (a *Analyzer) Analyze(ctx context.Context, target, source string) (DivergenceReport, error) {
	targetRef, degraded := a.bestRef(ctx, target)
	report := DivergenceReport{Target: targetRef, Source: source, Degraded: degraded}

	targetRev, err := a.repo.RevParse(ctx, targetRef)
	if err != nil {
		return DivergenceReport{}, fmt.Errorf("%w: %s", ErrRefNotResolvable, targetRef)
	}
	if _, err := a.repo.RevParse(ctx, source); err != nil {
		return DivergenceReport{}, fmt.Errorf("%w: %s", ErrRefNotResolvable, source)
	}

	mergeBase, err := a.repo.MergeBase(ctx, targetRef, source)
	if err != nil {
		return DivergenceReport{}, fmt.Errorf("failed to find merge base of %s and %s: %w", targetRef, source, err)
	}
	ahead, behind, err := a.repo.AheadBehind(ctx, targetRef, source)
	if err != nil {
		return DivergenceReport{}, fmt.Errorf("failed to count commits between %s and %s: %w", targetRef, source, err)
	}

	report.MergeBase = mergeBase
	report.Ahead = ahead
	report.Behind = behind
	report.FastForwardPossible = mergeBase == targetRev
	logging.Logger.Debug("divergence", "target", targetRef, "source", source,
		"ahead", ahead, "behind", behind, "ff", report.FastForwardPossible, "degraded", degraded)
	return report, nil
}

// bestRef picks remote/branch when the remote is reachable and has the branch,
// otherwise the local branch (flagging the result as degraded when offline).
func (a *Analyzer) bestRef(ctx context.Context, branch string) (string, bool) {
	if !a.probe.IsReachable(ctx, a.remote) {
		return branch, true
	}
	if err := a.repo.Fetch(ctx, a.remote, branch); err != nil {
		logging.Logger.Debug("fetch before analysis failed", "branch", branch, "error", err)
	}
	if a.repo.RemoteBranchExists(ctx, a.remote, branch) {
		return a.remote + "/" + branch, false
	}
	return branch, false
}

// HasDifferences reports whether compare carries anything worth merging into
// base. Identical histories or an empty diff from the merge base mean no.
// Analysis failures are treated as differences.
func (a *Analyzer) HasDifferences(ctx context.Context, base, compare string) bool {
	report, err := a.Analyze(ctx, base, compare)
	if err != nil {
		logging.Logger.Debug("assuming differences", "base", base, "compare", compare, "error", err)
		return true
	}
	if report.NoDifferences() {
		return false
	}
	diff, err := a.repo.Diff(ctx, report.MergeBase, compare)
	if err != nil {
		return true
	}
	return strings.TrimSpace(diff) != ""
}
