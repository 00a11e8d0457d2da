package git

import (
	"errors"
	"strings"
)

// FailureKind is the classification of a failed git or gh command.
type FailureKind int

const (
	FailureUnclassified FailureKind = iota
	FailureProtectedBranch
	FailureNonFastForward
	FailureMergeConflict
	FailureUpToDate
	FailureRemoteRefMissing
	FailureNotFullyMerged
	FailurePullRequestExists
	FailureNoCommitsBetween
)

var failureKindNames = map[FailureKind]string{
	FailureUnclassified:      "unclassified",
	FailureProtectedBranch:   "protected_branch",
	FailureNonFastForward:    "non_fast_forward",
	FailureMergeConflict:     "merge_conflict",
	FailureUpToDate:          "up_to_date",
	FailureRemoteRefMissing:  "remote_ref_missing",
	FailureNotFullyMerged:    "not_fully_merged",
	FailurePullRequestExists: "pull_request_exists",
	FailureNoCommitsBetween:  "no_commits_between",
}

func (k FailureKind) String() string {
	if name, ok := failureKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseFailureKind maps a configuration key such as "protected_branch" to its kind.
func ParseFailureKind(s string) (FailureKind, bool) {
	for kind, name := range failureKindNames {
		if name == s {
			return kind, true
		}
	}
	return FailureUnclassified, false
}

// Marker associates a case-insensitive substring of command output with a kind.
type Marker struct {
	Kind    FailureKind
	Pattern string
}

// DefaultMarkers is the closed set of output fragments git, gh and the GitHub API
// are known to emit. Order matters: the first match wins.
var DefaultMarkers = []Marker{
	{FailureProtectedBranch, "protected branch"},
	{FailureProtectedBranch, "GH006"},
	{FailureProtectedBranch, "GH013"},
	{FailurePullRequestExists, "a pull request for branch"},
	{FailurePullRequestExists, "a pull request already exists"},
	{FailureNoCommitsBetween, "no commits between"},
	{FailureNonFastForward, "non-fast-forward"},
	{FailureNonFastForward, "(fetch first)"},
	{FailureNonFastForward, "updates were rejected because the tip"},
	{FailureMergeConflict, "automatic merge failed"},
	{FailureMergeConflict, "conflict ("},
	{FailureRemoteRefMissing, "remote ref does not exist"},
	{FailureNotFullyMerged, "not fully merged"},
	{FailureUpToDate, "everything up-to-date"},
	{FailureUpToDate, "already up to date"},
}

// Classifier turns command failures into FailureKinds using a marker table.
type Classifier struct {
	markers []Marker
}

// NewClassifier builds a classifier from DefaultMarkers followed by extra.
func NewClassifier(extra ...Marker) *Classifier {
	markers := make([]Marker, 0, len(extra)+len(DefaultMarkers))
	markers = append(markers, extra...)
	markers = append(markers, DefaultMarkers...)
	for i := range markers {
		markers[i].Pattern = strings.ToLower(markers[i].Pattern)
	}
	return &Classifier{markers: markers}
}

// Classify returns the kind of err, or FailureUnclassified when nothing matches
// (including a nil error).
func (c *Classifier) Classify(err error) FailureKind {
	if err == nil {
		return FailureUnclassified
	}
	text := err.Error()
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		text = cmdErr.Output() + "\n" + text
	}
	return c.ClassifyText(text)
}

// ClassifyText matches raw output against the marker table.
func (c *Classifier) ClassifyText(text string) FailureKind {
	lower := strings.ToLower(text)
	for _, m := range c.markers {
		if m.Pattern != "" && strings.Contains(lower, m.Pattern) {
			return m.Kind
		}
	}
	return FailureUnclassified
}
