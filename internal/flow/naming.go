package flow

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BranchType classifies a branch's purpose.
type BranchType string

const (
	TypeLocal   BranchType = "local"
	TypeHotfix  BranchType = "hotfix"
	TypeFeature BranchType = "feature"
	TypeRelease BranchType = "release"
	TypeWeekly  BranchType = "weekly"
	TypeBackup  BranchType = "backup"
)

// BranchTypes lists every branch type in display order.
var BranchTypes = []BranchType{TypeFeature, TypeHotfix, TypeRelease, TypeWeekly, TypeLocal, TypeBackup}

// ParseBranchType validates s as a branch type.
func ParseBranchType(s string) (BranchType, error) {
	for _, t := range BranchTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown branch type %q", ErrInvalidSpecification, s)
}

// Increment is the SemVer component bumped for a new release.
type Increment string

const (
	IncrementMajor Increment = "major"
	IncrementMinor Increment = "minor"
	IncrementPatch Increment = "patch"
)

// ParseIncrement validates s as an increment; empty means patch.
func ParseIncrement(s string) (Increment, error) {
	switch Increment(s) {
	case "":
		return IncrementPatch, nil
	case IncrementMajor, IncrementMinor, IncrementPatch:
		return Increment(s), nil
	}
	return "", fmt.Errorf("%w: unknown increment %q", ErrInvalidSpecification, s)
}

// BranchSpec is what the user asked for. Week 0 means "current week".
type BranchSpec struct {
	Type      BranchType
	Name      string
	Week      int
	Increment Increment
}

// ResolvedBranch is the canonical branch derived from a BranchSpec.
type ResolvedBranch struct {
	Type           BranchType
	FullName       string
	BaseBranch     string
	VersionTag     string
	SkipBaseSwitch bool
}

// Branches names the long-lived branches of the model.
type Branches struct {
	Main    string
	Develop string
	Weekly  string
}

// DefaultBranches returns main, develop and weekly-updates.
func DefaultBranches() Branches {
	return Branches{Main: "main", Develop: "develop", Weekly: "weekly-updates"}
}

// Protected reports whether name is main or develop, which commands refuse to delete or rename.
func (b Branches) Protected(name string) bool {
	return name == b.Main || name == b.Develop
}

// Resolver maps branch specs to canonical names. It has no side effects.
type Resolver struct {
	Branches Branches
	Now      func() time.Time
}

var (
	releaseTagPattern = regexp.MustCompile(`^v(\d+)\.(\d+)\.(\d+)$`)
	versionPattern    = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)$`)
)

// Resolve derives the branch name, its base and, for releases, the version tag.
func (r Resolver) Resolve(spec BranchSpec, existingTags []string) (ResolvedBranch, error) {
	if spec.Name != "" {
		if err := validateName(spec.Name); err != nil {
			return ResolvedBranch{}, err
		}
	}
	if spec.Week < 0 || spec.Week > 53 {
		return ResolvedBranch{}, fmt.Errorf("%w: week %d out of range 1-53", ErrInvalidSpecification, spec.Week)
	}

	res := ResolvedBranch{Type: spec.Type, BaseBranch: r.Branches.Develop}
	switch spec.Type {
	case TypeLocal:
		if spec.Name == "" {
			return ResolvedBranch{}, fmt.Errorf("%w: local branches need a name", ErrInvalidSpecification)
		}
		res.FullName = spec.Name
	case TypeFeature:
		if spec.Name == "" {
			return ResolvedBranch{}, fmt.Errorf("%w: feature branches need a name", ErrInvalidSpecification)
		}
		res.FullName = "feature/" + spec.Name
	case TypeHotfix:
		res.BaseBranch = r.Branches.Main
		if spec.Name != "" {
			res.FullName = "hotfix/" + spec.Name
		} else {
			res.FullName = "hotfix/week-" + WeekLabel(r.now(), spec.Week)
		}
	case TypeRelease:
		increment, err := ParseIncrement(string(spec.Increment))
		if err != nil {
			return ResolvedBranch{}, err
		}
		switch {
		case spec.Name == "":
			res.VersionTag = NextSemver(increment, existingTags)
			res.FullName = "release/" + res.VersionTag
		case versionPattern.MatchString(spec.Name):
			res.VersionTag = "v" + strings.TrimPrefix(spec.Name, "v")
			res.FullName = "release/" + spec.Name
		default:
			res.FullName = "release/" + spec.Name
		}
	case TypeWeekly:
		res.FullName = r.Branches.Weekly
		res.BaseBranch = ""
		res.SkipBaseSwitch = true
	case TypeBackup:
		if spec.Name == "" {
			return ResolvedBranch{}, fmt.Errorf("%w: backup branches need a name", ErrInvalidSpecification)
		}
		res.FullName = "backup/" + spec.Name
		res.SkipBaseSwitch = true
	default:
		return ResolvedBranch{}, fmt.Errorf("%w: unknown branch type %q", ErrInvalidSpecification, spec.Type)
	}
	return res, nil
}

// Infer recovers the spec of an existing branch from its name.
func (r Resolver) Infer(branch string) BranchSpec {
	if branch == r.Branches.Weekly {
		return BranchSpec{Type: TypeWeekly}
	}
	prefix, name, found := strings.Cut(branch, "/")
	if found {
		switch BranchType(prefix) {
		case TypeFeature, TypeHotfix, TypeRelease, TypeBackup:
			return BranchSpec{Type: BranchType(prefix), Name: name}
		}
	}
	return BranchSpec{Type: TypeLocal, Name: branch}
}

func (r Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// WeekLabel formats "{year}-{week:02}" using ISO-8601 week numbering. A non-zero
// week replaces the current ISO week but keeps the current ISO year.
func WeekLabel(now time.Time, week int) string {
	year, current := now.ISOWeek()
	if week == 0 {
		week = current
	}
	return fmt.Sprintf("%d-%02d", year, week)
}

type semver struct{ major, minor, patch int }

func (v semver) String() string { return fmt.Sprintf("v%d.%d.%d", v.major, v.minor, v.patch) }

func (v semver) bump(inc Increment) semver {
	switch inc {
	case IncrementMajor:
		return semver{v.major + 1, 0, 0}
	case IncrementMinor:
		return semver{v.major, v.minor + 1, 0}
	default:
		return semver{v.major, v.minor, v.patch + 1}
	}
}

func parseSemver(tag string) (semver, bool) {
	m := releaseTagPattern.FindStringSubmatch(tag)
	if m == nil {
		return semver{}, false
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return semver{major, minor, patch}, true
}

// NextSemver bumps the last of the sorted vX.Y.Z tags and keeps bumping until the
// candidate is not already a tag. With no matching tags the result is v1.0.0.
func NextSemver(inc Increment, existingTags []string) string {
	present := make(map[string]bool, len(existingTags))
	var versions []string
	for _, tag := range existingTags {
		present[tag] = true
		if releaseTagPattern.MatchString(tag) {
			versions = append(versions, tag)
		}
	}
	if len(versions) == 0 {
		return "v1.0.0"
	}
	sort.Strings(versions)
	latest, _ := parseSemver(versions[len(versions)-1])

	next := latest.bump(inc)
	for present[next.String()] {
		next = next.bump(inc)
	}
	return next.String()
}

func validateName(name string) error {
	switch {
	case strings.ContainsAny(name, " \t~^:?*[\\"):
		return fmt.Errorf("%w: branch name %q contains invalid characters", ErrInvalidSpecification, name)
	case strings.HasPrefix(name, "-"), strings.HasPrefix(name, "/"), strings.HasSuffix(name, "/"):
		return fmt.Errorf("%w: branch name %q has an invalid prefix or suffix", ErrInvalidSpecification, name)
	case strings.Contains(name, ".."), strings.HasSuffix(name, ".lock"):
		return fmt.Errorf("%w: branch name %q is not a valid ref", ErrInvalidSpecification, name)
	}
	return nil
}
