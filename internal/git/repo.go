// Package git wraps the git and gh command-line tools and the GitHub API.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Repo is the repository handle: every git primitive the workflows need,
// executed through a bounded Runner. Failures are *CommandError values.
type Repo struct {
	runner     *Runner
	classifier *Classifier
	dir        string
}

// Open returns a handle for the repository containing dir.
func Open(ctx context.Context, dir string, timeout time.Duration, classifier *Classifier) (*Repo, error) {
	if classifier == nil {
		classifier = NewClassifier()
	}
	r := &Repo{runner: NewRunner("git", dir, timeout), classifier: classifier, dir: dir}
	root, err := r.output(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("not a git repository (%s): %w", dir, err)
	}
	r.dir = root
	r.runner.Dir = root
	return r, nil
}

// Dir returns the top-level directory of the working tree.
func (r *Repo) Dir() string { return r.dir }

// Classifier returns the classifier used to interpret this repository's failures.
func (r *Repo) Classifier() *Classifier { return r.classifier }

func (r *Repo) run(ctx context.Context, args ...string) error {
	_, err := r.runner.Run(ctx, args...)
	return err
}

func (r *Repo) output(ctx context.Context, args ...string) (string, error) {
	res, err := r.runner.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// GitDir returns the absolute path of the .git directory.
func (r *Repo) GitDir(ctx context.Context) (string, error) {
	dir, err := r.output(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}
	return dir, nil
}

// CurrentBranch returns the checked out branch name ("HEAD" when detached).
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	return r.output(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// RevParse resolves ref to a full commit id.
func (r *Repo) RevParse(ctx context.Context, ref string) (string, error) {
	return r.output(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
}

// BranchExists reports whether a local branch exists.
func (r *Repo) BranchExists(ctx context.Context, name string) bool {
	return r.run(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name) == nil
}

// RemoteBranchExists reports whether the remote-tracking ref remote/name exists locally.
func (r *Repo) RemoteBranchExists(ctx context.Context, remote, name string) bool {
	return r.run(ctx, "show-ref", "--verify", "--quiet", "refs/remotes/"+remote+"/"+name) == nil
}

// LocalBranches lists local branch names.
func (r *Repo) LocalBranches(ctx context.Context) ([]string, error) {
	out, err := r.output(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// RemoteBranches lists the branch names known for remote, without the remote prefix.
func (r *Repo) RemoteBranches(ctx context.Context, remote string) ([]string, error) {
	out, err := r.output(ctx, "for-each-ref", "--format=%(refname)", "refs/remotes/"+remote)
	if err != nil {
		return nil, err
	}
	prefix := "refs/remotes/" + remote + "/"
	var branches []string
	for _, ref := range lines(out) {
		name := strings.TrimPrefix(ref, prefix)
		if name == "HEAD" {
			continue
		}
		branches = append(branches, name)
	}
	return branches, nil
}

// Checkout switches to an existing branch.
func (r *Repo) Checkout(ctx context.Context, branch string) error {
	return r.run(ctx, "checkout", branch)
}

// CheckoutForce switches to branch, discarding local changes to tracked files.
func (r *Repo) CheckoutForce(ctx context.Context, branch string) error {
	return r.run(ctx, "checkout", "--force", branch)
}

// CheckoutPaths overwrites paths in the working tree and index with their
// content at ref, or with the index content when ref is empty.
func (r *Repo) CheckoutPaths(ctx context.Context, ref string, paths ...string) error {
	args := []string{"checkout"}
	if ref != "" {
		args = append(args, ref)
	}
	args = append(args, "--")
	return r.run(ctx, append(args, paths...)...)
}

// PathExists reports whether path is tracked at ref.
func (r *Repo) PathExists(ctx context.Context, ref, path string) bool {
	return r.run(ctx, "cat-file", "-e", ref+":"+path) == nil
}

// CreateBranch creates branch at startPoint (HEAD when empty) and checks it out.
func (r *Repo) CreateBranch(ctx context.Context, branch, startPoint string) error {
	args := []string{"checkout", "-b", branch}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	return r.run(ctx, args...)
}

// CreateTrackingBranch creates branch from remote/branch with upstream set and checks it out.
func (r *Repo) CreateTrackingBranch(ctx context.Context, remote, branch string) error {
	return r.run(ctx, "checkout", "-b", branch, "--track", remote+"/"+branch)
}

// RenameBranch renames a local branch.
func (r *Repo) RenameBranch(ctx context.Context, oldName, newName string) error {
	return r.run(ctx, "branch", "-m", oldName, newName)
}

// SetUpstream sets the upstream of branch to remote/branch.
func (r *Repo) SetUpstream(ctx context.Context, remote, branch string) error {
	return r.run(ctx, "branch", "--set-upstream-to="+remote+"/"+branch, branch)
}

// DeleteLocalBranch deletes a local branch; force uses -D.
func (r *Repo) DeleteLocalBranch(ctx context.Context, branch string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	return r.run(ctx, "branch", flag, branch)
}

// DeleteRemoteBranch deletes branch on remote. A ref that is already gone is not an error.
func (r *Repo) DeleteRemoteBranch(ctx context.Context, remote, branch string) error {
	err := r.run(ctx, "push", remote, "--delete", branch)
	if err != nil && r.classifier.Classify(err) == FailureRemoteRefMissing {
		return nil
	}
	return err
}

// StatusEntry is one line of `git status --porcelain`.
type StatusEntry struct {
	Code string
	Path string
}

// Unmerged reports whether the entry is an unresolved merge conflict.
func (e StatusEntry) Unmerged() bool {
	switch e.Code {
	case "UU", "AA", "DD", "AU", "UA", "DU", "UD":
		return true
	}
	return false
}

// Status returns the porcelain status including untracked files.
func (r *Repo) Status(ctx context.Context) ([]StatusEntry, error) {
	res, err := r.runner.Run(ctx, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	var entries []StatusEntry
	for _, l := range strings.Split(res.Stdout, "\n") {
		if len(l) < 4 {
			continue
		}
		path := l[3:]
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		entries = append(entries, StatusEntry{Code: l[:2], Path: unquotePath(path)})
	}
	return entries, nil
}

// unquotePath decodes a path git printed C-quoted ("\303\244.txt").
func unquotePath(p string) string {
	if len(p) < 2 || p[0] != '"' || p[len(p)-1] != '"' {
		return p
	}
	if u, err := strconv.Unquote(p); err == nil {
		return u
	}
	return strings.Trim(p, `"`)
}

// IsDirty reports uncommitted changes, untracked files included.
func (r *Repo) IsDirty(ctx context.Context) (bool, error) {
	entries, err := r.Status(ctx)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// ConflictingPaths lists paths with unmerged entries, in status order.
func (r *Repo) ConflictingPaths(ctx context.Context) ([]string, error) {
	entries, err := r.Status(ctx)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.Unmerged() {
			paths = append(paths, e.Path)
		}
	}
	return paths, nil
}

// IsMergeInProgress reports whether a merge is waiting to be concluded:
// MERGE_HEAD exists, or a squash merge (which never writes MERGE_HEAD) left
// SQUASH_MSG behind together with conflicts or staged changes.
func (r *Repo) IsMergeInProgress(ctx context.Context) (bool, error) {
	gitDir, err := r.GitDir(ctx)
	if err != nil {
		return false, err
	}
	if ok, err := fileExists(filepath.Join(gitDir, "MERGE_HEAD")); err != nil || ok {
		return ok, err
	}
	squash, err := fileExists(filepath.Join(gitDir, "SQUASH_MSG"))
	if err != nil || !squash {
		return false, err
	}
	paths, err := r.ConflictingPaths(ctx)
	if err != nil {
		return false, err
	}
	if len(paths) > 0 {
		return true, nil
	}
	return r.HasStagedChanges(ctx)
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check merge state: %w", err)
}

// Add stages paths.
func (r *Repo) Add(ctx context.Context, paths ...string) error {
	return r.run(ctx, append([]string{"add", "--"}, paths...)...)
}

// AddAll stages every change including untracked files.
func (r *Repo) AddAll(ctx context.Context) error {
	return r.run(ctx, "add", "--all")
}

// HasStagedChanges reports whether the index differs from HEAD.
func (r *Repo) HasStagedChanges(ctx context.Context) (bool, error) {
	err := r.run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
		return true, nil
	}
	return false, err
}

// Commit records the index with message.
func (r *Repo) Commit(ctx context.Context, message string) error {
	return r.run(ctx, "commit", "-m", message)
}

// CommitNoEdit concludes an in-progress merge with git's prepared message.
func (r *Repo) CommitNoEdit(ctx context.Context) error {
	return r.run(ctx, "commit", "--no-edit")
}

// LastCommit describes HEAD.
type LastCommit struct {
	Hash    string
	Subject string
	Author  string
	Date    time.Time
}

// HeadCommit returns information about HEAD.
func (r *Repo) HeadCommit(ctx context.Context) (LastCommit, error) {
	out, err := r.output(ctx, "log", "-1", "--format=%H%x1f%s%x1f%an%x1f%cI")
	if err != nil {
		return LastCommit{}, err
	}
	parts := strings.Split(out, "\x1f")
	if len(parts) != 4 {
		return LastCommit{}, fmt.Errorf("unexpected log output: %q", out)
	}
	date, err := time.Parse(time.RFC3339, parts[3])
	if err != nil {
		return LastCommit{}, fmt.Errorf("failed to parse commit date: %w", err)
	}
	return LastCommit{Hash: parts[0], Subject: parts[1], Author: parts[2], Date: date}, nil
}

// StashPush stashes all changes, untracked files included, under message.
func (r *Repo) StashPush(ctx context.Context, message string) error {
	return r.run(ctx, "stash", "push", "--include-untracked", "-m", message)
}

// StashPop reapplies the most recent stash.
func (r *Repo) StashPop(ctx context.Context) error {
	return r.run(ctx, "stash", "pop")
}

// StashEntry is one line of `git stash list`.
type StashEntry struct {
	Ref     string
	Message string
}

// String renders the entry the way `git stash list` does.
func (e StashEntry) String() string { return e.Ref + ": " + e.Message }

// StashSave stashes tracked changes under message (git's default message when
// empty), untracked files too when includeUntracked is set.
func (r *Repo) StashSave(ctx context.Context, message string, includeUntracked bool) error {
	args := []string{"stash", "push"}
	if includeUntracked {
		args = append(args, "--include-untracked")
	}
	if message != "" {
		args = append(args, "-m", message)
	}
	return r.run(ctx, args...)
}

// Stashes lists stash entries, newest first.
func (r *Repo) Stashes(ctx context.Context) ([]StashEntry, error) {
	out, err := r.output(ctx, "stash", "list", "--format=%gd%x1f%gs")
	if err != nil {
		return nil, err
	}
	var entries []StashEntry
	for _, l := range lines(out) {
		ref, msg, _ := strings.Cut(l, "\x1f")
		entries = append(entries, StashEntry{Ref: ref, Message: msg})
	}
	return entries, nil
}

// StashShow returns the patch recorded in stash ref.
func (r *Repo) StashShow(ctx context.Context, ref string) (string, error) {
	res, err := r.runner.Run(ctx, "stash", "show", "-p", ref)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// StashApply reapplies stash ref and keeps it; pop also drops it.
func (r *Repo) StashApply(ctx context.Context, ref string, pop bool) error {
	verb := "apply"
	if pop {
		verb = "pop"
	}
	return r.run(ctx, "stash", verb, ref)
}

// StashDrop removes stash ref.
func (r *Repo) StashDrop(ctx context.Context, ref string) error {
	return r.run(ctx, "stash", "drop", ref)
}

// StashClear removes every stash entry.
func (r *Repo) StashClear(ctx context.Context) error {
	return r.run(ctx, "stash", "clear")
}

// Fetch fetches refs from remote (everything when refs is empty).
func (r *Repo) Fetch(ctx context.Context, remote string, refs ...string) error {
	args := append([]string{"fetch", remote}, refs...)
	return r.run(ctx, args...)
}

// FetchAll fetches every remote and prunes deleted branches.
func (r *Repo) FetchAll(ctx context.Context) error {
	return r.run(ctx, "fetch", "--all", "--prune")
}

// FetchPrune fetches remote and removes remote-tracking refs it no longer has.
func (r *Repo) FetchPrune(ctx context.Context, remote string) error {
	return r.run(ctx, "fetch", "--prune", remote)
}

// Pull merges remote/branch into the current branch.
func (r *Repo) Pull(ctx context.Context, remote, branch string) error {
	return r.run(ctx, "pull", "--no-rebase", remote, branch)
}

// PullRebase rebases the current branch onto remote/branch.
func (r *Repo) PullRebase(ctx context.Context, remote, branch string) error {
	return r.run(ctx, "pull", "--rebase", remote, branch)
}

// RebaseAbort abandons an in-progress rebase.
func (r *Repo) RebaseAbort(ctx context.Context) error {
	return r.run(ctx, "rebase", "--abort")
}

// PushOptions controls Push.
type PushOptions struct {
	SetUpstream bool
	Force       bool
}

// Push pushes refspec to remote.
func (r *Repo) Push(ctx context.Context, remote, refspec string, opts PushOptions) error {
	args := []string{"push"}
	if opts.SetUpstream {
		args = append(args, "--set-upstream")
	}
	if opts.Force {
		args = append(args, "--force-with-lease")
	}
	args = append(args, remote, refspec)
	return r.run(ctx, args...)
}

// Tags lists all tag names.
func (r *Repo) Tags(ctx context.Context) ([]string, error) {
	out, err := r.output(ctx, "tag", "--list")
	if err != nil {
		return nil, err
	}
	return lines(out), nil
}

// TagExists reports whether a local tag exists.
func (r *Repo) TagExists(ctx context.Context, tag string) bool {
	return r.run(ctx, "show-ref", "--verify", "--quiet", "refs/tags/"+tag) == nil
}

// CreateTag creates an annotated tag at HEAD.
func (r *Repo) CreateTag(ctx context.Context, tag, message string) error {
	return r.run(ctx, "tag", "-a", tag, "-m", message)
}

// PushTag pushes a single tag to remote.
func (r *Repo) PushTag(ctx context.Context, remote, tag string) error {
	return r.run(ctx, "push", remote, "refs/tags/"+tag)
}

// MergeBase returns the best common ancestor of a and b.
func (r *Repo) MergeBase(ctx context.Context, a, b string) (string, error) {
	return r.output(ctx, "merge-base", a, b)
}

// AheadBehind counts commits in head but not base (ahead) and in base but not head (behind).
func (r *Repo) AheadBehind(ctx context.Context, base, head string) (ahead, behind int, err error) {
	out, err := r.output(ctx, "rev-list", "--left-right", "--count", base+"..."+head)
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output: %q", out)
	}
	behind, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse behind count: %w", err)
	}
	ahead, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse ahead count: %w", err)
	}
	return ahead, behind, nil
}

// Diff returns the textual diff between two refs.
func (r *Repo) Diff(ctx context.Context, from, to string) (string, error) {
	res, err := r.runner.Run(ctx, "diff", from, to)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// MergeOptions controls Merge.
type MergeOptions struct {
	NoCommit bool
	NoFF     bool
	FFOnly   bool
	Squash   bool
}

// Merge merges source into the current branch.
func (r *Repo) Merge(ctx context.Context, source string, opts MergeOptions) error {
	args := []string{"merge"}
	if opts.NoCommit {
		args = append(args, "--no-commit")
	}
	switch {
	case opts.Squash:
		args = append(args, "--squash")
	case opts.FFOnly:
		args = append(args, "--ff-only")
	case opts.NoFF:
		args = append(args, "--no-ff")
	}
	args = append(args, "--no-edit", source)
	return r.run(ctx, args...)
}

// MergeAbort abandons the in-progress merge. A squash merge has no
// MERGE_HEAD for `merge --abort`, so its index and work tree are reset instead.
func (r *Repo) MergeAbort(ctx context.Context) error {
	gitDir, err := r.GitDir(ctx)
	if err != nil {
		return err
	}
	if ok, err := fileExists(filepath.Join(gitDir, "MERGE_HEAD")); err != nil {
		return err
	} else if ok {
		return r.run(ctx, "merge", "--abort")
	}
	return r.run(ctx, "reset", "--merge")
}

// MergeTool runs the user's configured merge tool attached to the terminal.
func (r *Repo) MergeTool(ctx context.Context) error {
	return r.runner.RunInteractive(ctx, "mergetool")
}

// ListRemote contacts remote; any error means it could not be listed.
func (r *Repo) ListRemote(ctx context.Context, remote string, timeout time.Duration) error {
	_, err := r.runner.RunWithTimeout(ctx, timeout, "ls-remote", "--quiet", "--heads", remote)
	return err
}

// RemoteURL returns the URL configured for remote as written in the git
// config, before any url.<base>.insteadOf rewriting.
func (r *Repo) RemoteURL(ctx context.Context, remote string) (string, error) {
	return r.output(ctx, "config", "--get", "remote."+remote+".url")
}

// Remotes returns remote name to fetch URL, sorted by name.
func (r *Repo) Remotes(ctx context.Context) ([][2]string, error) {
	out, err := r.output(ctx, "remote")
	if err != nil {
		return nil, err
	}
	names := lines(out)
	sort.Strings(names)
	remotes := make([][2]string, 0, len(names))
	for _, name := range names {
		url, err := r.RemoteURL(ctx, name)
		if err != nil {
			return nil, err
		}
		remotes = append(remotes, [2]string{name, url})
	}
	return remotes, nil
}
