// Package gittest builds throwaway git repositories with a bare "origin" for tests.
package gittest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Setup is a working clone plus the bare repository acting as its origin.
//
//	tb.TempDir()/
//	├── origin.git/  <- git init --bare
//	└── work/        <- clone with main and develop pushed
type Setup struct {
	Origin string
	Work   string
	tb     testing.TB
}

// New creates the repositories. main and develop both point at the initial
// commit, both are pushed, and develop is checked out.
func New(tb testing.TB) *Setup {
	tb.Helper()

	base := tb.TempDir()
	s := &Setup{
		Origin: filepath.Join(base, "origin.git"),
		Work:   filepath.Join(base, "work"),
		tb:     tb,
	}

	Run(tb, base, "init", "--bare", s.Origin)
	Run(tb, base, "clone", s.Origin, s.Work)
	configure(tb, s.Work)

	s.WriteFile("README.md", "# Test Repo\n")
	s.Git("add", "README.md")
	s.Git("commit", "-m", "Initial commit")
	s.Git("branch", "-M", "main")
	s.Git("push", "-u", "origin", "main")
	s.Git("checkout", "-b", "develop")
	s.Git("push", "-u", "origin", "develop")
	return s
}

func configure(tb testing.TB, dir string) {
	tb.Helper()
	for _, kv := range [][2]string{
		{"user.email", "test@example.com"},
		{"user.name", "Test User"},
		{"commit.gpgsign", "false"},
		{"tag.gpgsign", "false"},
		{"core.editor", "true"},
		{"pull.rebase", "false"},
	} {
		Run(tb, dir, "config", kv[0], kv[1])
	}
}

// Git runs git in the working clone and returns trimmed stdout.
func (s *Setup) Git(args ...string) string {
	s.tb.Helper()
	return Run(s.tb, s.Work, args...)
}

// WriteFile writes content to a path relative to the working clone.
func (s *Setup) WriteFile(rel, content string) {
	s.tb.Helper()
	path := filepath.Join(s.Work, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.tb.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		s.tb.Fatalf("failed to write %s: %v", rel, err)
	}
}

// Commit writes a file, commits it on the current branch and returns the new commit id.
func (s *Setup) Commit(rel, content, message string) string {
	s.tb.Helper()
	s.WriteFile(rel, content)
	s.Git("add", rel)
	s.Git("commit", "-m", message)
	return s.Rev("HEAD")
}

// Rev resolves ref in the working clone.
func (s *Setup) Rev(ref string) string {
	s.tb.Helper()
	return s.Git("rev-parse", ref)
}

// OriginRev resolves a branch in the bare origin, or "" when it does not exist.
func (s *Setup) OriginRev(branch string) string {
	s.tb.Helper()
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	cmd.Dir = s.Origin
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// CurrentBranch returns the branch checked out in the working clone.
func (s *Setup) CurrentBranch() string {
	s.tb.Helper()
	return s.Git("rev-parse", "--abbrev-ref", "HEAD")
}

// LocalBranchExists reports whether branch exists in the working clone.
func (s *Setup) LocalBranchExists(branch string) bool {
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	cmd.Dir = s.Work
	return cmd.Run() == nil
}

// Protect installs a pre-receive hook in origin that rejects pushes to the
// given branches with GitHub's protected-branch message.
func (s *Setup) Protect(branches ...string) {
	s.tb.Helper()
	var cases strings.Builder
	for _, b := range branches {
		fmt.Fprintf(&cases, "    refs/heads/%s)\n", b)
		fmt.Fprintf(&cases, "      echo \"error: GH006: Protected branch update failed for $ref.\" >&2\n")
		cases.WriteString("      exit 1 ;;\n")
	}
	hook := "#!/bin/sh\nwhile read old new ref; do\n  case \"$ref\" in\n" + cases.String() + "  esac\ndone\nexit 0\n"
	path := filepath.Join(s.Origin, "hooks", "pre-receive")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.tb.Fatalf("failed to create hooks directory: %v", err)
	}
	// #nosec G306 - hook must be executable
	if err := os.WriteFile(path, []byte(hook), 0o755); err != nil {
		s.tb.Fatalf("failed to write pre-receive hook: %v", err)
	}
}

// Clone makes a second working clone of origin, for simulating other contributors.
func (s *Setup) Clone() string {
	s.tb.Helper()
	dir := filepath.Join(s.tb.TempDir(), "other")
	Run(s.tb, filepath.Dir(dir), "clone", s.Origin, dir)
	configure(s.tb, dir)
	return dir
}

// AliasOrigin points the origin remote at url while git keeps talking to the
// bare repository through an insteadOf rewrite. Code that parses the remote
// URL sees url.
func (s *Setup) AliasOrigin(url string) {
	s.tb.Helper()
	s.Git("remote", "set-url", "origin", url)
	s.Git("config", "url."+s.Origin+".insteadOf", url)
}

// Run executes git in dir, failing the test on error, and returns trimmed stdout.
func Run(tb testing.TB, dir string, args ...string) string {
	tb.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test User",
		"GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Test User",
		"GIT_COMMITTER_EMAIL=test@example.com",
	)

	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		tb.Fatalf("git %v failed in %s: %v\nOutput: %s%s", args, dir, err, out, stderr.String())
	}
	return strings.TrimSpace(string(out))
}
