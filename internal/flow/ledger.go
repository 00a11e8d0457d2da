package flow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	yaml "gopkg.in/yaml.v3"
)

// SideBranch is a branch created only to carry a pull request after a
// protected-branch rejection.
type SideBranch struct {
	Branch    string    `yaml:"branch"`
	Target    string    `yaml:"target"`
	CreatedAt time.Time `yaml:"created_at"`
	Pushed    bool      `yaml:"pushed"`
	PullURL   string    `yaml:"pull_url,omitempty"`
}

type ledgerFile struct {
	SideBranches []SideBranch `yaml:"side_branches"`
}

// Ledger persists side branches so they can be cleaned up by a later
// invocation, even after a crash. Access is serialized with a file lock.
type Ledger struct {
	path string
}

// NewLedger returns a ledger stored at path.
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// List returns every recorded side branch, oldest first.
func (l *Ledger) List() ([]SideBranch, error) {
	var entries []SideBranch
	err := l.withLock(func(f *ledgerFile) (bool, error) {
		entries = append(entries, f.SideBranches...)
		return false, nil
	})
	return entries, err
}

// Record adds or replaces the entry for sb.Branch.
func (l *Ledger) Record(sb SideBranch) error {
	return l.withLock(func(f *ledgerFile) (bool, error) {
		for i := range f.SideBranches {
			if f.SideBranches[i].Branch == sb.Branch {
				f.SideBranches[i] = sb
				return true, nil
			}
		}
		f.SideBranches = append(f.SideBranches, sb)
		return true, nil
	})
}

// Remove drops the entries for the given branches. Unknown names are ignored.
func (l *Ledger) Remove(branches ...string) error {
	drop := make(map[string]bool, len(branches))
	for _, b := range branches {
		drop[b] = true
	}
	return l.withLock(func(f *ledgerFile) (bool, error) {
		kept := f.SideBranches[:0]
		for _, sb := range f.SideBranches {
			if !drop[sb.Branch] {
				kept = append(kept, sb)
			}
		}
		changed := len(kept) != len(f.SideBranches)
		f.SideBranches = kept
		return changed, nil
	})
}

// withLock loads the ledger under an exclusive lock, runs fn and writes the
// file back when fn reports a change.
func (l *Ledger) withLock(fn func(*ledgerFile) (bool, error)) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	lock := flock.New(l.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock side-branch ledger: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	var f ledgerFile
	// #nosec G304 - path is inside the repository's git directory
	data, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read side-branch ledger: %w", err)
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("failed to parse side-branch ledger: %w", err)
		}
	}

	changed, err := fn(&f)
	if err != nil || !changed {
		return err
	}

	out, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to marshal side-branch ledger: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("failed to write side-branch ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to replace side-branch ledger: %w", err)
	}
	return nil
}
