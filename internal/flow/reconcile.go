package flow

import (
	"context"
	"fmt"
	"strings"
)

// Choices offered when the working tree is dirty.
const (
	ChoiceCommit   = "Commit changes"
	ChoiceStash    = "Stash changes"
	ChoiceContinue = "Continue without committing"
	ChoiceAbort    = "Abort"
)

// BodyWidth is the column at which commit message bodies are wrapped.
const BodyWidth = 72

// reconciliation records what happened to a dirty working tree.
type reconciliation struct {
	stashed bool
}

// reconcile asks the user what to do with uncommitted changes before an
// operation that needs a clean tree. Choosing Abort returns ErrUserAbort.
func (s *Session) reconcile(ctx context.Context, operation string) (reconciliation, error) {
	dirty, err := s.repo.IsDirty(ctx)
	if err != nil {
		return reconciliation{}, fmt.Errorf("failed to read working tree status: %w", err)
	}
	if !dirty {
		return reconciliation{}, nil
	}

	s.out.Warnf("You have uncommitted changes.")
	choice, err := s.prompt.Select("How would you like to proceed?",
		[]string{ChoiceCommit, ChoiceStash, ChoiceContinue, ChoiceAbort})
	if err != nil {
		return reconciliation{}, err
	}

	switch choice {
	case ChoiceCommit:
		message, err := s.promptCommitMessage("", "")
		if err != nil {
			return reconciliation{}, err
		}
		if _, err := s.commitAll(ctx, message); err != nil {
			return reconciliation{}, err
		}
		s.out.Successf("Changes committed.")
	case ChoiceStash:
		if err := s.repo.StashPush(ctx, "Stashed changes before "+operation); err != nil {
			return reconciliation{}, fmt.Errorf("failed to stash changes: %w", err)
		}
		s.out.Successf("Changes stashed.")
		return reconciliation{stashed: true}, nil
	case ChoiceAbort:
		return reconciliation{}, ErrUserAbort
	}
	return reconciliation{}, nil
}

// offerStashPop runs after the main operation when reconcile stashed changes.
func (s *Session) offerStashPop(ctx context.Context, r reconciliation) {
	if !r.stashed {
		return
	}
	pop, err := s.prompt.Confirm("Pop the stashed changes now?", true)
	if err != nil || !pop {
		s.out.Infof("Your changes remain in the stash. Run 'git stash pop' to reapply them.")
		return
	}
	if err := s.repo.StashPop(ctx); err != nil {
		s.out.Errorf("Failed to reapply stashed changes: %v", err)
		s.out.Warnf("Your changes are still in the stash. You may need to resolve conflicts manually.")
		return
	}
	s.out.Successf("Stashed changes reapplied.")
}

// promptCommitMessage asks for whatever part of the message was not supplied.
// The body is only asked for when the subject was too.
func (s *Session) promptCommitMessage(subject, body string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		var err error
		subject, err = s.prompt.Text("Enter commit message:", "")
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(subject) == "" {
			return "", ErrEmptyCommitMessage
		}
		if body == "" {
			body, err = s.prompt.Text("Enter commit body (optional, press enter to skip):", "")
			if err != nil {
				return "", err
			}
		}
	}
	return ComposeCommitMessage(subject, body), nil
}

// commitAll stages every change and commits it. It reports false when there
// was nothing to commit.
func (s *Session) commitAll(ctx context.Context, message string) (bool, error) {
	if err := s.repo.AddAll(ctx); err != nil {
		return false, fmt.Errorf("failed to stage changes: %w", err)
	}
	staged, err := s.repo.HasStagedChanges(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to inspect staged changes: %w", err)
	}
	if !staged {
		return false, nil
	}
	if err := s.repo.Commit(ctx, message); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}

// CommitOptions carries an optional commit message.
type CommitOptions struct {
	Message string
	Body    string
}

// Commit stages and commits every change in the working tree, prompting for a
// message when none is given.
func (s *Session) Commit(ctx context.Context, opts CommitOptions) (bool, error) {
	dirty, err := s.repo.IsDirty(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read working tree status: %w", err)
	}
	if !dirty {
		s.out.Infof("No changes to commit.")
		return false, nil
	}
	message, err := s.promptCommitMessage(opts.Message, opts.Body)
	if err != nil {
		return false, err
	}
	committed, err := s.commitAll(ctx, message)
	if err != nil {
		return false, err
	}
	if committed {
		s.out.Successf("Committed: %s", firstLine(message))
	} else {
		s.out.Infof("No changes to commit.")
	}
	return committed, nil
}

// ComposeCommitMessage joins subject and body, wrapping the body at BodyWidth.
func ComposeCommitMessage(subject, body string) string {
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if body == "" {
		return subject
	}
	return subject + "\n\n" + WrapBody(body, BodyWidth)
}

// WrapBody breaks every line of body longer than width runes at the last
// space before width, or hard at width when the line has no space.
func WrapBody(body string, width int) string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		runes := []rune(line)
		for len(runes) > width {
			cut := lastSpace(runes[:width])
			if cut < 0 {
				cut = width
			}
			out = append(out, string(runes[:cut]))
			runes = []rune(strings.TrimSpace(string(runes[cut:])))
		}
		out = append(out, string(runes))
	}
	return strings.Join(out, "\n")
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
