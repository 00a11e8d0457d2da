package console

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitflow/internal/flow"
	"gitflow/internal/git"
)

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Infof("Pulled %s", "develop")
	p.Successf("Created branch %s", "feature/login")
	p.Warnf("No network connection.")
	p.Errorf("Failed: %v", errors.New("boom"))

	assert.Equal(t, "Pulled develop\nCreated branch feature/login\nNo network connection.\nFailed: boom\n", buf.String())
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestColorEnabled(t *testing.T) {
	t.Run("non-file writers are never colored", func(t *testing.T) {
		assert.False(t, ColorEnabled(&bytes.Buffer{}))
	})

	t.Run("NO_COLOR disables color", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		assert.False(t, ColorEnabled(nil))
	})
}

func TestPrinter_StyleHelpersArePlainWithoutColor(t *testing.T) {
	p := NewPlainPrinter(&bytes.Buffer{})
	assert.Equal(t, "x", p.Bold("x"))
	assert.Equal(t, "x", p.Muted("x"))
	assert.Equal(t, "x", p.Heading("x"))
}

func TestPrinter_BranchTable(t *testing.T) {
	p := NewPlainPrinter(&bytes.Buffer{})
	out := p.BranchTable(flow.BranchListing{
		Current: "develop",
		Local:   []string{"develop", "feature/login", "main"},
		Remote:  []string{"develop", "main"},
	}, "origin")

	assert.Contains(t, out, "Remote (origin)")
	assert.Contains(t, out, "* develop")
	assert.Contains(t, out, "feature/login")
	assert.NotContains(t, out, "[stale]")

	stale := p.BranchTable(flow.BranchListing{Local: []string{"develop"}, Stale: true}, "origin")
	assert.Contains(t, stale, "[stale]")
}

func TestPrinter_StatusTable(t *testing.T) {
	p := NewPlainPrinter(&bytes.Buffer{})
	report := flow.StatusReport{
		Branch: "feature/login",
		LastCommit: git.LastCommit{
			Hash:    "0123456789abcdef",
			Subject: "Add login",
			Author:  "Test User",
			Date:    time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC),
		},
		Tracked: true,
		Ahead:   2,
		Changes: []git.StatusEntry{{Code: "??", Path: "notes.md"}},
		Remotes: [][2]string{{"origin", "git@github.com:acme/app.git"}},
		SideBranches: []flow.SideBranch{
			{Branch: "update-develop-20240307120000", Target: "develop", Pushed: true, PullURL: "https://github.com/acme/app/pull/3"},
		},
	}

	out := p.StatusTable(report, "origin")
	for _, want := range []string{
		"feature/login",
		"0123456 Add login (Test User, 2024-03-07 12:00)",
		"origin/feature/login: 2 ahead, 0 behind",
		"?? notes.md",
		"git@github.com:acme/app.git",
		"update-develop-20240307120000 -> develop (https://github.com/acme/app/pull/3)",
	} {
		assert.Contains(t, out, want)
	}

	clean := p.StatusTable(flow.StatusReport{Branch: "develop"}, "origin")
	assert.Contains(t, clean, "not pushed")
	assert.Contains(t, clean, "clean")
	assert.NotContains(t, clean, "Side branches")
}

func TestPrinter_SideBranchTable(t *testing.T) {
	p := NewPlainPrinter(&bytes.Buffer{})
	out := p.SideBranchTable([]flow.SideBranch{
		{Branch: "update-develop-1", Target: "develop", CreatedAt: time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)},
	})
	assert.Contains(t, out, "update-develop-1")
	assert.Contains(t, out, "2024-03-07 12:00")
	assert.Contains(t, out, "no")
}

func TestPrinter_StashTable(t *testing.T) {
	p := NewPlainPrinter(&bytes.Buffer{})
	out := p.StashTable([]git.StashEntry{
		{Ref: "stash@{0}", Message: "On develop: wip"},
		{Ref: "stash@{1}", Message: "WIP on main: 1a2b3c4 Add notes"},
	})
	assert.Contains(t, out, "stash@{0}")
	assert.Contains(t, out, "On develop: wip")
	assert.Less(t, strings.Index(out, "stash@{0}"), strings.Index(out, "stash@{1}"))
}

func TestMapAbort(t *testing.T) {
	assert.ErrorIs(t, mapAbort(huh.ErrUserAborted), flow.ErrUserAbort)
	assert.ErrorIs(t, mapAbort(fmt.Errorf("form: %w", huh.ErrUserAborted)), flow.ErrUserAbort)
	assert.NoError(t, mapAbort(nil))

	other := errors.New("tty closed")
	assert.Equal(t, other, mapAbort(other))
}

func TestPrompter_SelectRequiresChoices(t *testing.T) {
	p := NewPrompter(strings.NewReader(""), &bytes.Buffer{})
	_, err := p.Select("Pick", nil)
	require.Error(t, err)
}

func TestPrompter_SatisfiesFlowPrompter(t *testing.T) {
	var p flow.Prompter = NewPrompter(strings.NewReader(""), &bytes.Buffer{})
	assert.NotNil(t, p)
	assert.False(t, isTerminal(strings.NewReader("")))
}

func TestScripted(t *testing.T) {
	t.Run("answers in order", func(t *testing.T) {
		s := NewScripted(flow.ChoiceCommit, "yes", "Fix typo")

		choice, err := s.Select("How would you like to proceed?", []string{flow.ChoiceCommit, flow.ChoiceAbort})
		require.NoError(t, err)
		assert.Equal(t, flow.ChoiceCommit, choice)

		ok, err := s.Confirm("Pop the stashed changes now?", false)
		require.NoError(t, err)
		assert.True(t, ok)

		text, err := s.Text("Enter commit message:", "")
		require.NoError(t, err)
		assert.Equal(t, "Fix typo", text)

		assert.Equal(t, []string{"How would you like to proceed?", "Pop the stashed changes now?", "Enter commit message:"}, s.Asked())
	})

	t.Run("rejects answers that are not offered", func(t *testing.T) {
		s := NewScripted("Force push")
		_, err := s.Select("How?", []string{flow.ChoicePullRebase, flow.ChoiceAbort})
		require.Error(t, err)
	})

	t.Run("safe defaults once exhausted", func(t *testing.T) {
		s := NewScripted()
		tests := []struct {
			choices []string
			want    string
		}{
			{[]string{flow.ChoiceCommit, flow.ChoiceStash, flow.ChoiceContinue, flow.ChoiceAbort}, flow.ChoiceStash},
			{[]string{flow.ChoicePullRebase, flow.ChoiceForcePush, flow.ChoiceAbort}, flow.ChoicePullRebase},
			{[]string{flow.ChoiceMergeTool, flow.ChoiceAbortMerge, flow.ChoiceResolveLater}, flow.ChoiceResolveLater},
		}
		for _, tt := range tests {
			got, err := s.Select("How?", tt.choices)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		}

		_, err := s.Select("Delete?", []string{"Delete", "Keep"})
		require.ErrorIs(t, err, flow.ErrUserAbort)

		ok, err := s.Confirm("Pop?", true)
		require.NoError(t, err)
		assert.True(t, ok)

		text, err := s.Text("Message?", "default")
		require.NoError(t, err)
		assert.Equal(t, "default", text)
	})

	t.Run("confirm answers must be yes or no", func(t *testing.T) {
		s := NewScripted("maybe")
		_, err := s.Confirm("Sure?", false)
		require.Error(t, err)
	})
}
