package flow

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitflow/internal/gittest"
)

func TestSession_Switch(t *testing.T) {
	ctx := context.Background()

	t.Run("local branch", func(t *testing.T) {
		h := newHarness(t, true)
		branch, err := h.session.Switch(ctx, "main", SwitchOptions{})
		require.NoError(t, err)
		assert.Equal(t, "main", branch)
		assert.Equal(t, "main", h.setup.CurrentBranch())
	})

	t.Run("remote-only branch is tracked", func(t *testing.T) {
		h := newHarness(t, true)
		other := h.setup.Clone()
		gittest.Run(t, other, "checkout", "-b", "feature/remote", "origin/develop")
		gittest.Run(t, other, "push", "origin", "feature/remote")

		branch, err := h.session.Switch(ctx, "feature/remote", SwitchOptions{})
		require.NoError(t, err)
		assert.Equal(t, "feature/remote", branch)
		assert.Equal(t, "origin/feature/remote", h.setup.Git("rev-parse", "--abbrev-ref", "feature/remote@{upstream}"))
	})

	t.Run("remote-qualified existing branch is pulled", func(t *testing.T) {
		h := newHarness(t, true)
		tip := pushFromOther(t, h, "main", "m.txt", "m\n")

		branch, err := h.session.Switch(ctx, "origin/main", SwitchOptions{})
		require.NoError(t, err)
		assert.Equal(t, "main", branch)
		assert.Equal(t, tip, h.setup.Rev("main"))
	})

	t.Run("dirty tree is stashed and left in the stash", func(t *testing.T) {
		h := newHarness(t, true, ChoiceStash)
		h.setup.WriteFile("README.md", "# changed\n")

		_, err := h.session.Switch(ctx, "main", SwitchOptions{})
		require.NoError(t, err)
		assert.Equal(t, "main", h.setup.CurrentBranch())
		assert.NotEmpty(t, h.setup.Git("stash", "list"))
		assert.True(t, h.out.contains("gitflow unstash"))
	})

	t.Run("force discards tracked changes", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Commit("d.txt", "develop\n", "Develop only")
		h.setup.WriteFile("README.md", "# changed\n")

		_, err := h.session.Switch(ctx, "main", SwitchOptions{Force: true})
		require.NoError(t, err)
		assert.Equal(t, "main", h.setup.CurrentBranch())
		assert.Empty(t, h.setup.Git("status", "--porcelain"))
		assert.Empty(t, h.prompt.asked)
	})

	t.Run("abort keeps the current branch", func(t *testing.T) {
		h := newHarness(t, true, ChoiceAbort)
		h.setup.WriteFile("README.md", "# changed\n")

		_, err := h.session.Switch(ctx, "main", SwitchOptions{})
		require.ErrorIs(t, err, ErrUserAbort)
		assert.Equal(t, "develop", h.setup.CurrentBranch())
	})

	t.Run("picks from a list when no target is given", func(t *testing.T) {
		h := newHarness(t, false, "main")
		branch, err := h.session.Switch(ctx, "", SwitchOptions{})
		require.NoError(t, err)
		assert.Equal(t, "main", branch)
		assert.True(t, h.out.contains("Offline mode"))
	})

	t.Run("path reverts local changes after confirmation", func(t *testing.T) {
		h := newHarness(t, true, "yes")
		h.setup.WriteFile("README.md", "# changed\n")

		branch, err := h.session.Switch(ctx, "README.md", SwitchOptions{})
		require.NoError(t, err)
		assert.Empty(t, branch)
		assert.Equal(t, "# Test Repo\n", readFile(t, filepath.Join(h.setup.Work, "README.md")))
		assert.Equal(t, "develop", h.setup.CurrentBranch())
	})

	t.Run("declined revert keeps the changes", func(t *testing.T) {
		h := newHarness(t, true, "no")
		h.setup.WriteFile("README.md", "# changed\n")

		_, err := h.session.Switch(ctx, "README.md", SwitchOptions{})
		require.ErrorIs(t, err, ErrUserAbort)
		assert.Equal(t, "# changed\n", readFile(t, filepath.Join(h.setup.Work, "README.md")))
	})

	t.Run("unknown target", func(t *testing.T) {
		h := newHarness(t, false)
		_, err := h.session.Switch(ctx, "feature/nowhere", SwitchOptions{})
		require.ErrorIs(t, err, ErrRefNotResolvable)
	})
}
