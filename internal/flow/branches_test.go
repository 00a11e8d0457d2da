package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes a merged local branch", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("branch", "feature/a")

		require.NoError(t, h.session.Remove(ctx, []string{"feature/a"}, RemoveOptions{}))
		assert.False(t, h.setup.LocalBranchExists("feature/a"))
	})

	t.Run("never deletes long-lived branches", func(t *testing.T) {
		h := newHarness(t, true)
		require.NoError(t, h.session.Remove(ctx, []string{"develop", "main"}, RemoveOptions{Remote: true, Force: true}))
		assert.True(t, h.setup.LocalBranchExists("develop"))
		assert.True(t, h.setup.LocalBranchExists("main"))
		assert.NotEmpty(t, h.setup.OriginRev("main"))
		assert.True(t, h.out.contains("You cannot delete the develop branch"))
	})

	t.Run("unmerged branch needs force", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("checkout", "-b", "feature/a")
		h.setup.Commit("a.txt", "a\n", "Unmerged work")
		h.setup.Git("checkout", "develop")

		err := h.session.Remove(ctx, []string{"feature/a"}, RemoveOptions{})
		require.Error(t, err)
		assert.True(t, h.setup.LocalBranchExists("feature/a"))
		assert.True(t, h.out.contains("is not fully merged"))

		require.NoError(t, h.session.Remove(ctx, []string{"feature/a"}, RemoveOptions{Force: true}))
		assert.False(t, h.setup.LocalBranchExists("feature/a"))
	})

	t.Run("leaves the branch being deleted", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("checkout", "-b", "feature/a")

		require.NoError(t, h.session.Remove(ctx, []string{"feature/a"}, RemoveOptions{}))
		assert.Equal(t, "develop", h.setup.CurrentBranch())
		assert.False(t, h.setup.LocalBranchExists("feature/a"))
	})

	t.Run("deletes the remote copy", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("branch", "feature/a")
		h.setup.Git("push", "origin", "feature/a")

		require.NoError(t, h.session.Remove(ctx, []string{"feature/a"}, RemoveOptions{Remote: true}))
		assert.False(t, h.setup.LocalBranchExists("feature/a"))
		assert.Empty(t, h.setup.OriginRev("feature/a"))
	})

	t.Run("keeps branches backing an open pull request", func(t *testing.T) {
		h := newHarness(t, true)
		h.prs.open = true
		h.setup.Git("branch", "feature/a")
		h.setup.Git("push", "origin", "feature/a")

		require.NoError(t, h.session.Remove(ctx, []string{"feature/a"}, RemoveOptions{Remote: true}))
		assert.True(t, h.setup.LocalBranchExists("feature/a"))
		assert.NotEmpty(t, h.setup.OriginRev("feature/a"))
	})

	t.Run("unknown pull request state needs force", func(t *testing.T) {
		h := newHarness(t, true)
		h.prs.openErr = errors.New("gh CLI not installed")
		h.setup.Git("branch", "feature/a")
		h.setup.Git("push", "origin", "feature/a")

		require.NoError(t, h.session.Remove(ctx, []string{"feature/a"}, RemoveOptions{Remote: true}))
		assert.True(t, h.setup.LocalBranchExists("feature/a"))
		assert.NotEmpty(t, h.setup.OriginRev("feature/a"))
		assert.True(t, h.out.contains("Could not check for open pull requests on feature/a"))
		assert.False(t, h.out.contains("There are open pull requests"))
	})

	t.Run("offline deletes only locally", func(t *testing.T) {
		h := newHarness(t, false)
		h.setup.Git("branch", "feature/a")
		h.setup.Git("push", "origin", "feature/a")

		require.NoError(t, h.session.Remove(ctx, []string{"feature/a"}, RemoveOptions{Remote: true}))
		assert.False(t, h.setup.LocalBranchExists("feature/a"))
		assert.NotEmpty(t, h.setup.OriginRev("feature/a"))
	})

	t.Run("requires a branch", func(t *testing.T) {
		h := newHarness(t, true)
		require.ErrorIs(t, h.session.Remove(ctx, nil, RemoveOptions{}), ErrInvalidSpecification)
	})
}

func TestSession_Rename(t *testing.T) {
	ctx := context.Background()

	t.Run("local only", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("branch", "feature/a")

		res, err := h.session.Rename(ctx, "feature/a", "feature/b", RenameOptions{})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.False(t, h.setup.LocalBranchExists("feature/a"))
		assert.True(t, h.setup.LocalBranchExists("feature/b"))
	})

	t.Run("remote copy follows", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("branch", "feature/a")
		h.setup.Git("push", "origin", "feature/a")

		res, err := h.session.Rename(ctx, "feature/a", "feature/b", RenameOptions{Remote: true})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Empty(t, h.setup.OriginRev("feature/a"))
		assert.Equal(t, h.setup.Rev("feature/b"), h.setup.OriginRev("feature/b"))
	})

	t.Run("protected old remote branch goes through a pull request", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("branch", "feature/a")
		h.setup.Git("push", "origin", "feature/a")
		h.setup.Protect("feature/a")

		res, err := h.session.Rename(ctx, "feature/a", "feature/b", RenameOptions{Remote: true})
		require.NoError(t, err)

		side := "rename-feature/a-to-feature/b-20240307120000"
		assert.Equal(t, side, res.SideBranch)
		assert.True(t, res.PullRequestCreated)
		assert.NotEmpty(t, h.setup.OriginRev("feature/a"))
		assert.NotEmpty(t, h.setup.OriginRev("feature/b"))
		require.Len(t, h.prs.created, 1)
		assert.Equal(t, "feature/a", h.prs.created[0].Base)
		assert.Equal(t, side, h.prs.created[0].Head)
		assert.Equal(t, "develop", h.setup.CurrentBranch())
	})

	t.Run("offline leaves the remote alone", func(t *testing.T) {
		h := newHarness(t, false)
		h.setup.Git("branch", "feature/a")

		res, err := h.session.Rename(ctx, "feature/a", "feature/b", RenameOptions{Remote: true})
		require.NoError(t, err)
		assert.True(t, res.PendingPush)
		assert.True(t, h.setup.LocalBranchExists("feature/b"))
	})

	t.Run("invalid renames", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("branch", "feature/a")
		h.setup.Git("branch", "feature/b")

		_, err := h.session.Rename(ctx, "develop", "trunk", RenameOptions{})
		require.ErrorIs(t, err, ErrInvalidSpecification)
		_, err = h.session.Rename(ctx, "feature/a", "main", RenameOptions{})
		require.ErrorIs(t, err, ErrInvalidSpecification)
		_, err = h.session.Rename(ctx, "feature/a", "feature/b", RenameOptions{})
		require.ErrorIs(t, err, ErrInvalidSpecification)
		_, err = h.session.Rename(ctx, "feature/missing", "feature/c", RenameOptions{})
		require.ErrorIs(t, err, ErrRefNotResolvable)
		_, err = h.session.Rename(ctx, "feature/a", "bad name", RenameOptions{})
		require.ErrorIs(t, err, ErrInvalidSpecification)
	})
}

func TestSession_ListBranches(t *testing.T) {
	ctx := context.Background()

	t.Run("online", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("branch", "feature/a")

		listing, err := h.session.ListBranches(ctx)
		require.NoError(t, err)
		assert.Equal(t, "develop", listing.Current)
		assert.ElementsMatch(t, []string{"develop", "feature/a", "main"}, listing.Local)
		assert.ElementsMatch(t, []string{"develop", "main"}, listing.Remote)
		assert.False(t, listing.Stale)
	})

	t.Run("offline marks remote branches stale", func(t *testing.T) {
		h := newHarness(t, false)
		listing, err := h.session.ListBranches(ctx)
		require.NoError(t, err)
		assert.True(t, listing.Stale)
	})
}

func TestSession_Status(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	h.setup.Commit("a.txt", "a\n", "Unpushed work")
	h.setup.WriteFile("notes.md", "notes\n")
	require.NoError(t, h.session.Ledger().Record(SideBranch{Branch: "update-develop-1", Target: "develop"}))

	report, err := h.session.Status(ctx)
	require.NoError(t, err)

	assert.Equal(t, "develop", report.Branch)
	assert.Equal(t, "Unpushed work", report.LastCommit.Subject)
	assert.True(t, report.Tracked)
	assert.Equal(t, 1, report.Ahead)
	assert.Equal(t, 0, report.Behind)
	require.Len(t, report.Changes, 1)
	assert.Equal(t, "notes.md", report.Changes[0].Path)
	require.Len(t, report.Remotes, 1)
	assert.Equal(t, "origin", report.Remotes[0][0])
	require.Len(t, report.SideBranches, 1)
}

func TestSession_Cleanup(t *testing.T) {
	ctx := context.Background()

	pushedSide := func(t *testing.T, h *harness, name string) {
		t.Helper()
		h.setup.Git("branch", name)
		h.setup.Git("push", "origin", name)
		require.NoError(t, h.session.Ledger().Record(SideBranch{Branch: name, Target: "develop", Pushed: true}))
	}

	t.Run("nothing recorded", func(t *testing.T) {
		h := newHarness(t, true)
		removed, err := h.session.Cleanup(ctx, CleanupOptions{Remote: true})
		require.NoError(t, err)
		assert.Empty(t, removed)
		assert.True(t, h.out.contains("No side branches recorded."))
	})

	t.Run("remote cleanup removes closed side branches", func(t *testing.T) {
		h := newHarness(t, true)
		pushedSide(t, h, sideName)

		removed, err := h.session.Cleanup(ctx, CleanupOptions{Remote: true})
		require.NoError(t, err)
		require.Len(t, removed, 1)
		assert.False(t, h.setup.LocalBranchExists(sideName))
		assert.Empty(t, h.setup.OriginRev(sideName))

		entries, err := h.session.Ledger().List()
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("pushed entries stay recorded without remote cleanup", func(t *testing.T) {
		h := newHarness(t, true)
		pushedSide(t, h, sideName)

		removed, err := h.session.Cleanup(ctx, CleanupOptions{})
		require.NoError(t, err)
		assert.Empty(t, removed)
		assert.False(t, h.setup.LocalBranchExists(sideName))
		assert.NotEmpty(t, h.setup.OriginRev(sideName))

		entries, err := h.session.Ledger().List()
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("open pull request keeps the remote copy", func(t *testing.T) {
		h := newHarness(t, true)
		h.prs.open = true
		pushedSide(t, h, sideName)

		removed, err := h.session.Cleanup(ctx, CleanupOptions{Remote: true})
		require.NoError(t, err)
		assert.Empty(t, removed)
		assert.NotEmpty(t, h.setup.OriginRev(sideName))
	})

	t.Run("unknown pull request state keeps the remote copy", func(t *testing.T) {
		h := newHarness(t, true)
		h.prs.openErr = errors.New("gh CLI not installed")
		pushedSide(t, h, sideName)

		removed, err := h.session.Cleanup(ctx, CleanupOptions{Remote: true})
		require.NoError(t, err)
		assert.Empty(t, removed)
		assert.NotEmpty(t, h.setup.OriginRev(sideName))
		assert.True(t, h.out.contains("could not check its pull request"))
	})

	t.Run("unpushed entries need confirmation", func(t *testing.T) {
		h := newHarness(t, true, "no", "yes")
		for _, name := range []string{"update-develop-1", "update-develop-2"} {
			h.setup.Git("branch", name)
			require.NoError(t, h.session.Ledger().Record(SideBranch{Branch: name, Target: "develop"}))
		}

		removed, err := h.session.Cleanup(ctx, CleanupOptions{})
		require.NoError(t, err)
		require.Len(t, removed, 1)
		assert.Equal(t, "update-develop-2", removed[0].Branch)
		assert.True(t, h.setup.LocalBranchExists("update-develop-1"))
		assert.False(t, h.setup.LocalBranchExists("update-develop-2"))
	})
}
