package flow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitflow/internal/gittest"
)

func TestSession_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("feature branches from develop", func(t *testing.T) {
		h := newHarness(t, true)
		a := h.setup.Rev("develop")

		rb, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "login"}, StartOptions{})
		require.NoError(t, err)

		assert.Equal(t, "feature/login", rb.FullName)
		assert.Equal(t, "feature/login", h.setup.CurrentBranch())
		assert.Equal(t, a, h.setup.Rev("feature/login"))
		assert.Equal(t, a, h.setup.Rev("develop"))
	})

	t.Run("hotfix branches from main", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Commit("dev.txt", "develop only\n", "Develop work")
		mainRev := h.setup.Rev("main")

		rb, err := h.session.Start(ctx, BranchSpec{Type: TypeHotfix, Name: "crash"}, StartOptions{})
		require.NoError(t, err)

		assert.Equal(t, "hotfix/crash", rb.FullName)
		assert.Equal(t, mainRev, h.setup.Rev("hotfix/crash"))
	})

	t.Run("existing branch is resumed", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("checkout", "-b", "feature/login")
		tip := h.setup.Commit("login.go", "package login\n", "Add login")
		h.setup.Git("checkout", "develop")

		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "login"}, StartOptions{})
		require.NoError(t, err)

		assert.Equal(t, "feature/login", h.setup.CurrentBranch())
		assert.Equal(t, tip, h.setup.Rev("feature/login"))
		assert.True(t, h.out.contains("Switched to existing branch feature/login"))
	})

	t.Run("initial message commits pending changes", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.WriteFile("notes.md", "notes\n")

		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "notes"}, StartOptions{Message: "Add notes"})
		require.NoError(t, err)

		assert.Equal(t, "Add notes", h.setup.Git("log", "-1", "--format=%s", "feature/notes"))
		assert.NotEqual(t, h.setup.Rev("develop"), h.setup.Rev("feature/notes"))
	})

	t.Run("initial message without changes is a notice", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "empty"}, StartOptions{Message: "Nothing"})
		require.NoError(t, err)
		assert.True(t, h.out.contains("No changes to commit."))
	})

	t.Run("release creates the version tag locally only", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("tag", "v1.1.0")

		rb, err := h.session.Start(ctx, BranchSpec{Type: TypeRelease}, StartOptions{})
		require.NoError(t, err)

		assert.Equal(t, "release/v1.1.1", rb.FullName)
		assert.Equal(t, "v1.1.1", rb.VersionTag)
		assert.Contains(t, h.setup.Git("tag", "--list"), "v1.1.1")
		assert.NotContains(t, gittest.Run(t, h.setup.Origin, "tag", "--list"), "v1.1.1")
	})

	t.Run("explicit release name wins over the derived version", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("tag", "v1.1.0")

		rb, err := h.session.Start(ctx, BranchSpec{Type: TypeRelease, Name: "1.2.0"}, StartOptions{})
		require.NoError(t, err)

		assert.Equal(t, "release/1.2.0", rb.FullName)
		assert.Equal(t, "v1.2.0", rb.VersionTag)
		assert.Contains(t, h.setup.Git("tag", "--list"), "v1.2.0")
	})

	t.Run("backup snapshots the current branch", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("checkout", "-b", "spike")
		tip := h.setup.Commit("spike.txt", "spike\n", "Spike")

		rb, err := h.session.Start(ctx, BranchSpec{Type: TypeBackup, Name: "spike"}, StartOptions{})
		require.NoError(t, err)

		assert.Equal(t, "backup/spike", rb.FullName)
		assert.Equal(t, tip, h.setup.Rev("backup/spike"))
	})

	t.Run("offline still creates the branch", func(t *testing.T) {
		h := newHarness(t, false)
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "offline"}, StartOptions{})
		require.NoError(t, err)

		assert.Equal(t, "feature/offline", h.setup.CurrentBranch())
		assert.True(t, h.out.contains("No network connection. Skipping pull of develop."))
	})

	t.Run("invalid specification has no side effects", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature}, StartOptions{})
		require.ErrorIs(t, err, ErrInvalidSpecification)
		assert.Equal(t, "develop", h.setup.CurrentBranch())
	})
}

func TestSession_Finish(t *testing.T) {
	ctx := context.Background()

	t.Run("no divergence deletes the branch and ends on develop", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "login"}, StartOptions{})
		require.NoError(t, err)

		res, err := h.session.Finish(ctx, BranchSpec{Type: TypeFeature, Name: "login"}, FinishOptions{})
		require.NoError(t, err)

		assert.True(t, res.Deleted)
		assert.Empty(t, h.prs.created)
		assert.False(t, h.setup.LocalBranchExists("feature/login"))
		assert.Empty(t, h.setup.OriginRev("feature/login"))
		assert.Equal(t, "develop", h.setup.CurrentBranch())
	})

	t.Run("feature with commits opens a pull request into develop and is kept", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "login"}, StartOptions{})
		require.NoError(t, err)
		tip := h.setup.Commit("login.go", "package login\n", "Add login")

		res, err := h.session.Finish(ctx, BranchSpec{}, FinishOptions{})
		require.NoError(t, err)

		require.Len(t, h.prs.created, 1)
		assert.Equal(t, "develop", h.prs.created[0].Base)
		assert.Equal(t, "feature/login", h.prs.created[0].Head)
		assert.Equal(t, "Merge feature/login into develop", h.prs.created[0].Title)
		assert.Equal(t, []string{"https://github.com/acme/app/pull/1"}, res.PullRequests)
		assert.False(t, res.Deleted)
		assert.True(t, h.setup.LocalBranchExists("feature/login"))
		assert.Equal(t, tip, h.setup.OriginRev("feature/login"))
		assert.Equal(t, "develop", h.setup.CurrentBranch())
	})

	t.Run("hotfix opens pull requests into main and develop", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeHotfix, Name: "crash"}, StartOptions{})
		require.NoError(t, err)
		h.setup.Commit("fix.txt", "fix\n", "Fix crash")

		_, err = h.session.Finish(ctx, BranchSpec{}, FinishOptions{})
		require.NoError(t, err)

		require.Len(t, h.prs.created, 2)
		assert.Equal(t, "main", h.prs.created[0].Base)
		assert.Equal(t, "develop", h.prs.created[1].Base)
	})

	t.Run("existing pull request keeps the branch", func(t *testing.T) {
		h := newHarness(t, true)
		h.prs.result.AlreadyExists = true
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "login"}, StartOptions{})
		require.NoError(t, err)
		h.setup.Commit("login.go", "package login\n", "Add login")

		res, err := h.session.Finish(ctx, BranchSpec{}, FinishOptions{})
		require.NoError(t, err)
		assert.False(t, res.Deleted)
		assert.True(t, h.setup.LocalBranchExists("feature/login"))
	})

	t.Run("failed pull request keeps the branch", func(t *testing.T) {
		h := newHarness(t, true)
		h.prs.err = errors.New("gh: authentication required")
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "login"}, StartOptions{})
		require.NoError(t, err)
		h.setup.Commit("login.go", "package login\n", "Add login")

		res, err := h.session.Finish(ctx, BranchSpec{}, FinishOptions{})
		require.NoError(t, err)
		assert.False(t, res.Deleted)
		assert.True(t, h.out.contains("Failed to create pull request"))
		assert.Equal(t, "develop", h.setup.CurrentBranch())
	})

	t.Run("offline never deletes", func(t *testing.T) {
		h := newHarness(t, false)
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "login"}, StartOptions{})
		require.NoError(t, err)

		res, err := h.session.Finish(ctx, BranchSpec{}, FinishOptions{})
		require.NoError(t, err)
		assert.True(t, res.Push.PendingPush)
		assert.False(t, res.Deleted)
		assert.True(t, h.setup.LocalBranchExists("feature/login"))
		assert.Equal(t, "develop", h.setup.CurrentBranch())
	})

	t.Run("keep local deletes only the remote copy", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "login"}, StartOptions{})
		require.NoError(t, err)

		_, err = h.session.Finish(ctx, BranchSpec{}, FinishOptions{KeepLocal: true})
		require.NoError(t, err)
		assert.True(t, h.setup.LocalBranchExists("feature/login"))
		assert.Empty(t, h.setup.OriginRev("feature/login"))
	})

	t.Run("release pushes its tag", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("tag", "v1.1.0")
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeRelease, Name: "1.2.0"}, StartOptions{})
		require.NoError(t, err)

		res, err := h.session.Finish(ctx, BranchSpec{}, FinishOptions{})
		require.NoError(t, err)
		assert.Equal(t, "v1.2.0", res.Branch.VersionTag)
		assert.Contains(t, gittest.Run(t, h.setup.Origin, "tag", "--list"), "v1.2.0")
	})

	t.Run("nameless release finishes the current release branch", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.Git("tag", "v1.1.0")
		started, err := h.session.Start(ctx, BranchSpec{Type: TypeRelease}, StartOptions{})
		require.NoError(t, err)
		require.Equal(t, "release/v1.1.1", started.FullName)

		res, err := h.session.Finish(ctx, BranchSpec{Type: TypeRelease}, FinishOptions{})
		require.NoError(t, err)
		assert.Equal(t, "release/v1.1.1", res.Branch.FullName)
		assert.Equal(t, "v1.1.1", res.Branch.VersionTag)
		assert.Equal(t, h.setup.Rev("release/v1.1.1"), h.setup.OriginRev("release/v1.1.1"))
		assert.Empty(t, h.setup.OriginRev("release/v1.1.2"))
	})

	t.Run("nameless release outside a release branch is rejected", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.session.Finish(ctx, BranchSpec{Type: TypeRelease}, FinishOptions{})
		require.ErrorIs(t, err, ErrInvalidSpecification)
	})

	t.Run("unknown pull request state keeps the branch", func(t *testing.T) {
		h := newHarness(t, true)
		h.prs.openErr = errors.New("gh CLI not installed")
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "login"}, StartOptions{})
		require.NoError(t, err)

		res, err := h.session.Finish(ctx, BranchSpec{}, FinishOptions{})
		require.NoError(t, err)
		assert.False(t, res.Deleted)
		assert.True(t, h.setup.LocalBranchExists("feature/login"))
		assert.True(t, h.out.contains("open pull requests could not be checked"))
		assert.False(t, h.out.contains("a pull request is open"))
	})

	t.Run("abort returns to the starting branch", func(t *testing.T) {
		h := newHarness(t, true, ChoiceAbort)
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "login"}, StartOptions{})
		require.NoError(t, err)
		h.setup.WriteFile("draft.txt", "draft\n")

		_, err = h.session.Finish(ctx, BranchSpec{}, FinishOptions{})
		require.ErrorIs(t, err, ErrUserAbort)
		assert.Equal(t, "feature/login", h.setup.CurrentBranch())
		assert.Empty(t, h.setup.OriginRev("feature/login"))
	})

	t.Run("stashed changes are offered back afterwards", func(t *testing.T) {
		h := newHarness(t, true, ChoiceStash, "yes")
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "login"}, StartOptions{})
		require.NoError(t, err)
		h.setup.WriteFile("draft.txt", "draft\n")

		_, err = h.session.Finish(ctx, BranchSpec{}, FinishOptions{})
		require.NoError(t, err)
		assert.Equal(t, "develop", h.setup.CurrentBranch())
		assert.FileExists(t, filepath.Join(h.setup.Work, "draft.txt"))
		assert.Contains(t, h.prompt.asked, "Pop the stashed changes now?")
	})

	t.Run("refuses long-lived and local branches", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.session.Finish(ctx, BranchSpec{}, FinishOptions{})
		require.ErrorIs(t, err, ErrInvalidSpecification)

		h.setup.Git("checkout", "-b", "spike")
		_, err = h.session.Finish(ctx, BranchSpec{}, FinishOptions{})
		require.ErrorIs(t, err, ErrInvalidSpecification)
	})
}

func TestSession_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("second run performs no merge", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeRelease, Name: "1.0.0"}, StartOptions{})
		require.NoError(t, err)
		h.setup.Commit("fix.txt", "fix\n", "Release fix")

		first, err := h.session.Update(ctx, UpdateOptions{})
		require.NoError(t, err)
		assert.False(t, first.Skipped)
		assert.Equal(t, MergeClean, first.Merge.State)
		assert.Equal(t, "Merge branch 'release/1.0.0' into develop", h.setup.Git("log", "-1", "--format=%s", "develop"))
		assert.Equal(t, h.setup.Rev("develop"), h.setup.OriginRev("develop"))
		assert.Equal(t, "release/1.0.0", h.setup.CurrentBranch())
		developAfterFirst := h.setup.Rev("develop")

		require.Len(t, h.prs.created, 1)
		assert.Equal(t, "main", h.prs.created[0].Base)
		assert.Equal(t, "develop", h.prs.created[0].Head)

		second, err := h.session.Update(ctx, UpdateOptions{})
		require.NoError(t, err)
		assert.True(t, second.Skipped)
		assert.Equal(t, developAfterFirst, h.setup.Rev("develop"))
		assert.Len(t, h.prs.created, 1)
		assert.Equal(t, "release/1.0.0", h.setup.CurrentBranch())
	})

	t.Run("requires a release branch", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.session.Update(ctx, UpdateOptions{})
		require.ErrorIs(t, err, ErrInvalidSpecification)
	})

	t.Run("commits with the supplied message first", func(t *testing.T) {
		h := newHarness(t, true)
		_, err := h.session.Start(ctx, BranchSpec{Type: TypeRelease, Name: "1.0.0"}, StartOptions{})
		require.NoError(t, err)
		h.setup.WriteFile("changelog.md", "1.0.0\n")

		_, err = h.session.Update(ctx, UpdateOptions{Message: "Changelog"})
		require.NoError(t, err)
		assert.Equal(t, "Changelog", h.setup.Git("log", "-1", "--format=%s", "release/1.0.0"))
		assert.Contains(t, h.setup.Git("log", "--format=%s", "develop"), "Changelog")
	})
}

func TestSession_WeeklyUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the weekly branch and opens pull requests", func(t *testing.T) {
		h := newHarness(t, true)
		h.setup.WriteFile("docs/week.md", "updates\n")

		res, err := h.session.WeeklyUpdate(ctx, WeeklyOptions{Message: "Weekly docs"})
		require.NoError(t, err)

		assert.True(t, res.Success)
		assert.True(t, res.PullRequestCreated)
		assert.Equal(t, "Weekly docs", h.setup.Git("log", "-1", "--format=%s", "weekly-updates"))
		assert.Equal(t, h.setup.Rev("weekly-updates"), h.setup.OriginRev("weekly-updates"))
		require.Len(t, h.prs.created, 2)
		assert.Equal(t, "Merge weekly updates into develop", h.prs.created[0].Title)
		assert.Equal(t, "Merge weekly updates into main", h.prs.created[1].Title)
		assert.Equal(t, "Weekly docs", h.prs.created[0].Body)
		assert.Equal(t, "develop", h.setup.CurrentBranch())
		assert.True(t, h.setup.LocalBranchExists("weekly-updates"))
	})

	t.Run("prompts for a message", func(t *testing.T) {
		h := newHarness(t, true, "Prompted weekly", "")
		h.setup.WriteFile("docs/week.md", "updates\n")

		_, err := h.session.WeeklyUpdate(ctx, WeeklyOptions{})
		require.NoError(t, err)
		assert.Equal(t, "Prompted weekly", h.setup.Git("log", "-1", "--format=%s", "weekly-updates"))
	})

	t.Run("nothing to merge opens nothing", func(t *testing.T) {
		h := newHarness(t, true)
		res, err := h.session.WeeklyUpdate(ctx, WeeklyOptions{})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Empty(t, h.prs.created)
		assert.True(t, h.out.contains("No pull requests were needed"))
	})
}

func TestSession_Commit(t *testing.T) {
	ctx := context.Background()

	t.Run("prompts for subject and body", func(t *testing.T) {
		h := newHarness(t, true, "Add notes", "First line of the body")
		h.setup.WriteFile("notes.md", "notes\n")

		committed, err := h.session.Commit(ctx, CommitOptions{})
		require.NoError(t, err)
		assert.True(t, committed)
		assert.Equal(t, "Add notes\n\nFirst line of the body", h.setup.Git("log", "-1", "--format=%B"))
	})

	t.Run("clean tree is a notice", func(t *testing.T) {
		h := newHarness(t, true)
		committed, err := h.session.Commit(ctx, CommitOptions{Message: "unused"})
		require.NoError(t, err)
		assert.False(t, committed)
	})

	t.Run("empty message is rejected", func(t *testing.T) {
		h := newHarness(t, true, "   ")
		h.setup.WriteFile("notes.md", "notes\n")
		_, err := h.session.Commit(ctx, CommitOptions{})
		require.ErrorIs(t, err, ErrEmptyCommitMessage)
	})
}

func TestSession_ReconcileCommit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true, ChoiceCommit, "Work in progress", "")
	_, err := h.session.Start(ctx, BranchSpec{Type: TypeFeature, Name: "wip"}, StartOptions{})
	require.NoError(t, err)
	h.setup.WriteFile("wip.txt", "wip\n")

	_, err = h.session.Finish(ctx, BranchSpec{}, FinishOptions{NoDelete: true})
	require.NoError(t, err)
	assert.Equal(t, "Work in progress", h.setup.Git("log", "-1", "--format=%s", "feature/wip"))
	assert.Equal(t, h.setup.Rev("feature/wip"), h.setup.OriginRev("feature/wip"))
}

func TestWrapBody(t *testing.T) {
	long := "This body line is deliberately written to be longer than seventy-two characters in total."
	wrapped := WrapBody(long, BodyWidth)
	lines := strings.Split(wrapped, "\n")
	require.Greater(t, len(lines), 1)
	for _, line := range lines {
		assert.LessOrEqual(t, len(line), BodyWidth)
	}
	assert.Equal(t, long, strings.Join(lines, " "))

	assert.Equal(t, "short", WrapBody("short", BodyWidth))
	assert.Equal(t, "aaaaa\naaaaa\naa", WrapBody("aaaaaaaaaaaa", 5))

	umlauts := WrapBody("a"+strings.Repeat("ä", 80), BodyWidth)
	assert.True(t, utf8.ValidString(umlauts))
	lines = strings.Split(umlauts, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, BodyWidth, utf8.RuneCountInString(lines[0]))
	assert.Equal(t, strings.Repeat("ä", 9), lines[1])
	assert.Equal(t, "Größe ändern\nüber", WrapBody("Größe ändern über", 14))
	assert.Equal(t, "Subject", ComposeCommitMessage(" Subject ", ""))
	assert.Equal(t, "Subject\n\nBody", ComposeCommitMessage("Subject", "Body"))
}

func TestNewSession_RequiresCollaborators(t *testing.T) {
	_, err := NewSession(context.Background(), Options{})
	require.Error(t, err)
}

func TestSession_LedgerLivesInGitDir(t *testing.T) {
	h := newHarness(t, true)
	gitDir, err := h.repo.GitDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(gitDir, "gitflow", "side-branches.yml"), h.session.Ledger().Path())
}
