package commands

import (
	"github.com/spf13/cobra"

	"gitflow/internal/flow"
)

var fetchFlags struct {
	branch string
	prune  bool
	all    bool
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [remote]",
	Short: "Download refs from a remote without touching local branches",
	Long: `Fetches from remote (default: the configured remote).

--branch fetches a single branch. --prune drops remote-tracking branches that
no longer exist on the remote. --all fetches every remote and always prunes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

var pullFlags struct {
	branch string
	all    bool
	prune  bool
	rebase bool
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch and bring local branches up to date",
	Long: `Fetches from the configured remote and merges the remote counterpart into
the current branch, or into --branch, which is checked out and left again.

--all updates every local branch that has incoming commits. --rebase rebases
local commits on top instead of merging; a rebase that fails is abandoned.
Uncommitted changes can be committed, stashed or kept. Conflicting merges offer
the merge tool, an abort, or 'gitflow continue-merge' later.`,
	Args: cobra.NoArgs,
	RunE: runPull,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchFlags.branch, "branch", "b", "", "Fetch a single branch")
	fetchCmd.Flags().BoolVarP(&fetchFlags.prune, "prune", "p", false, "Prune deleted remote branches")
	fetchCmd.Flags().BoolVarP(&fetchFlags.all, "all", "a", false, "Fetch all remotes")

	pullCmd.Flags().StringVarP(&pullFlags.branch, "branch", "b", "", "Branch to pull (default: the current branch)")
	pullCmd.Flags().BoolVarP(&pullFlags.all, "all", "a", false, "Pull every local branch")
	pullCmd.Flags().BoolVarP(&pullFlags.prune, "prune", "p", false, "Prune deleted remote branches while fetching")
	pullCmd.Flags().BoolVarP(&pullFlags.rebase, "rebase", "r", false, "Rebase local commits instead of merging")
}

func runFetch(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	opts := flow.FetchOptions{Branch: fetchFlags.branch, Prune: fetchFlags.prune, All: fetchFlags.all}
	if len(args) > 0 {
		opts.Remote = args[0]
	}
	return e.session.Fetch(cmd.Context(), opts)
}

func runPull(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	res, err := e.session.Pull(cmd.Context(), flow.PullOptions{
		Branch: pullFlags.branch,
		All:    pullFlags.all,
		Prune:  pullFlags.prune,
		Rebase: pullFlags.rebase,
	})
	if err != nil {
		return err
	}
	if res.Merge != nil {
		reportMerge(e, *res.Merge)
	}
	report, err := e.session.Status(cmd.Context())
	if err != nil {
		return err
	}
	e.out.Printf("%s\n", e.out.StatusTable(report, e.session.Remote()))
	return nil
}
