package commands

import (
	"github.com/spf13/cobra"

	"gitflow/internal/flow"
)

var cleanupFlags struct {
	remote bool
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete side branches created for protected-branch pull requests",
	Long: `Deletes the side branches gitflow created when a push to a protected branch
was rejected. Side branches whose pull request is still open are kept.
Side branches that were never pushed are only deleted after confirmation.
With --all the remote copies are deleted as well and their entries are
dropped from the ledger.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupFlags.remote, "all", "a", false, "Also delete remote side branches")
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	removed, err := e.session.Cleanup(cmd.Context(), flow.CleanupOptions{Remote: cleanupFlags.remote})
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		return nil
	}
	e.out.Printf("%s\n", e.out.SideBranchTable(removed))
	return nil
}
