package commands

import (
	"github.com/spf13/cobra"

	"gitflow/internal/flow"
)

var rmFlags struct {
	remote bool
	force  bool
}

var rmCmd = &cobra.Command{
	Use:   "rm <branch>...",
	Short: "Delete branches",
	Long: `Deletes local branches, and with --remote their remote counterparts.

main, develop and the weekly branch are never deleted. Unmerged branches and
remote branches backing an open pull request are kept unless --force is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRm,
}

var mvFlags struct {
	remote bool
}

var mvCmd = &cobra.Command{
	Use:   "mv <old> <new>",
	Short: "Rename a branch",
	Long: `Renames a local branch, and with --remote its remote counterpart.

When the old remote branch is protected, the new branch is pushed as a side
branch and a pull request is opened instead of deleting the old one.`,
	Args: cobra.ExactArgs(2),
	RunE: runMv,
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List local and remote branches",
	Args:  cobra.NoArgs,
	RunE:  runLs,
}

func init() {
	rmCmd.Flags().BoolVarP(&rmFlags.remote, "remote", "r", false, "Also delete the remote branches")
	rmCmd.Flags().BoolVarP(&rmFlags.force, "force", "f", false, "Delete unmerged branches and ignore open pull requests")
	mvCmd.Flags().BoolVarP(&mvFlags.remote, "remote", "r", false, "Also rename the remote branch")
}

func runRm(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	return e.session.Remove(cmd.Context(), args, flow.RemoveOptions{
		Remote: rmFlags.remote,
		Force:  rmFlags.force,
	})
}

func runMv(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	res, err := e.session.Rename(cmd.Context(), args[0], args[1], flow.RenameOptions{Remote: mvFlags.remote})
	if err != nil {
		return err
	}
	return reportOutcome(e.out, "failed to rename "+args[0], res)
}

func runLs(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	listing, err := e.session.ListBranches(cmd.Context())
	if err != nil {
		return err
	}
	e.out.Printf("%s\n", e.out.BranchTable(listing, e.session.Remote()))
	return nil
}
