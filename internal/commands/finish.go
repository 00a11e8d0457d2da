package commands

import (
	"github.com/spf13/cobra"

	"gitflow/internal/flow"
)

var finishFlags struct {
	keepLocal bool
	noDelete  bool
}

var finishCmd = &cobra.Command{
	Use:   "finish [branch]",
	Short: "Push a feature, hotfix or release branch and open its pull requests",
	Long: `Finishes the current branch, or the named one.

The branch is pushed (through a side branch and pull request when the remote
branch is protected) and pull requests are opened:
  feature           into develop
  hotfix, release   into main and develop
Release branches also push their version tag.

The branch is deleted locally and remotely only when it was pushed directly
and nothing is left to merge: no pull request was opened or is still open.
The command ends on develop.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFinish,
}

func init() {
	finishCmd.Flags().BoolVarP(&finishFlags.keepLocal, "keep-local", "k", false, "Keep the local branch when deleting the remote one")
	finishCmd.Flags().BoolVar(&finishFlags.noDelete, "no-delete", false, "Never delete the branch")
}

func runFinish(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	var spec flow.BranchSpec
	if len(args) > 0 {
		spec = e.session.Resolver().Infer(args[0])
	}
	res, err := e.session.Finish(cmd.Context(), spec, flow.FinishOptions{
		KeepLocal: finishFlags.keepLocal,
		NoDelete:  finishFlags.noDelete,
	})
	if err != nil {
		return err
	}
	for _, url := range res.PullRequests {
		e.out.Infof("Pull request: %s", url)
	}
	if res.Deleted {
		e.out.Successf("Finished %s", res.Branch.FullName)
	}
	return reportOutcome(e.out, "failed to push "+res.Branch.FullName, res.Push)
}
