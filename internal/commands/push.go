package commands

import (
	"github.com/spf13/cobra"

	"gitflow/internal/flow"
)

var pushFlags struct {
	force bool
	pr    bool
}

var pushCmd = &cobra.Command{
	Use:   "push [branch]",
	Short: "Push a branch after comparing it with its remote counterpart",
	Long: `Pushes branch (default: the current branch).

Behind the remote, you choose between pulling with rebase, force pushing, or
opening a pull request. Force pushing is refused when the remote could not be
consulted. Pushes to protected branches go through a side branch and a pull
request. With --pr a pull request from the current branch into branch is opened
instead of pushing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPush,
}

func init() {
	pushCmd.Flags().BoolVarP(&pushFlags.force, "force", "f", false, "Force push when the branch is behind")
	pushCmd.Flags().BoolVarP(&pushFlags.pr, "pr", "p", false, "Open a pull request from the current branch into branch instead of pushing")
}

func runPush(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	opts := flow.PushOptions{Force: pushFlags.force, PullRequest: pushFlags.pr}
	if len(args) > 0 {
		opts.Branch = args[0]
	}
	res, err := e.session.Push(cmd.Context(), opts)
	if err != nil {
		return err
	}
	return reportOutcome(e.out, "push failed", res)
}
