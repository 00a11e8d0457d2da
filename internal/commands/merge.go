package commands

import (
	"github.com/spf13/cobra"

	"gitflow/internal/flow"
)

var mergeFlags struct {
	ff     bool
	squash bool
}

var mergeCmd = &cobra.Command{
	Use:   "merge [source] [target]",
	Short: "Merge one branch into another",
	Long: `Merges source (default: the current branch) into target (default: the
current branch) and returns to the branch you started on.

A merge commit is always created unless --ff is given and the target has not
moved. On conflicts you can open the merge tool, abort, or resolve manually and
run 'gitflow continue-merge' later. Running merge while a merge is in
progress continues that merge.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runMerge,
}

var continueMergeCmd = &cobra.Command{
	Use:   "continue-merge",
	Short: "Complete a merge after resolving its conflicts",
	Args:  cobra.NoArgs,
	RunE:  runContinueMerge,
}

func init() {
	mergeCmd.Flags().BoolVar(&mergeFlags.ff, "ff", false, "Fast-forward when possible instead of creating a merge commit")
	mergeCmd.Flags().BoolVar(&mergeFlags.squash, "squash", false, "Squash the source commits into one change on the target")
}

func runMerge(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	req := flow.MergeRequest{NoFF: !mergeFlags.ff, Squash: mergeFlags.squash}
	if len(args) > 0 {
		req.Source = args[0]
	}
	if len(args) > 1 {
		req.Target = args[1]
	}
	res, err := e.session.Merge(cmd.Context(), req)
	if err != nil {
		return err
	}
	reportMerge(e, res)
	return nil
}

func runContinueMerge(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	res, err := e.session.ContinueMerge(cmd.Context())
	if err != nil {
		return err
	}
	reportMerge(e, res)
	return nil
}

func reportMerge(e *env, res flow.MergeResult) {
	if res.State == flow.MergeConflicted {
		e.out.Warnf("%d file(s) still conflicted.", len(res.ConflictingPaths))
	}
}
