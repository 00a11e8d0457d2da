package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"gitflow/internal/flow"
)

var cpFlags struct {
	pr bool
}

var cpCmd = &cobra.Command{
	Use:   "cp <file> [branch...]",
	Short: "Copy the current version of a file to other branches",
	Long: `Commits the working tree content of file onto each branch (picked from a list
when none is given) and pushes it. Branches that already have the same content
are skipped. Protected branches receive the change through a side branch and a
pull request; --pr does that for every branch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCp,
}

func init() {
	cpCmd.Flags().BoolVarP(&cpFlags.pr, "pr", "p", false, "Open a pull request per branch instead of pushing")
}

func runCp(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	results, copyErr := e.session.Copy(cmd.Context(), flow.CopyOptions{
		Path:        args[0],
		Targets:     args[1:],
		PullRequest: cpFlags.pr,
	})
	errs := []error{copyErr}
	for _, res := range results {
		if res.Identical {
			continue
		}
		errs = append(errs, reportOutcome(e.out, "copy to "+res.Target+" failed", res.Outcome))
	}
	return errors.Join(errs...)
}
