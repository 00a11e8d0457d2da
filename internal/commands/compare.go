package commands

import (
	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare <file> [branch1] [branch2]",
	Short: "Show how a file differs between two branches",
	Long: `Diffs file as committed on branch1 and branch2. Missing branches are picked
from a list; a branch that only exists on the remote is read from its
remote-tracking ref.`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runCompare,
}

func runCompare(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	var from, to string
	if len(args) > 1 {
		from = args[1]
	}
	if len(args) > 2 {
		to = args[2]
	}
	cmp, err := e.session.Compare(cmd.Context(), args[0], from, to)
	if err != nil {
		return err
	}

	if d := cmp.Divergence; d != nil {
		e.out.Infof("%s is %d commit(s) ahead of and %d behind %s.", cmp.To, d.Ahead, d.Behind, cmp.From)
	}
	if cmp.Diff == "" {
		e.out.Successf("No differences found in %s between %s and %s.", cmp.Path, cmp.From, cmp.To)
		return nil
	}
	e.out.Printf("%s\n", cmp.Diff)
	return nil
}
