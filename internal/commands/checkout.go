package commands

import (
	"github.com/spf13/cobra"

	"gitflow/internal/flow"
)

var checkoutFlags struct {
	force bool
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout [branch|path]",
	Short: "Switch branches or revert a file",
	Long: `Switches to branch, picked from a list when omitted. A branch that only exists
on the remote is checked out as a tracking branch; origin/<branch> also pulls the
local copy. Uncommitted changes can be committed, stashed or kept.

When the argument names a file instead of a branch, its local changes are
discarded after confirmation. --force discards changes without asking.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheckout,
}

func init() {
	checkoutCmd.Flags().BoolVarP(&checkoutFlags.force, "force", "f", false, "Discard local changes")
}

func runCheckout(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	var target string
	if len(args) > 0 {
		target = args[0]
	}
	_, err = e.session.Switch(cmd.Context(), target, flow.SwitchOptions{Force: checkoutFlags.force})
	return err
}
