package commands

import (
	"github.com/spf13/cobra"

	"gitflow/internal/flow"
)

var stashFlags struct {
	list      bool
	show      string
	drop      string
	clear     bool
	message   string
	untracked bool
}

var stashCmd = &cobra.Command{
	Use:   "stash",
	Short: "Stash local changes or manage the stash",
	Long: `Stashes tracked changes, with --untracked also untracked files.

--list shows the stash entries, --show prints the patch of one entry, --drop
deletes one entry and --clear deletes all of them after confirmation.`,
	Args: cobra.NoArgs,
	RunE: runStash,
}

var unstashFlags struct {
	apply bool
}

var unstashCmd = &cobra.Command{
	Use:   "unstash [stash]",
	Short: "Reapply stashed changes",
	Long: `Pops a stash entry (default: picked from a list). --apply keeps the entry in
the stash.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUnstash,
}

func init() {
	stashCmd.Flags().BoolVarP(&stashFlags.list, "list", "l", false, "List stash entries")
	stashCmd.Flags().StringVarP(&stashFlags.show, "show", "s", "", "Show the patch of a stash entry")
	stashCmd.Flags().StringVarP(&stashFlags.drop, "drop", "d", "", "Delete a stash entry")
	stashCmd.Flags().BoolVarP(&stashFlags.clear, "clear", "c", false, "Delete all stash entries")
	stashCmd.Flags().StringVarP(&stashFlags.message, "message", "m", "", "Stash message")
	stashCmd.Flags().BoolVarP(&stashFlags.untracked, "untracked", "u", false, "Include untracked files")

	unstashCmd.Flags().BoolVarP(&unstashFlags.apply, "apply", "a", false, "Keep the entry in the stash")
}

func runStash(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	switch {
	case stashFlags.list:
		entries, err := e.session.Stashes(ctx)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			e.out.Infof("No stashes found.")
			return nil
		}
		e.out.Printf("%s\n", e.out.StashTable(entries))
	case stashFlags.show != "":
		patch, err := e.session.ShowStash(ctx, stashFlags.show)
		if err != nil {
			return err
		}
		e.out.Printf("%s\n", patch)
	case stashFlags.drop != "":
		return e.session.DropStash(ctx, stashFlags.drop)
	case stashFlags.clear:
		_, err := e.session.ClearStashes(ctx)
		return err
	default:
		_, err := e.session.Stash(ctx, flow.StashOptions{Message: stashFlags.message, Untracked: stashFlags.untracked})
		return err
	}
	return nil
}

func runUnstash(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	opts := flow.UnstashOptions{Apply: unstashFlags.apply}
	if len(args) > 0 {
		opts.Ref = args[0]
	}
	return e.session.Unstash(cmd.Context(), opts)
}
