package commands

import (
	"github.com/spf13/cobra"

	"gitflow/internal/flow"
)

var updateFlags struct {
	message string
	body    string
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Merge the current release branch back into develop",
	Long: `Commits pending changes when a message is given, merges the current release
branch into develop with a merge commit, pushes develop and opens a pull
request from develop into main. The release branch is kept.

Nothing happens when develop already contains everything the release branch
carries, so running update twice in a row is safe.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

var weeklyFlags struct {
	message string
	body    string
}

var weeklyUpdateCmd = &cobra.Command{
	Use:   "weekly-update",
	Short: "Commit to the weekly branch and open pull requests into develop and main",
	Long: `Checks out the weekly branch (creating it from develop when it does not exist),
commits pending changes, pushes it and opens pull requests into develop and
main for whatever they are missing. The weekly branch is never deleted.`,
	Args: cobra.NoArgs,
	RunE: runWeeklyUpdate,
}

func init() {
	updateCmd.Flags().StringVarP(&updateFlags.message, "message", "m", "", "Commit pending changes with this message first")
	updateCmd.Flags().StringVarP(&updateFlags.body, "body", "b", "", "Commit message body")
	weeklyUpdateCmd.Flags().StringVarP(&weeklyFlags.message, "message", "m", "", "Commit message (prompted when omitted)")
	weeklyUpdateCmd.Flags().StringVarP(&weeklyFlags.body, "body", "b", "", "Commit message body")
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	res, err := e.session.Update(cmd.Context(), flow.UpdateOptions{
		Message: updateFlags.message,
		Body:    updateFlags.body,
	})
	if err != nil {
		return err
	}
	if res.Skipped {
		return nil
	}
	if res.Merge.State == flow.MergeConflicted {
		e.out.Warnf("Run 'gitflow continue-merge' after resolving the conflicts, then 'gitflow push %s'.", e.session.Branches().Develop)
		return nil
	}
	return reportOutcome(e.out, "failed to push "+e.session.Branches().Develop, res.Push)
}

func runWeeklyUpdate(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	res, err := e.session.WeeklyUpdate(cmd.Context(), flow.WeeklyOptions{
		Message: weeklyFlags.message,
		Body:    weeklyFlags.body,
	})
	if err != nil {
		return err
	}
	return reportOutcome(e.out, "failed to push "+e.session.Branches().Weekly, res)
}
