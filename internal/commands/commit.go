package commands

import (
	"github.com/spf13/cobra"

	"gitflow/internal/flow"
)

var commitFlags struct {
	message string
	body    string
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Stage and commit every change in the working tree",
	Long: `Stages all changes, untracked files included, and commits them. The message
is prompted for when --message is omitted. The body is wrapped at 72 columns.`,
	Args: cobra.NoArgs,
	RunE: runCommit,
}

func init() {
	commitCmd.Flags().StringVarP(&commitFlags.message, "message", "m", "", "Commit subject")
	commitCmd.Flags().StringVarP(&commitFlags.body, "body", "b", "", "Commit body")
}

func runCommit(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	_, err = e.session.Commit(cmd.Context(), flow.CommitOptions{
		Message: commitFlags.message,
		Body:    commitFlags.body,
	})
	return err
}
