package commands

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current branch, its remote divergence and pending changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		report, err := e.session.Status(cmd.Context())
		if err != nil {
			return err
		}
		e.out.Printf("%s\n", e.out.StatusTable(report, e.session.Remote()))
		return nil
	},
}
