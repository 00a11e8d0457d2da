package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// These variables can be overridden via -ldflags at build time
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
	Dirty     = "clean"
)

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print the gitflow version and build info",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\nCommit: %s\nBuildDate: %s\nState: %s\n", Version, Commit, BuildDate, Dirty)
	},
}
