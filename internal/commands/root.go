// Package commands implements the CLI commands for the gitflow tool.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gitflow/internal/flow"
	"gitflow/internal/logging"
)

// globalFlags are bound to the root command's persistent flags.
var globalFlags struct {
	debug      bool
	debugFile  string
	configPath string
	yes        bool
}

var rootCmd = &cobra.Command{
	Use:   "gitflow",
	Short: "Git-flow branch lifecycle automation",
	Long: `gitflow automates a git-flow branching model: feature, hotfix, release,
weekly, local and backup branches on top of git and GitHub.

Branches are started from the right base, finished through pull requests, and
pushes to protected branches are rerouted through side branches automatically.
Without network access every command degrades to local-only work.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initLogging,
}

func initLogging(_ *cobra.Command, _ []string) error {
	path, err := logging.Initialize(globalFlags.debug, globalFlags.debugFile)
	if err != nil {
		return err
	}
	if path != "" {
		fmt.Fprintf(os.Stderr, "Debug log: %s\n", path)
	}
	return nil
}

// Execute runs the root command and returns any error encountered.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx. A user abort is reported and
// treated as success; other errors are printed before being returned.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, flow.ErrUserAbort):
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Operation aborted")
		return nil
	default:
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&globalFlags.debug, "debug", false, "Write debug logs (also enabled by GITFLOW_DEBUG=1)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.debugFile, "debug-file", "", "Debug log file (default: $GITFLOW_DEBUG_FILE or gitflow-debug.log in the temp dir)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.configPath, "config", "", "Path to gitflow.yml (default: repository root)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.yes, "yes", "y", false, "Never prompt; pick safe defaults (stash, pull and rebase, resolve later)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(finishCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(weeklyUpdateCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(continueMergeCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(stashCmd)
	rootCmd.AddCommand(unstashCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(configCmd)
}
