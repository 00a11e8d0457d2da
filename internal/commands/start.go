package commands

import (
	"github.com/spf13/cobra"

	"gitflow/internal/flow"
)

// StartFlags holds all flags for the start command
type StartFlags struct {
	Type       string
	Week       int
	Increment  string
	Message    string
	Body       string
	SkipSwitch bool
}

var startFlags StartFlags

var startCmd = &cobra.Command{
	Use:   "start [name]",
	Short: "Start a feature, hotfix, release, local or backup branch",
	Long: `Creates a branch of the given type from its base branch and checks it out.

Base branches:
  feature, release, local  develop (pulled first when online)
  hotfix                   main (pulled first when online)
  backup, weekly           the current branch

Naming:
  feature/<name>, hotfix/<name> or hotfix/week-<year>-<week>, release/<name> or
  release/v<next version>, backup/<name>, and <name> for local branches.

Release branches get an annotated version tag locally; finish pushes it.
An existing branch of the same name is checked out instead of recreated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&startFlags.Type, "type", "t", string(flow.TypeLocal), "Branch type: local, hotfix, feature, release, weekly or backup")
	startCmd.Flags().IntVarP(&startFlags.Week, "week", "w", 0, "Calendar week for unnamed hotfix branches (default: current ISO week)")
	startCmd.Flags().StringVarP(&startFlags.Increment, "increment", "i", "", "Version increment for unnamed releases: major, minor or patch (default from config)")
	startCmd.Flags().StringVarP(&startFlags.Message, "message", "m", "", "Commit pending changes on the new branch with this message")
	startCmd.Flags().StringVarP(&startFlags.Body, "body", "b", "", "Body for the initial commit")
	startCmd.Flags().BoolVarP(&startFlags.SkipSwitch, "skip-switch", "s", false, "Branch from the current HEAD instead of the base branch")
}

func runStart(cmd *cobra.Command, args []string) error {
	spec, err := startSpec(startFlags, args)
	if err != nil {
		return err
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	rb, err := e.session.Start(cmd.Context(), spec, flow.StartOptions{
		Message:    startFlags.Message,
		Body:       startFlags.Body,
		SkipSwitch: startFlags.SkipSwitch,
	})
	if err != nil {
		return err
	}
	if rb.VersionTag != "" {
		e.out.Infof("Release %s will be tagged %s", rb.FullName, rb.VersionTag)
	}
	return nil
}

// startSpec validates the flags and arguments into a branch spec.
func startSpec(flags StartFlags, args []string) (flow.BranchSpec, error) {
	branchType, err := flow.ParseBranchType(flags.Type)
	if err != nil {
		return flow.BranchSpec{}, err
	}
	spec := flow.BranchSpec{Type: branchType, Week: flags.Week}
	if len(args) > 0 {
		spec.Name = args[0]
	}
	if flags.Increment != "" {
		if spec.Increment, err = flow.ParseIncrement(flags.Increment); err != nil {
			return flow.BranchSpec{}, err
		}
	}
	return spec, nil
}
