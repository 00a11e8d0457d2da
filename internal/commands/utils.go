package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"gitflow/internal/config"
	"gitflow/internal/console"
	"gitflow/internal/flow"
	"gitflow/internal/git"
	"gitflow/internal/logging"
)

// env is everything a command needs for one invocation.
type env struct {
	cfg     *config.Config
	repo    *git.Repo
	session *flow.Session
	out     *console.Printer
}

// newEnv opens the repository containing the working directory, loads its
// configuration and wires a session.
func newEnv(cmd *cobra.Command) (*env, error) {
	ctx := cmd.Context()

	located, err := git.Open(ctx, ".", git.DefaultCommandTimeout, nil)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(located.Dir())
	if err != nil {
		return nil, err
	}
	classifier, err := classifierFor(cfg)
	if err != nil {
		return nil, err
	}
	repo, err := git.Open(ctx, located.Dir(), cfg.CommandTimeout(), classifier)
	if err != nil {
		return nil, err
	}

	out := console.NewPrinter(cmd.OutOrStdout())
	prs, err := pullRequester(ctx, cfg, repo)
	if err != nil {
		out.Warnf("Pull requests are unavailable: %v", err)
		prs = nil
	}

	increment, err := flow.ParseIncrement(cfg.Release.DefaultIncrement)
	if err != nil {
		return nil, err
	}

	session, err := flow.NewSession(ctx, flow.Options{
		Repo:         repo,
		Probe:        git.NewRemoteProbe(repo, cfg.ProbeTimeout()),
		PullRequests: prs,
		Prompt:       prompter(cmd),
		Out:          out,
		Remote:       cfg.Git.Remote,
		Branches: flow.Branches{
			Main:    cfg.Git.MainBranch,
			Develop: cfg.Git.DevelopBranch,
			Weekly:  cfg.Git.WeeklyBranch,
		},
		DefaultIncrement:  increment,
		DraftPullRequests: cfg.PullRequests.Draft,
	})
	if err != nil {
		return nil, err
	}
	logging.Logger.Debug("session ready", "dir", repo.Dir(), "remote", cfg.Git.Remote, "backend", cfg.PullRequests.Backend)
	return &env{cfg: cfg, repo: repo, session: session, out: out}, nil
}

// loadConfig honours --config, then gitflow.yml at the repository root.
func loadConfig(root string) (*config.Config, error) {
	if globalFlags.configPath != "" {
		return config.LoadConfigFile(globalFlags.configPath)
	}
	return config.LoadConfigFromDir(root)
}

// classifierFor extends the default failure markers with the configured ones.
func classifierFor(cfg *config.Config) (*git.Classifier, error) {
	kinds := make([]string, 0, len(cfg.Markers))
	for kind := range cfg.Markers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	var extra []git.Marker
	for _, name := range kinds {
		kind, ok := git.ParseFailureKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown failure kind in markers: %s", name)
		}
		for _, pattern := range cfg.Markers[name] {
			extra = append(extra, git.Marker{Kind: kind, Pattern: pattern})
		}
	}
	return git.NewClassifier(extra...), nil
}

func prompter(cmd *cobra.Command) flow.Prompter {
	if globalFlags.yes {
		return console.NewScripted()
	}
	return console.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
}

// pullRequester picks the pull request backend. "auto" uses the GitHub API
// when a token is set and the gh CLI otherwise.
func pullRequester(ctx context.Context, cfg *config.Config, repo *git.Repo) (git.PullRequester, error) {
	token := strings.TrimSpace(os.Getenv(cfg.PullRequests.TokenEnv))
	backend := cfg.PullRequests.Backend
	if backend == config.BackendAuto {
		backend = config.BackendGH
		if token != "" {
			backend = config.BackendAPI
		}
	}

	switch backend {
	case config.BackendGH:
		return git.NewGHCLI(repo.Dir(), cfg.CommandTimeout(), repo.Classifier()), nil
	case config.BackendAPI:
		if token == "" {
			return nil, fmt.Errorf("the api backend needs a token in $%s", cfg.PullRequests.TokenEnv)
		}
		remoteURL, err := repo.RemoteURL(ctx, cfg.Git.Remote)
		if err != nil {
			return nil, fmt.Errorf("failed to read URL of remote %s: %w", cfg.Git.Remote, err)
		}
		owner, name, err := git.ParseGitHubOwnerRepo(remoteURL)
		if err != nil {
			return nil, err
		}
		client, err := git.NewClient(ctx, token, cfg.PullRequests.GitHubURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
		return git.NewAPIPullRequester(client, owner, name, repo.Classifier()), nil
	}
	return nil, fmt.Errorf("unknown pull request backend %q", backend)
}

// reportOutcome prints the follow-up a partially failed outcome needs and
// returns its error.
func reportOutcome(out *console.Printer, what string, o flow.OperationOutcome) error {
	switch {
	case o.PendingPush && o.SideBranch != "":
		out.Warnf("Side branch %s exists only locally. Run 'gitflow push %s' when online.", o.SideBranch, o.SideBranch)
	case o.PendingPush:
		out.Warnf("Nothing was pushed. Run 'gitflow push' when online.")
	case o.SideBranch != "" && o.PullRequestURL != "":
		out.Infof("Changes are waiting in %s", o.PullRequestURL)
	}
	if o.Err != nil {
		return fmt.Errorf("%s: %w", what, o.Err)
	}
	return nil
}
