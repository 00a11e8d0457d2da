package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"

	"gitflow/internal/config"
	"gitflow/internal/git"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage gitflow configuration",
	Long:  `Create, show and query the gitflow.yml configuration of the current repository.`,
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a gitflow.yml with every default spelled out",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetOutput string

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get an effective configuration value by key.

Keys are paths into the merged config, separated by dots.
Examples: git.remote, git.main_branch, pull_requests.backend,
release.default_increment, markers.protected_branch

config_dir prints the directory the configuration was loaded from.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing gitflow.yml")
	configGetCmd.Flags().StringVar(&configGetOutput, "output", "text", "Output format: text or json")
	configCmd.AddCommand(configInitCmd, configShowCmd, configGetCmd)
}

// repoRoot returns the top level of the repository containing the working
// directory.
func repoRoot(cmd *cobra.Command) (string, error) {
	repo, err := git.Open(cmd.Context(), ".", git.DefaultCommandTimeout, nil)
	if err != nil {
		return "", err
	}
	return repo.Dir(), nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	root, err := repoRoot(cmd)
	if err != nil {
		return err
	}
	path := filepath.Join(root, config.FileName)
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.SaveConfigToDir(config.Default(), root); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return err
}

func effectiveConfig(cmd *cobra.Command) (*config.Config, error) {
	if globalFlags.configPath != "" {
		return config.LoadConfigFile(globalFlags.configPath)
	}
	root, err := repoRoot(cmd)
	if err != nil {
		return nil, err
	}
	return config.LoadConfigFromDir(root)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if configGetOutput != "text" && configGetOutput != "json" {
		return fmt.Errorf("invalid output format '%s': use 'text' or 'json'", configGetOutput)
	}
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}

	var value interface{}
	if args[0] == "config_dir" {
		value = cfg.ConfigDir
	} else if value, err = getPathValue(cfg, args[0]); err != nil {
		return err
	}
	return outputValue(cmd.OutOrStdout(), value, configGetOutput)
}

// getPathValue walks the YAML form of cfg along a dotted path.
func getPathValue(cfg *config.Config, pathStr string) (interface{}, error) {
	configBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	var current interface{}
	if err := yaml.Unmarshal(configBytes, &current); err != nil {
		return nil, fmt.Errorf("failed to deserialize config: %w", err)
	}

	segments := strings.Split(pathStr, ".")
	for i, segment := range segments {
		mp, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("path not found: '%s' (segment '%s' is not a map)", pathStr, strings.Join(segments[:i], "."))
		}
		value, exists := mp[segment]
		if !exists {
			return nil, fmt.Errorf("path not found: '%s' (key '%s' not found)", pathStr, strings.Join(segments[:i+1], "."))
		}
		current = value
	}
	return current, nil
}

func outputValue(w io.Writer, value interface{}, format string) error {
	if format == "json" {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			if _, err := fmt.Fprintln(w, item); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case nil:
		return nil
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}
