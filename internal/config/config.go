// Package config provides configuration management for the gitflow tool.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up at the repository root.
const FileName = "gitflow.yml"

// Config represents the gitflow configuration structure.
type Config struct {
	Version      string              `yaml:"version"`
	Git          *GitConfig          `yaml:"git"`
	PullRequests *PullRequestConfig  `yaml:"pull_requests"`
	Release      ReleaseConfig       `yaml:"release"`
	Markers      map[string][]string `yaml:"markers"` // extra failure markers keyed by kind, e.g. protected_branch
	// ConfigDir is the absolute path to the directory containing gitflow.yml (set at load time; not persisted).
	ConfigDir string `yaml:"-"`
}

// GitConfig contains git-related settings.
type GitConfig struct {
	Remote         string `yaml:"remote"`          // default: "origin"
	MainBranch     string `yaml:"main_branch"`     // default: "main"
	DevelopBranch  string `yaml:"develop_branch"`  // default: "develop"
	WeeklyBranch   string `yaml:"weekly_branch"`   // default: "weekly-updates"
	CommandTimeout string `yaml:"command_timeout"` // default: "2m"
	ProbeTimeout   string `yaml:"probe_timeout"`   // default: "10s"
}

// PullRequestConfig selects how pull requests are opened.
type PullRequestConfig struct {
	Backend   string `yaml:"backend"`    // auto, gh, api (default: auto)
	Draft     bool   `yaml:"draft"`      // default: false
	GitHubURL string `yaml:"github_url"` // optional; for GitHub Enterprise
	TokenEnv  string `yaml:"token_env"`  // default: GITFLOW_GITHUB_TOKEN
}

// ReleaseConfig contains release-related settings.
type ReleaseConfig struct {
	DefaultIncrement string `yaml:"default_increment"` // major, minor, patch (default: patch)
}

// Pull request backends.
const (
	BackendAuto = "auto"
	BackendGH   = "gh"
	BackendAPI  = "api"
)

// ValidBackends lists the accepted pull_requests.backend values.
var ValidBackends = []string{BackendAuto, BackendGH, BackendAPI}

// ValidIncrements lists the accepted release.default_increment values.
var ValidIncrements = []string{"major", "minor", "patch"}

// DefaultConfig provides default configuration values.
var DefaultConfig = Config{
	Version: "1.0",
	Release: ReleaseConfig{
		DefaultIncrement: "patch",
	},
}

// LoadConfigFromDir loads gitflow.yml from dir, falling back to defaults when absent.
// ConfigDir is set to the absolute path of dir.
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, FileName)
	if _, err := os.Stat(configPath); err != nil {
		config := DefaultConfig
		mergeWithDefaults(&config)
		configDir, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config directory: %w", err)
		}
		config.ConfigDir = configDir
		return &config, nil
	}
	return LoadConfigFile(configPath)
}

// LoadConfigFile loads an explicit configuration file.
func LoadConfigFile(configPath string) (*Config, error) {
	cleanPath := filepath.Clean(configPath)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: %s", configPath)
	}

	// #nosec G304 - path has been validated above
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeWithDefaults(&config)
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	configDir, err := filepath.Abs(filepath.Dir(cleanPath))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}
	config.ConfigDir = configDir

	return &config, nil
}

// CommandTimeout returns git.command_timeout as a duration.
func (c *Config) CommandTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Git.CommandTimeout)
	return d
}

// ProbeTimeout returns git.probe_timeout as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Git.ProbeTimeout)
	return d
}

func validateConfig(config *Config) error {
	if err := validateGitConfig(config.Git); err != nil {
		return err
	}

	if !contains(ValidBackends, config.PullRequests.Backend) {
		return fmt.Errorf("invalid pull_requests.backend '%s': use one of: %s",
			config.PullRequests.Backend, strings.Join(ValidBackends, ", "))
	}

	if !contains(ValidIncrements, config.Release.DefaultIncrement) {
		return fmt.Errorf("invalid release.default_increment '%s': use one of: %s",
			config.Release.DefaultIncrement, strings.Join(ValidIncrements, ", "))
	}

	for kind, patterns := range config.Markers {
		if !contains(MarkerKinds, kind) {
			return fmt.Errorf("invalid markers key '%s': use one of: %s", kind, strings.Join(MarkerKinds, ", "))
		}
		for _, p := range patterns {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("markers.%s cannot contain empty patterns", kind)
			}
		}
	}

	return nil
}

// MarkerKinds lists the failure kinds that accept extra markers.
var MarkerKinds = []string{
	"protected_branch",
	"non_fast_forward",
	"merge_conflict",
	"remote_ref_missing",
	"not_fully_merged",
	"pull_request_exists",
	"no_commits_between",
}

func validateGitConfig(git *GitConfig) error {
	names := map[string]string{
		"main_branch":    git.MainBranch,
		"develop_branch": git.DevelopBranch,
		"weekly_branch":  git.WeeklyBranch,
	}
	for key, name := range names {
		if strings.ContainsAny(name, " \t~^:?*[\\") || strings.HasPrefix(name, "-") {
			return fmt.Errorf("invalid git.%s '%s': not a valid branch name", key, name)
		}
	}
	if git.MainBranch == git.DevelopBranch {
		return fmt.Errorf("git.main_branch and git.develop_branch must differ (both '%s')", git.MainBranch)
	}
	for key, value := range map[string]string{"command_timeout": git.CommandTimeout, "probe_timeout": git.ProbeTimeout} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid git.%s '%s': %w", key, value, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid git.%s '%s': must be positive", key, value)
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func mergeWithDefaults(config *Config) {
	if config.Version == "" {
		config.Version = DefaultConfig.Version
	}
	if config.Release.DefaultIncrement == "" {
		config.Release.DefaultIncrement = DefaultConfig.Release.DefaultIncrement
	}
	mergeGitDefaults(config)
	mergePullRequestDefaults(config)
}

func mergeGitDefaults(config *Config) {
	if config.Git == nil {
		config.Git = &GitConfig{}
	}
	if config.Git.Remote == "" {
		config.Git.Remote = "origin"
	}
	if config.Git.MainBranch == "" {
		config.Git.MainBranch = "main"
	}
	if config.Git.DevelopBranch == "" {
		config.Git.DevelopBranch = "develop"
	}
	if config.Git.WeeklyBranch == "" {
		config.Git.WeeklyBranch = "weekly-updates"
	}
	if config.Git.CommandTimeout == "" {
		config.Git.CommandTimeout = "2m"
	}
	if config.Git.ProbeTimeout == "" {
		config.Git.ProbeTimeout = "10s"
	}
}

func mergePullRequestDefaults(config *Config) {
	if config.PullRequests == nil {
		config.PullRequests = &PullRequestConfig{}
	}
	if config.PullRequests.Backend == "" {
		config.PullRequests.Backend = BackendAuto
	}
	if config.PullRequests.TokenEnv == "" {
		config.PullRequests.TokenEnv = "GITFLOW_GITHUB_TOKEN"
	}
}

// SaveConfigToDir writes the config to gitflow.yml in targetDir.
func SaveConfigToDir(config *Config, targetDir string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(targetDir, 0o700); err != nil {
		return fmt.Errorf("failed to ensure target directory: %w", err)
	}

	configPath := filepath.Join(targetDir, FileName)
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Default returns a fresh copy of the defaults with every field filled in.
func Default() *Config {
	config := DefaultConfig
	config.Git = nil
	config.PullRequests = nil
	mergeWithDefaults(&config)
	return &config
}
