// Package config loads Conductor's configuration from XDG paths,
// project overrides, and environment variables, matching the
// defaults-then-user-then-project-then-env precedence the rest of the
// corpus uses.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every option SPEC_FULL.md §9.3 names.
type Config struct {
	Anthropic       AnthropicConfig       `mapstructure:"anthropic"`
	Catalog         CatalogConfig         `mapstructure:"catalog"`
	Budget          BudgetConfig          `mapstructure:"budget"`
	Heartbeat       HeartbeatConfig       `mapstructure:"heartbeat"`
	Worker          WorkerConfig          `mapstructure:"worker"`
	Notifier        NotifierConfig        `mapstructure:"notifier"`
	DecisionChannel DecisionChannelConfig `mapstructure:"decision_channel"`
	VCS             VCSConfig             `mapstructure:"vcs"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type BudgetConfig struct {
	DailyCapUSD   float64 `mapstructure:"daily_cap_usd"`
	PricePerInput float64 `mapstructure:"price_per_input_token"`
	PricePerOutput float64 `mapstructure:"price_per_output_token"`
	LedgerPath    string  `mapstructure:"ledger_path"`
}

type HeartbeatConfig struct {
	WakeInterval   time.Duration `mapstructure:"wake_interval"`
	ClaimFreshness time.Duration `mapstructure:"claim_freshness"`
	MaxCIAttempts  int           `mapstructure:"max_ci_attempts"`
	BudgetCoolDown time.Duration `mapstructure:"budget_cool_down"`
	BeaconDir      string        `mapstructure:"beacon_dir"`
}

type WorkerConfig struct {
	Count                   int           `mapstructure:"count"`
	MaxIterationsPerFeature int           `mapstructure:"max_iterations_per_feature"`
	SleepBetweenPolls       time.Duration `mapstructure:"sleep_between_polls"`
	DecisionTimeout         time.Duration `mapstructure:"decision_timeout"`
	IntegrationBranch       string        `mapstructure:"integration_branch"`
	RepoPath                string        `mapstructure:"repo_path"`
}

// NotifierConfig selects which Notifier sink is wired up. kind is one
// of "noop" or "log"; richer sinks are out of scope.
type NotifierConfig struct {
	Kind    string `mapstructure:"kind"`
	LogPath string `mapstructure:"log_path"`
}

// DecisionChannelConfig holds the decision_channel settings. `conductor
// config` prints Kind, but no command reads Kind or Dir: the commands use
// .conductor/decisions, and the decision queue always tries its
// fsnotify-backed watcher.
type DecisionChannelConfig struct {
	Kind string `mapstructure:"kind"`
	Dir  string `mapstructure:"dir"`
}

type VCSConfig struct {
	Kind string `mapstructure:"kind"` // "git" or "null"
}

const envPrefix = "CONDUCTOR"

// Load reads configuration from XDG paths, a project-local override,
// and environment variables, in ascending precedence.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading user config: %w", err)
		}
	}

	if projectPath := findProjectConfig(); projectPath != "" {
		pv := viper.New()
		pv.SetConfigFile(projectPath)
		if err := pv.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
				return nil, fmt.Errorf("config: merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	if cfg.Anthropic.APIKey == "" {
		cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")

	v.SetDefault("catalog.path", "conductor.catalog.yaml")

	v.SetDefault("budget.daily_cap_usd", 25.0)
	v.SetDefault("budget.price_per_input_token", 0.000003)
	v.SetDefault("budget.price_per_output_token", 0.000015)
	v.SetDefault("budget.ledger_path", ".conductor/cost-ledger.csv")

	v.SetDefault("heartbeat.wake_interval", "60s")
	v.SetDefault("heartbeat.claim_freshness", "10m")
	v.SetDefault("heartbeat.max_ci_attempts", 3)
	v.SetDefault("heartbeat.budget_cool_down", "5m")
	v.SetDefault("heartbeat.beacon_dir", ".conductor/heartbeats")

	v.SetDefault("worker.count", 3)
	v.SetDefault("worker.max_iterations_per_feature", 10)
	v.SetDefault("worker.sleep_between_polls", "5s")
	v.SetDefault("worker.decision_timeout", "1h")
	v.SetDefault("worker.integration_branch", "main")
	v.SetDefault("worker.repo_path", ".")

	v.SetDefault("notifier.kind", "log")
	v.SetDefault("notifier.log_path", ".conductor/logs/notify.log")

	v.SetDefault("decision_channel.kind", "filedrop")
	v.SetDefault("decision_channel.dir", ".conductor/decisions")

	v.SetDefault("vcs.kind", "git")
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "conductor")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "conductor")
	}
	return filepath.Join(home, ".config", "conductor")
}

func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		p := filepath.Join(cwd, ".conductor.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}

// GetUserConfigPath returns where the user-level config file lives.
func GetUserConfigPath() string {
	return filepath.Join(userConfigDir(), "config.yaml")
}
