package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridgeline-dev/conductor/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display the resolved configuration",
	Long: `Shows the configuration Conductor would use for this run,
after merging defaults, the user config at ~/.config/conductor, any
project-level .conductor.yaml, and CONDUCTOR_-prefixed environment
variables.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		display(cfg)
	},
}

func display(cfg *config.Config) {
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}
	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("catalog.path: %s\n", cfg.Catalog.Path)
	fmt.Printf("budget.daily_cap_usd: %.2f\n", cfg.Budget.DailyCapUSD)
	fmt.Printf("budget.ledger_path: %s\n", cfg.Budget.LedgerPath)
	fmt.Printf("heartbeat.wake_interval: %s\n", cfg.Heartbeat.WakeInterval)
	fmt.Printf("heartbeat.claim_freshness: %s\n", cfg.Heartbeat.ClaimFreshness)
	fmt.Printf("heartbeat.max_ci_attempts: %d\n", cfg.Heartbeat.MaxCIAttempts)
	fmt.Printf("worker.count: %d\n", cfg.Worker.Count)
	fmt.Printf("worker.max_iterations_per_feature: %d\n", cfg.Worker.MaxIterationsPerFeature)
	fmt.Printf("worker.integration_branch: %s\n", cfg.Worker.IntegrationBranch)
	fmt.Printf("notifier.kind: %s\n", cfg.Notifier.Kind)
	fmt.Printf("decision_channel.kind: %s\n", cfg.DecisionChannel.Kind)
	fmt.Printf("vcs.kind: %s\n", cfg.VCS.Kind)
}
