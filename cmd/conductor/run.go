package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/ridgeline-dev/conductor/internal/budget"
	"github.com/ridgeline-dev/conductor/internal/builder"
	"github.com/ridgeline-dev/conductor/internal/config"
	"github.com/ridgeline-dev/conductor/internal/logging"
	"github.com/ridgeline-dev/conductor/internal/notify"
	"github.com/ridgeline-dev/conductor/internal/orchestrator"
	"github.com/ridgeline-dev/conductor/internal/vcs"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestrator until the feature backlog drains",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		log, err := logging.Open(cfg.Notifier.LogPath)
		if err != nil {
			return err
		}
		defer log.Close()

		sink := buildSink(cfg, log)
		build, err := buildBuilder(cfg, runDryRun)
		if err != nil {
			return err
		}
		repo := buildVCS(cfg, runDryRun)

		orch := orchestrator.New(
			orchestrator.RequiredConfig{
				RepoPath:    cfg.Worker.RepoPath,
				StateDir:    ".conductor",
				CatalogPath: cfg.Catalog.Path,
			},
			orchestrator.WithWorkerCount(cfg.Worker.Count),
			orchestrator.WithMaxIterationsPerFeature(cfg.Worker.MaxIterationsPerFeature),
			orchestrator.WithSleepBetweenPolls(cfg.Worker.SleepBetweenPolls),
			orchestrator.WithDecisionTimeout(cfg.Worker.DecisionTimeout),
			orchestrator.WithIntegrationBranch(cfg.Worker.IntegrationBranch),
			orchestrator.WithDailyCap(cfg.Budget.DailyCapUSD),
			orchestrator.WithPrices(budget.PricePerToken{
				Input:  cfg.Budget.PricePerInput,
				Output: cfg.Budget.PricePerOutput,
			}),
			orchestrator.WithLedgerPath(cfg.Budget.LedgerPath),
			orchestrator.WithBuilder(build),
			orchestrator.WithVCS(repo),
			orchestrator.WithNotifier(sink),
			orchestrator.WithLogger(log),
		)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		report, err := orch.Run(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("completed: %d\n", len(report.Completed))
		if len(report.Blocked) > 0 {
			fmt.Printf("blocked, needs attention:\n")
			for _, s := range report.Blocked {
				fmt.Printf("  %s: %s\n", s.ID, s.BlockedReason)
			}
		}
		return nil
	},
}

func buildSink(cfg *config.Config, log *logging.Logger) notify.Sink {
	switch cfg.Notifier.Kind {
	case "log":
		return notify.NewLogSink(log)
	default:
		return notify.NoOp{}
	}
}

func buildBuilder(cfg *config.Config, dryRun bool) (builder.Builder, error) {
	if dryRun {
		return builder.Null{}, nil
	}
	return builder.NewAnthropicBuilder(builder.AnthropicConfig{
		APIKey: cfg.Anthropic.APIKey,
		Model:  anthropic.Model(cfg.Anthropic.Model),
	})
}

func buildVCS(cfg *config.Config, dryRun bool) vcs.VCS {
	if dryRun || cfg.VCS.Kind == "null" {
		return vcs.Null{}
	}
	return vcs.NewGit(cfg.Worker.RepoPath, cfg.Worker.IntegrationBranch)
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "use no-op builder and VCS collaborators")
}
