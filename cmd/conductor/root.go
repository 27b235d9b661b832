package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Autonomous multi-agent feature orchestrator",
	Long: `Conductor claims features from a static catalog, drives an
external builder against them under a dependency-aware schedule, and
plans the merge order of completed work (see merge-plan).

Workers coordinate purely through files on disk: a single state
document, per-worker heartbeat beacons, an append-only cost ledger, and
decision records for human-in-the-loop questions. No shared memory and
no database are required, so any number of worker processes on the
same machine can cooperate safely.`,
}

func checkGitCLI() error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git not found in PATH\n\nConductor shells out to git for branch management and merging.")
	}
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(decisionsCmd)
	rootCmd.AddCommand(mergePlanCmd)
	rootCmd.AddCommand(configCmd)
}
