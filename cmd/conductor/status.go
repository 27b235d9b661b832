package main

import (
	"fmt"
	"os"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ridgeline-dev/conductor/internal/budget"
	"github.com/ridgeline-dev/conductor/internal/config"
	"github.com/ridgeline-dev/conductor/internal/decision"
	"github.com/ridgeline-dev/conductor/internal/heartbeat"
	"github.com/ridgeline-dev/conductor/internal/state"
	"github.com/ridgeline-dev/conductor/internal/tui"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show feature claim status",
	Long:  "Prints a one-shot summary by default; --watch opens a live terminal dashboard.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := state.Open(".conductor")
		if err != nil {
			return err
		}
		beacons := heartbeat.NewRegistry(".conductor/heartbeats")
		decisions, err := decision.New(".conductor/decisions", nil)
		if err != nil {
			return err
		}
		ledger, err := budget.Open(cfg.Budget.LedgerPath, budget.DefaultPrices, cfg.Budget.DailyCapUSD)
		if err != nil {
			return err
		}

		if statusWatch {
			m := tui.New(store, beacons, decisions, ledger, cfg.Budget.DailyCapUSD)
			p := tea.NewProgram(m)
			_, err := p.Run()
			return err
		}

		return printOnce(store, beacons)
	},
}

func printOnce(store *state.Store, beacons *heartbeat.Registry) error {
	doc, err := store.Snapshot()
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(doc.Features))
	for id := range doc.Features {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	for _, id := range ids {
		s := doc.Features[id]
		switch s.Status {
		case "completed":
			green.Printf("%-20s %s\n", id, s.Status)
		case "blocked":
			red.Printf("%-20s %s (%s)\n", id, s.Status, s.BlockedReason)
		case "in_progress":
			yellow.Printf("%-20s %s (owner=%s)\n", id, s.Status, s.ClaimedBy)
		default:
			fmt.Fprintf(os.Stdout, "%-20s %s\n", id, s.Status)
		}
	}
	return nil
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "open a live terminal dashboard")
}
