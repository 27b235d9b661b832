package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridgeline-dev/conductor/internal/catalog"
	"github.com/ridgeline-dev/conductor/internal/config"
	"github.com/ridgeline-dev/conductor/internal/merge"
	"github.com/ridgeline-dev/conductor/internal/state"
)

var mergePlanOut string

var mergePlanCmd = &cobra.Command{
	Use:   "merge-plan",
	Short: "Compute and render the merge order for completed features",
	Long: `Runs Kahn's algorithm over the completed-feature subgraph and
renders a Markdown merge plan. Fails with the residual cyclic vertices
if the completed set contains a dependency cycle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		store, err := state.Open(".conductor")
		if err != nil {
			return err
		}
		doc, err := store.Snapshot()
		if err != nil {
			return err
		}

		order, err := merge.Plan(cat, doc)
		if err != nil {
			return err
		}
		rendered := merge.RenderDocument(order, doc)

		if mergePlanOut == "" {
			fmt.Print(rendered)
			return nil
		}
		return os.WriteFile(mergePlanOut, []byte(rendered), 0o644)
	},
}

func init() {
	mergePlanCmd.Flags().StringVar(&mergePlanOut, "out", "", "write the plan to a file instead of stdout")
}
