package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridgeline-dev/conductor/internal/catalog"
	"github.com/ridgeline-dev/conductor/internal/config"
)

var initDryRun bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Validate the catalog and prepare the state directory",
	Long: `Loads the feature catalog, checks it for unknown dependency
ids and cycles, and (unless --dry-run is set) creates the state
directory structure a run will need. It never touches an existing
state document.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		fmt.Printf("catalog OK: %d features, %d integration test sets\n", len(cat.Features), len(cat.IntegrationTests))

		if initDryRun {
			return nil
		}

		for _, dir := range []string{
			".conductor",
			".conductor/heartbeats",
			".conductor/decisions",
			".conductor/logs",
		} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("init: %w", err)
			}
		}
		fmt.Println("state directory ready at .conductor")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initDryRun, "dry-run", false, "validate the catalog without creating state directories")
}
