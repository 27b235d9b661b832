package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ridgeline-dev/conductor/internal/decision"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "List pending decisions awaiting a human answer",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := decision.New(".conductor/decisions", nil)
		if err != nil {
			return err
		}
		pending, err := q.Pending()
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("no pending decisions")
			return nil
		}
		for _, d := range pending {
			fmt.Printf("%s  feature=%s worker=%s\n  %s\n  options: %v\n\n", d.ID, d.RequestingFeature, d.RequestingWorker, d.Question, d.Options)
		}
		return nil
	},
}
