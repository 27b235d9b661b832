package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridgeline-dev/conductor/internal/decision"
)

var decideAnswerer string

var decideCmd = &cobra.Command{
	Use:   "decide <decision-id> <answer>",
	Short: "Answer a pending decision",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := decision.New(".conductor/decisions", nil)
		if err != nil {
			return err
		}
		answerer := decideAnswerer
		if answerer == "" {
			answerer = os.Getenv("USER")
		}
		if err := q.Answer(args[0], args[1], answerer); err != nil {
			return err
		}
		fmt.Printf("recorded answer %q for %s\n", args[1], args[0])
		return nil
	},
}

func init() {
	decideCmd.Flags().StringVar(&decideAnswerer, "as", "", "name recorded as the answerer (defaults to $USER)")
}
