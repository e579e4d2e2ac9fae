package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/FNOLSimulator/internal/messages"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the workflow template and case file",
	Long: `Loads the workflow template, rejecting duplicate stages, dangling
transitions and cycles, and parses the case file if one is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		g, err := loadGraph(cfg)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "workflow ok: %d stages, %d transitions\n", len(g.Stages), len(g.Transitions))

		if cfg.Workflow.Case == "" {
			return nil
		}
		rec, err := messages.LoadCaseFile(cfg.Workflow.Case)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		loaded := messages.Load(rec)
		total := 0
		for _, msgs := range loaded {
			total += len(msgs)
		}
		fmt.Fprintf(out, "case ok: %s (%s), %d messages across %d stages\n",
			rec.ClaimID, rec.Outcome(), total, len(loaded))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
