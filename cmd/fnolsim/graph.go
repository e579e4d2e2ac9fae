package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/FNOLSimulator/internal/clock"
	"github.com/AaronLay10/FNOLSimulator/internal/logging"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow as a Mermaid diagram",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sim, err := buildSimulator(cfg, clock.NewReal(), logging.NewNop())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), sim.Mermaid())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
