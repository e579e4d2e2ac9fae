package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/FNOLSimulator/internal/orchestrator"
	"github.com/AaronLay10/FNOLSimulator/internal/storage/postgres"
	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs stored in Postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		pg, err := postgres.New(cmd.Context())
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pg.Close()

		runs, err := pg.Runs(cmd.Context(), limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tCASE\tSTARTED\tENTRIES")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", r.RunID, r.CaseID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Entries)
		}
		return w.Flush()
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <run-id>",
	Short: "Rebuild a stored run from its event log",
	Long: `Reads the event log of a run from Postgres, replays it against the
workflow and prints the log with the resulting stage statuses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		g, err := loadGraph(cfg)
		if err != nil {
			return err
		}

		pg, err := postgres.New(cmd.Context())
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pg.Close()

		entries, err := pg.Entries(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("run %s not found", args[0])
		}
		state, err := orchestrator.Replay(g, entries)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		labels := make(map[string]string, len(g.Stages))
		for _, s := range g.Stages {
			labels[s.ID] = s.Label
		}
		for _, e := range entries {
			if e.IsStart() {
				fmt.Fprintf(out, "%s  %s (%s)\n", e.Timestamp.Local().Format("15:04:05.000"), labels[e.ToStageID], e.Reason)
				continue
			}
			fmt.Fprintf(out, "%s  %s -> %s (%s)\n", e.Timestamp.Local().Format("15:04:05.000"),
				labels[e.FromStageID], labels[e.ToStageID], e.Reason)
		}

		done := 0
		for _, st := range state.Statuses {
			if st == workflow.StatusDone {
				done++
			}
		}
		fmt.Fprintf(out, "\nrun %s: %d/%d stages done, %d transitions", args[0], done, len(g.Stages), state.Transitions)
		if state.Complete {
			fmt.Fprintln(out, ", complete")
		} else {
			fmt.Fprintf(out, ", stopped at %s\n", labels[state.CurrentStageID])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(replayCmd)
	runsCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
}
