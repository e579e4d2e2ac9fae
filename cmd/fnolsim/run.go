package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/FNOLSimulator/internal/clock"
	"github.com/AaronLay10/FNOLSimulator/internal/events"
	"github.com/AaronLay10/FNOLSimulator/internal/presentation"
	"github.com/AaronLay10/FNOLSimulator/internal/simulator"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play the workflow headless and print the event log",
	Long: `Plays the workflow on the wall clock and prints each log entry and
revealed stage message as it happens, until the terminal stage completes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("speed") {
			cfg.Playback.Speed, _ = cmd.Flags().GetFloat64("speed")
		}
		logger, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		sim, err := buildSimulator(cfg, clock.NewReal(), logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return playHeadless(ctx, cmd, sim)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Float64("speed", 1, "Speed multiplier between 0.25 and 3")
}

// playHeadless plays sim to completion, printing as it goes.
func playHeadless(ctx context.Context, cmd *cobra.Command, sim *simulator.Simulator) error {
	out := cmd.OutOrStdout()
	labels := make(map[string]string)
	for _, s := range sim.Snapshot().Stages {
		labels[s.ID] = s.Label
	}

	bus := sim.Bus()
	sub := bus.Subscribe(256)
	defer bus.Unsubscribe(sub)

	if err := sim.Play(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			_ = sim.Pause()
			fmt.Fprintln(out, "interrupted")
			return nil

		case e, ok := <-sub:
			if !ok {
				return nil
			}
			switch e.Name {
			case events.LogAppended:
				fmt.Fprintln(out, formatLogEvent(e, labels))
			case events.MessageRevealed:
				fmt.Fprintf(out, "    > %v\n", e.Fields["message"])
			case events.SimulationCompleted:
				st := sim.Status()
				fmt.Fprintf(out, "complete: %d/%d stages in %.1fs\n", st.StagesDone, st.StagesTotal, st.ElapsedSeconds)
				return nil
			}
		}
	}
}

func formatLogEvent(e events.Event, labels map[string]string) string {
	ts, _ := time.Parse(time.RFC3339Nano, fmt.Sprint(e.Fields["ts"]))
	from, _ := e.Fields["from"].(string)
	to, _ := e.Fields["to"].(string)
	reason, _ := e.Fields["reason"].(string)

	line := presentation.LogLine{
		Timestamp: ts,
		From:      from,
		FromLabel: labels[from],
		To:        to,
		ToLabel:   labels[to],
		Reason:    reason,
	}
	if line.From == "" {
		return fmt.Sprintf("%s  %s (%s)", line.Timestamp.Local().Format("15:04:05.000"), line.ToLabel, line.Reason)
	}
	return fmt.Sprintf("%s  %s -> %s (%s)", line.Timestamp.Local().Format("15:04:05.000"), line.FromLabel, line.ToLabel, line.Reason)
}
