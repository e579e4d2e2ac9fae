package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/FNOLSimulator/internal/clock"
	"github.com/AaronLay10/FNOLSimulator/internal/config"
	"github.com/AaronLay10/FNOLSimulator/internal/logging"
	"github.com/AaronLay10/FNOLSimulator/internal/messages"
	"github.com/AaronLay10/FNOLSimulator/internal/simulator"
	"github.com/AaronLay10/FNOLSimulator/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "fnolsim",
	Short: "FNOL claim workflow playback simulator",
	Long: `fnolsim animates a First Notice of Loss claim through its processing
stages, either headless on the terminal or behind an operator console.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to simulator.yaml")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("template", "", "Workflow template file (defaults to the built-in FNOL workflow)")
	rootCmd.PersistentFlags().String("case", "", "Case status file whose messages are streamed per stage")
}

// loadConfig reads the configuration and applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.SimulatorConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("template"); v != "" {
		cfg.Workflow.Template = v
	}
	if v, _ := cmd.Flags().GetString("case"); v != "" {
		cfg.Workflow.Case = v
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.SimulatorConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithWriter(cmd.ErrOrStderr(), level, cfg.Log.Format), nil
}

func loadGraph(cfg *config.SimulatorConfig) (*workflow.Graph, error) {
	if cfg.Workflow.Template == "" {
		return workflow.Default()
	}
	g, err := workflow.LoadFile(cfg.Workflow.Template)
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", cfg.Workflow.Template, err)
	}
	return g, nil
}

// buildSimulator assembles a simulator from the configuration.
func buildSimulator(cfg *config.SimulatorConfig, clk clock.Clock, logger *slog.Logger) (*simulator.Simulator, error) {
	g, err := loadGraph(cfg)
	if err != nil {
		return nil, err
	}

	sim, err := simulator.New(g, simulator.Options{
		Clock:           clk,
		Logger:          logger,
		Policy:          cfg.Workflow.Policy,
		Speed:           cfg.Playback.Speed,
		TransitionDelay: cfg.TransitionDelay(),
		TickInterval:    cfg.TickInterval(),
		MessageCadence:  cfg.MessageCadence(),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Workflow.Case != "" {
		rec, err := messages.LoadCaseFile(cfg.Workflow.Case)
		if err != nil {
			return nil, fmt.Errorf("load case %s: %w", cfg.Workflow.Case, err)
		}
		sim.LoadCase(rec)
	}
	if cfg.Playback.LockLayout {
		sim.LockLayout(true)
	}
	return sim, nil
}
