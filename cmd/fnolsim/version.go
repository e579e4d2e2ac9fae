package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/FNOLSimulator/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of fnolsim",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fnolsim version %s\n", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
