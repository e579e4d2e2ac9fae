package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/FNOLSimulator/internal/config"
	"github.com/AaronLay10/FNOLSimulator/internal/storage/redis"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [run-id]",
	Short: "Print a render snapshot stored in Redis",
	Long: `Prints the stored snapshot of the given run, or of the most recently
saved run when no id is given. With --list, prints the ids of all stored runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		password, err := config.ResolveSecret("REDIS_PASSWORD")
		if err != nil {
			return err
		}
		store := redis.New(cfg.Redis.Addr, password, cfg.Redis.DB)
		defer store.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if list, _ := cmd.Flags().GetBool("list"); list {
			ids, err := store.List(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		}

		var snap *redis.Snapshot
		if len(args) == 1 {
			snap, err = store.Load(ctx, args[0])
		} else {
			snap, err = store.Latest(ctx)
		}
		if errors.Is(err, redis.ErrSnapshotNotFound) {
			return errors.New("no snapshot stored")
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().Bool("list", false, "List stored run ids")
}
