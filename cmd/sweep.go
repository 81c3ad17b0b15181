package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Nemiok/gde-deshevle/internal/model"
)

var sweepStores []string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one ingestion sweep and exit",
	Long:  "Fetches, matches, and persists prices for the selected stores sequentially, then prints per-store run statistics as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stores := sweepStores
		if len(stores) == 0 {
			stores = cfg.Sources.Enabled
		}

		stats, err := env.Orchestrator.RunSweep(ctx, stores)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			return err
		}

		if n := failures(stats); n > 0 {
			return eris.Errorf("%d of %d store runs failed", n, len(stats))
		}
		return nil
	},
}

func failures(stats []model.RunStats) int {
	var n int
	for _, s := range stats {
		if s.Err != "" {
			n++
		}
	}
	return n
}

func init() {
	sweepCmd.Flags().StringSliceVar(&sweepStores, "stores", nil,
		"store slugs to sweep (default: sources.enabled from config)")
	rootCmd.AddCommand(sweepCmd)
}
