package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Nemiok/gde-deshevle/internal/db"
	"github.com/Nemiok/gde-deshevle/internal/pricestore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and seed the store registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Store.DatabaseURL == "" {
			return eris.New("store.database_url is required (GDE_STORE_DATABASE_URL)")
		}
		pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL, db.PoolOptions{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pricestore.New(pool).Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("schema applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
