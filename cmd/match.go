package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Nemiok/gde-deshevle/internal/catalog"
	"github.com/Nemiok/gde-deshevle/internal/db"
	"github.com/Nemiok/gde-deshevle/internal/matching"
	"github.com/Nemiok/gde-deshevle/internal/model"
)

var matchCmd = &cobra.Command{
	Use:   "match <listing name>",
	Short: "Score a raw listing name against the canonical catalog",
	Long:  "Debugging aid: shows how a store listing name normalizes and which canonical product it would match at the configured threshold.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := strings.Join(args, " ")

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

		products, err := catalog.LoadProducts(ctx, pool)
		if err != nil {
			return err
		}
		candidates := matching.PrepareCatalog(products)
		matcher := matching.NewMatcher(cfg.Match.Threshold)

		result := matcher.Match(model.RawListing{Name: name, Price: 1}, candidates)

		out := struct {
			Input      string  `json:"input"`
			Normalized string  `json:"normalized"`
			Matched    bool    `json:"matched"`
			ProductID  int64   `json:"product_id,omitempty"`
			Product    string  `json:"product,omitempty"`
			Score      float64 `json:"score"`
			Threshold  float64 `json:"threshold"`
		}{
			Input:      name,
			Normalized: matching.Normalize(name),
			Matched:    result.Matched,
			ProductID:  result.ProductID,
			Score:      result.Score,
			Threshold:  cfg.Match.Threshold,
		}
		for _, p := range products {
			if p.ID == result.ProductID {
				out.Product = p.Name
				break
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
}
