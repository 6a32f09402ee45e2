package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/laurakrama/DAG2024/internal/loader"
)

var (
	importLayer string
	importTable string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy a file layer into a PostGIS table",
	Long:  "Reads the configured file source of one layer and replaces the contents of a PostGIS table with it, so later runs can point layers.<name>.table at the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Store.DatabaseURL == "" {
			return eris.New("store database URL is required (REDD_STORE_DATABASE_URL)")
		}
		src, ok := cfg.Layers.Source(importLayer)
		if !ok {
			return eris.Errorf("unknown layer %q", importLayer)
		}
		if src.Path == "" {
			return eris.Errorf("layer %s has no file source to import", importLayer)
		}

		l, err := loader.LoadLayer(ctx, importLayer, cfg.Layers, loader.Options{})
		if err != nil {
			return err
		}

		pool, err := connectStore(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "connect layer store")
		}
		defer pool.Close()

		table := importTable
		if table == "" {
			table = importLayer
		}
		n, err := loader.ImportLayer(ctx, pool, table, cfg.Layers.KeyField, l)
		if err != nil {
			return eris.Wrap(err, "import layer")
		}

		zap.L().Info("import complete",
			zap.String("layer", importLayer),
			zap.String("table", table),
			zap.Int64("rows", n),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importLayer, "layer", "", "layer name: area_imovel, reserva_legal, vegetacao_nativa, desmatamento or municipio (required)")
	importCmd.Flags().StringVar(&importTable, "table", "", "target table, optionally schema-qualified (default: layer name)")
	_ = importCmd.MarkFlagRequired("layer")
	rootCmd.AddCommand(importCmd)
}
