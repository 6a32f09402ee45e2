package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/laurakrama/DAG2024/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "redd",
	Short: "REDD+ eligibility of rural properties",
	Long:  "Computes the APD and AUD areas of CAR properties from their boundary, Legal Reserve and native vegetation layers, and filters the deforestation catalog of the municipality.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
