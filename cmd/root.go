package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/laser-ci/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "laser-ci",
	Short: "Laser product spec extraction and competitive benchmarking",
	Long:  "Ingests vendor product pages and datasheets, extracts and normalizes laser specs into canonical snapshots, and reports spec changes and baseline comparisons.",
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
