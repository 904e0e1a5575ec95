package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbansafe/evacroute/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "evacroute",
	Short: "Dynamic risk-weighted evacuation route engine",
	Long:  "Computes walking routes to the nearest safe zone over a risk-weighted road network and keeps per-evacuee sessions fresh as seismic, hazard, and crowd conditions change.",
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
