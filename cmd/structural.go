package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbansafe/evacroute/internal/structural"
)

var structuralCmd = &cobra.Command{
	Use:   "structural",
	Short: "Manage the structural-risk registry",
}

var structuralReplace bool

var structuralImportCmd = &cobra.Command{
	Use:   "import <inventory.xlsx>",
	Short: "Import per-edge building descriptors from an XLSX inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := structural.Open(ctx, cfg.Structural.Driver, cfg.Structural.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return err
		}

		descs, err := structural.ReadXLSX(args[0])
		if err != nil {
			return err
		}

		var n int64
		if structuralReplace {
			br, ok := store.(structural.BulkReplacer)
			if !ok {
				return eris.Errorf("driver %q has no bulk replace path", cfg.Structural.Driver)
			}
			n, err = br.ReplaceAll(ctx, descs)
		} else {
			n, err = store.UpsertDescriptors(ctx, descs)
		}
		if err != nil {
			return err
		}

		zap.L().Info("registry import complete",
			zap.String("path", args[0]),
			zap.Bool("replace", structuralReplace),
			zap.Int64("written", n),
		)
		return nil
	},
}

var structuralMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the registry schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := structural.Open(cmd.Context(), cfg.Structural.Driver, cfg.Structural.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Migrate(cmd.Context())
	},
}

func init() {
	structuralImportCmd.Flags().BoolVar(&structuralReplace, "replace", false,
		"truncate the registry and reload it with COPY (postgres only)")
	structuralCmd.AddCommand(structuralImportCmd)
	structuralCmd.AddCommand(structuralMigrateCmd)
	rootCmd.AddCommand(structuralCmd)
}
