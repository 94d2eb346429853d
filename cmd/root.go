package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoload/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geoload",
	Short: "Load GeoJSON feature collections into PostGIS",
	Long: `Reads every GeoJSON FeatureCollection file in a directory, validates each
feature, drops any third coordinate dimension and writes the features to the
geo_features table. A bad file is reported and skipped; the others still load.`,
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
