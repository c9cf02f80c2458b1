package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fieldmap-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fieldmap",
	Short: "Field measurement and land-unit conversion",
	Long:  "Measures distances, areas and perimeters on WGS84 coordinates, converts areas between m², hectares and alqueires, and exports the collection.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		mode := "cli"
		if cmd.Name() == "serve" {
			mode = "serve"
		}
		if err := c.Validate(mode); err != nil {
			return fmt.Errorf("validate config: %w", err)
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
