package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/middle-housing/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "middle-housing",
	Short: "Classify building permits into middle-housing categories",
	Long: "Loads permit exports (CSV or XLSX, local, HTTP or FTP), classifies each permit as " +
		"ULS, DADU, AADU, TOWNHOME, MULTIPLEX, NEW_SFR or EXCLUDED, and renders tables, exports and maps.",
	SilenceUsage: true,
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
