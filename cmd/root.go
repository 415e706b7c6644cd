package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/profiler-cli/internal/config"
)

var cfg *config.Config

// version is stamped by the release build via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "profiler-cli",
	Short:   "Discovery profile builder for healthcare organizations",
	Long:    "Aggregates place-directory listings, regulatory quality data, and press coverage for a named healthcare organization into one discovery profile: resolved identity, review themes, and rule-based risks and opportunities.",
	Version: version,
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
