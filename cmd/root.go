package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openrepro/repro-audit/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "repro-audit",
	Short: "Manuscript reporting-compliance analysis pipeline",
	Long:  "Extracts manuscript metadata, checks the text against a reporting checklist item by item via Claude, and summarizes the verdicts.",
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
