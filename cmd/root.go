package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/brand-verifier/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "brand-verifier",
	Short: "Verify brand ownership against holding companies",
	Long:  "Reads brand/holding pairs from CSV or XLSX, asks a web-search LLM whether each brand belongs to its holding, scores the answer's sources and writes one verdict per row.",
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
