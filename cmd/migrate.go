package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atelier-ai/atelier/db"
	"github.com/atelier-ai/atelier/internal/config"
	"github.com/atelier-ai/atelier/internal/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger := log.New(log.Config{Level: log.ParseLevel(cfg.Log.Level), JSON: cfg.Log.JSON})
		return db.Migrate(cfg.PostgresDSN(), logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
