package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atelier-ai/atelier/api"
	"github.com/atelier-ai/atelier/internal/app"
	"github.com/atelier-ai/atelier/internal/config"
	"github.com/atelier-ai/atelier/internal/log"
)

var serveNoStorage bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoStorage, "no-storage", false, "run without PostgreSQL conversation storage")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	})
	logger.Info("starting atelier", "version", Version, "config", cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Setup(ctx, cfg, logger, app.Options{SkipStorage: serveNoStorage})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	deps := api.Deps{
		Runner:       a.Orchestrator,
		Pipeline:     a.Pipeline,
		Transcriber:  a.Transcriber,
		Models:       cfg.Models,
		DefaultModel: cfg.DefaultModel,
		Logger:       logger,
	}
	if a.Store != nil {
		deps.Store = a.Store
		deps.Titler = a.Titler
		deps.Pinger = a.Pool
	}

	return api.NewServer(deps).Run(ctx, cfg.Addr)
}
