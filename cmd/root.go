// Package cmd holds the CLI entry points.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "atelier",
	Short: "Atelier - streaming multi-modal chat workbench",
	Long: `Atelier serves a streaming chat API with tool orchestration:
web search with automatic result review, page scraping, document
ingestion, audio transcription, and cited answers over SSE.

Running atelier without a subcommand starts the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: atelier.yaml in the working directory)")
}
