// Command iapctl validates receipts against the remote validator, inspects
// stored purchases and serves the validator webhook.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg    Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var envFile string

	cmd := &cobra.Command{
		Use:           "iapctl",
		Short:         "In-app purchase validation tooling",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			if err := env.Parse(&a.cfg); err != nil {
				return fmt.Errorf("parse config: %w", err)
			}
			a.logger = newLogger(a.cfg.Log)
			slog.SetDefault(a.logger)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(
		newValidateCommand(a),
		newPurchasesCommand(a),
		newCatalogCommand(a),
		newServeWebhookCommand(a),
	)
	return cmd
}
