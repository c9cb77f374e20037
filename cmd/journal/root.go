package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tradejournal/journal-engine/internal/app"
	"github.com/tradejournal/journal-engine/internal/config"
	"github.com/tradejournal/journal-engine/internal/logger"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
	jsonMode   bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Options trading journal",
		Long: `Track option trades per ticker and expiration, classify the open strategy
after every execution, and report realized profit, win rate and return on
collateral.

Configuration is read from --config (YAML), then .env, then the environment.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			lc := cfg.LogConfig()
			lc.Output = cmd.ErrOrStderr()
			if err := logger.InitWithConfig(lc); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.cfg = cfg
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Shutdown(context.Background())
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("JOURNAL_CONFIG"), "Path to YAML config")
	cmd.PersistentFlags().BoolVar(&opts.jsonMode, "json", false, "Output in JSON format")

	cmd.AddCommand(newIngestCmd(opts))
	cmd.AddCommand(newReportCmd(opts))
	cmd.AddCommand(newTradesCmd(opts))
	return cmd
}

// open builds the journal from the loaded configuration.
func (o *rootOptions) open(ctx context.Context) (*app.App, error) {
	journal, err := app.New(ctx, o.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return journal, nil
}
