package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"qa-portal/internal/config"
	"qa-portal/internal/store"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "qactl",
		Short:         "Operator tools for the QA documentation portal",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to app.yaml (default: search ./app.yaml)")

	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newHashPasswordCmd())
	return cmd
}

// openStore loads config and connects without touching the schema.
func openStore(ctx context.Context, opts *rootOptions) (*store.Store, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	s, err := store.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return s, nil
}
