package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the portal tables (idempotent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Bootstrap(cmd.Context()); err != nil {
				return fmt.Errorf("bootstrap schema: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", s.Driver())
			return nil
		},
	}
}
