package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"qa-portal/internal/store"
)

type seedFile struct {
	Standards []store.SeedStandard `yaml:"standards"`
}

func parseSeed(r io.Reader) ([]store.SeedStandard, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	seen := make(map[string]bool, len(f.Standards))
	for _, st := range f.Standards {
		if st.Code == "" || st.Name == "" {
			return nil, fmt.Errorf("standard %q: code and name are required", st.Code)
		}
		if seen[st.Code] {
			return nil, fmt.Errorf("standard %q listed twice", st.Code)
		}
		seen[st.Code] = true
		for _, ind := range st.Indicators {
			if ind.Code == "" || ind.Name == "" {
				return nil, fmt.Errorf("standard %s: indicator %q needs code and name", st.Code, ind.Code)
			}
		}
	}
	return f.Standards, nil
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the fixed standards and indicators from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			standards, err := parseSeed(f)
			if err != nil {
				return err
			}

			s, err := openStore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Bootstrap(cmd.Context()); err != nil {
				return fmt.Errorf("bootstrap schema: %w", err)
			}
			res, err := s.Seed(cmd.Context(), standards)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d standards, %d indicators\n", res.Standards, res.Indicators)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "standards.yaml", "Seed file")
	return cmd
}
