package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Bootstrap creates the portal schema. It is idempotent.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.SchemaSQL()); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	return nil
}

// SeedIndicator is one indicator entry of a seed file.
type SeedIndicator struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// SeedStandard is one standard entry of a seed file.
type SeedStandard struct {
	Code       string          `yaml:"code"`
	Name       string          `yaml:"name"`
	Indicators []SeedIndicator `yaml:"indicators"`
}

// SeedResult counts rows written by Seed.
type SeedResult struct {
	Standards  int
	Indicators int
}

// Seed upserts the fixed standards and indicators in one transaction.
// Existing rows keep their ids; names are refreshed.
func (s *Store) Seed(ctx context.Context, standards []SeedStandard) (SeedResult, error) {
	var res SeedResult
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, st := range standards {
			sid, err := s.UpsertStandard(ctx, tx, st.Code, st.Name)
			if err != nil {
				return fmt.Errorf("standard %s: %w", st.Code, err)
			}
			res.Standards++
			for _, ind := range st.Indicators {
				if _, err := s.UpsertIndicator(ctx, tx, sid, ind.Code, ind.Name); err != nil {
					return fmt.Errorf("indicator %s: %w", ind.Code, err)
				}
				res.Indicators++
			}
		}
		return nil
	})
	return res, err
}
