package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"qa-portal/internal/model"
)

// ListStandards returns every standard ordered by id.
func (s *Store) ListStandards(ctx context.Context, q Querier) ([]model.Standard, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, code, name FROM standards ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list standards: %w", err)
	}
	defer rows.Close()

	var out []model.Standard
	for rows.Next() {
		var st model.Standard
		if err := rows.Scan(&st.ID, &st.Code, &st.Name); err != nil {
			return nil, fmt.Errorf("scan standard: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) GetStandard(ctx context.Context, q Querier, id int64) (*model.Standard, error) {
	var st model.Standard
	err := q.QueryRowContext(ctx, s.q("SELECT id, code, name FROM standards WHERE id = $1"), id).
		Scan(&st.ID, &st.Code, &st.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get standard %d: %w", id, err)
	}
	return &st, nil
}

// UpsertStandard inserts a standard or renames the existing one with the same code.
func (s *Store) UpsertStandard(ctx context.Context, q Querier, code, name string) (int64, error) {
	return s.insertReturningID(ctx, q,
		`INSERT INTO standards (code, name) VALUES ($1, $2)
		 ON CONFLICT (code) DO UPDATE SET name = excluded.name
		 RETURNING id`, code, name)
}

// ListIndicators returns indicators ordered by id. A nil standardID lists all.
func (s *Store) ListIndicators(ctx context.Context, q Querier, standardID *int64) ([]model.Indicator, error) {
	query := "SELECT id, standard_id, code, name FROM indicators"
	var args []any
	if standardID != nil {
		query += " WHERE standard_id = $1"
		args = append(args, *standardID)
	}
	query += " ORDER BY id"

	rows, err := q.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list indicators: %w", err)
	}
	defer rows.Close()

	var out []model.Indicator
	for rows.Next() {
		var ind model.Indicator
		if err := rows.Scan(&ind.ID, &ind.StandardID, &ind.Code, &ind.Name); err != nil {
			return nil, fmt.Errorf("scan indicator: %w", err)
		}
		out = append(out, ind)
	}
	return out, rows.Err()
}

func (s *Store) GetIndicator(ctx context.Context, q Querier, id int64) (*model.Indicator, error) {
	var ind model.Indicator
	err := q.QueryRowContext(ctx, s.q("SELECT id, standard_id, code, name FROM indicators WHERE id = $1"), id).
		Scan(&ind.ID, &ind.StandardID, &ind.Code, &ind.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get indicator %d: %w", id, err)
	}
	return &ind, nil
}

// UpsertIndicator inserts an indicator or renames the existing one with the same code.
func (s *Store) UpsertIndicator(ctx context.Context, q Querier, standardID int64, code, name string) (int64, error) {
	return s.insertReturningID(ctx, q,
		`INSERT INTO indicators (standard_id, code, name) VALUES ($1, $2, $3)
		 ON CONFLICT (standard_id, code) DO UPDATE SET name = excluded.name
		 RETURNING id`, standardID, code, name)
}
