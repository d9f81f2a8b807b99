package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"qa-portal/internal/model"
)

const documentColumns = "id, activity_id, indicator_id, title, doc_type, file_url, gallery, uploaded_at"

func (s *Store) scanDocument(sc interface{ Scan(...any) error }) (model.Document, error) {
	var (
		d          model.Document
		activityID sql.NullInt64
		indicator  sql.NullInt64
		docType    string
		fileURL    sql.NullString
		gallery    any
		uploadedAt any
	)
	if err := sc.Scan(&d.ID, &activityID, &indicator, &d.Title, &docType, &fileURL, &gallery, &uploadedAt); err != nil {
		return d, err
	}
	d.ActivityID = nullableID(activityID)
	d.IndicatorID = nullableID(indicator)
	d.DocType = model.DocType(docType)
	d.FileURL = fileURL.String
	d.UploadedAt = scanTime(uploadedAt)
	// Non-album rows store NULL; every document still reports a gallery slice.
	g, err := s.Dialect.ScanArray(gallery)
	if err != nil {
		return d, err
	}
	d.Gallery = g
	return d, nil
}

// ListDocuments returns documents attached to any of the given indicators or
// activities, ordered by id.
func (s *Store) ListDocuments(ctx context.Context, q Querier, indicatorIDs, activityIDs []int64) ([]model.Document, error) {
	pb := s.Dialect.NewParamBuilder()
	byIndicator := s.Dialect.InIDs("indicator_id", pb, indicatorIDs)
	byActivity := s.Dialect.InIDs("activity_id", pb, activityIDs)
	rows, err := q.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE "+byIndicator+" OR "+byActivity+" ORDER BY id",
		pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		d, err := s.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) GetDocument(ctx context.Context, q Querier, id int64) (*model.Document, error) {
	d, err := s.scanDocument(q.QueryRowContext(ctx, s.q("SELECT "+documentColumns+" FROM documents WHERE id = $1"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", id, err)
	}
	return &d, nil
}

func (s *Store) galleryParam(g []string) any {
	if g == nil {
		return nil
	}
	return s.Dialect.ArrayParam(g)
}

// InsertDocument writes d and fills ID and UploadedAt.
func (s *Store) InsertDocument(ctx context.Context, q Querier, d *model.Document) error {
	id, err := s.insertReturningID(ctx, q,
		`INSERT INTO documents (activity_id, indicator_id, title, doc_type, file_url, gallery)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		idOrNil(d.ActivityID), idOrNil(d.IndicatorID), d.Title, string(d.DocType),
		textOrNil(d.FileURL), s.galleryParam(d.Gallery))
	if err != nil {
		return err
	}
	stored, err := s.GetDocument(ctx, q, id)
	if err != nil {
		return err
	}
	*d = *stored
	return nil
}

func (s *Store) UpdateDocumentTitle(ctx context.Context, q Querier, id int64, title string) error {
	n, err := s.exec(ctx, q, "UPDATE documents SET title = $1 WHERE id = $2", title, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateGallery persists an album's gallery and cover together.
// An empty cover clears file_url.
func (s *Store) UpdateGallery(ctx context.Context, q Querier, id int64, gallery []string, cover string) error {
	if gallery == nil {
		gallery = []string{}
	}
	n, err := s.exec(ctx, q, "UPDATE documents SET gallery = $1, file_url = $2 WHERE id = $3",
		s.Dialect.ArrayParam(gallery), textOrNil(cover), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, q Querier, id int64) error {
	n, err := s.exec(ctx, q, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
