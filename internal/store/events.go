package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Event is one audit trail row.
type Event struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	RecordID  *int64    `json:"record_id"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertEvents writes a batch of events with one multi-row INSERT.
func (s *Store) InsertEvents(ctx context.Context, q Querier, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	pb := s.Dialect.NewParamBuilder()
	query := "INSERT INTO _events (action, entity, record_id, metadata) VALUES "
	for i, e := range events {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("(%s, %s, %s, %s)",
			pb.Add(e.Action), pb.Add(e.Entity), pb.Add(idOrNil(e.RecordID)), pb.Add(textOrNil(e.Metadata)))
	}
	if _, err := q.ExecContext(ctx, query, pb.Params()...); err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first.
func (s *Store) ListEvents(ctx context.Context, q Querier, entity string, limit int) ([]Event, error) {
	pb := s.Dialect.NewParamBuilder()
	query := "SELECT id, action, entity, record_id, metadata, created_at FROM _events"
	if entity != "" {
		query += " WHERE entity = " + pb.Add(entity)
	}
	query += " ORDER BY id DESC LIMIT " + pb.Add(limit)

	rows, err := q.QueryContext(ctx, query, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e         Event
			recordID  sql.NullInt64
			metadata  sql.NullString
			createdAt any
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Entity, &recordID, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.RecordID = nullableID(recordID)
		e.Metadata = metadata.String
		e.CreatedAt = scanTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEventsOlderThan removes events older than the given number of days.
func (s *Store) DeleteEventsOlderThan(ctx context.Context, q Querier, days int) (int64, error) {
	pb := s.Dialect.NewParamBuilder()
	where := s.Dialect.IntervalDeleteExpr("created_at", pb, strconv.Itoa(days))
	return Exec(ctx, q, "DELETE FROM _events WHERE "+where, pb.Params()...)
}
