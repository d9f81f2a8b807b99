package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"qa-portal/internal/model"
)

const (
	topicColumns    = "id, indicator_id, title, description, order_index"
	activityColumns = "id, indicator_id, topic_id, title, description, order_index"
)

func scanTopic(sc interface{ Scan(...any) error }) (model.Topic, error) {
	var (
		t    model.Topic
		desc sql.NullString
	)
	if err := sc.Scan(&t.ID, &t.IndicatorID, &t.Title, &desc, &t.OrderIndex); err != nil {
		return t, err
	}
	t.Description = desc.String
	return t, nil
}

func scanActivity(sc interface{ Scan(...any) error }) (model.Activity, error) {
	var (
		a     model.Activity
		topic sql.NullInt64
		desc  sql.NullString
	)
	if err := sc.Scan(&a.ID, &a.IndicatorID, &topic, &a.Title, &desc, &a.OrderIndex); err != nil {
		return a, err
	}
	a.TopicID = nullableID(topic)
	a.Description = desc.String
	return a, nil
}

// ListTopics returns topics belonging to the given indicators.
func (s *Store) ListTopics(ctx context.Context, q Querier, indicatorIDs []int64) ([]model.Topic, error) {
	pb := s.Dialect.NewParamBuilder()
	where := s.Dialect.InIDs("indicator_id", pb, indicatorIDs)
	rows, err := q.QueryContext(ctx,
		"SELECT "+topicColumns+" FROM topics WHERE "+where+" ORDER BY id", pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var out []model.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTopic(ctx context.Context, q Querier, id int64) (*model.Topic, error) {
	t, err := scanTopic(q.QueryRowContext(ctx, s.q("SELECT "+topicColumns+" FROM topics WHERE id = $1"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get topic %d: %w", id, err)
	}
	return &t, nil
}

// InsertTopic appends t to its indicator's topic list and fills ID and OrderIndex.
func (s *Store) InsertTopic(ctx context.Context, q Querier, t *model.Topic) error {
	key := model.TopicSiblings(t)
	if err := s.LockParent(ctx, q, key); err != nil {
		return err
	}
	pos, err := s.NextOrderIndex(ctx, q, key)
	if err != nil {
		return err
	}
	id, err := s.insertReturningID(ctx, q,
		"INSERT INTO topics (indicator_id, title, description, order_index) VALUES ($1, $2, $3, $4) RETURNING id",
		t.IndicatorID, t.Title, textOrNil(t.Description), pos)
	if err != nil {
		return err
	}
	t.ID, t.OrderIndex = id, pos
	return nil
}

func (s *Store) UpdateTopic(ctx context.Context, q Querier, id int64, title, description string) error {
	n, err := s.exec(ctx, q, "UPDATE topics SET title = $1, description = $2 WHERE id = $3",
		title, textOrNil(description), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActivities returns activities belonging to the given indicators,
// with or without a topic.
func (s *Store) ListActivities(ctx context.Context, q Querier, indicatorIDs []int64) ([]model.Activity, error) {
	pb := s.Dialect.NewParamBuilder()
	where := s.Dialect.InIDs("indicator_id", pb, indicatorIDs)
	rows, err := q.QueryContext(ctx,
		"SELECT "+activityColumns+" FROM activities WHERE "+where+" ORDER BY id", pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetActivity(ctx context.Context, q Querier, id int64) (*model.Activity, error) {
	a, err := scanActivity(q.QueryRowContext(ctx, s.q("SELECT "+activityColumns+" FROM activities WHERE id = $1"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get activity %d: %w", id, err)
	}
	return &a, nil
}

// InsertActivity appends a to its sibling list and fills ID and OrderIndex.
func (s *Store) InsertActivity(ctx context.Context, q Querier, a *model.Activity) error {
	key := model.ActivitySiblings(a)
	if err := s.LockParent(ctx, q, key); err != nil {
		return err
	}
	pos, err := s.NextOrderIndex(ctx, q, key)
	if err != nil {
		return err
	}
	id, err := s.insertReturningID(ctx, q,
		`INSERT INTO activities (indicator_id, topic_id, title, description, order_index)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		a.IndicatorID, idOrNil(a.TopicID), a.Title, textOrNil(a.Description), pos)
	if err != nil {
		return err
	}
	a.ID, a.OrderIndex = id, pos
	return nil
}

func (s *Store) UpdateActivity(ctx context.Context, q Querier, id int64, title, description string) error {
	n, err := s.exec(ctx, q, "UPDATE activities SET title = $1, description = $2 WHERE id = $3",
		title, textOrNil(description), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- sibling lists ---

func siblingTable(kind string) (string, error) {
	switch kind {
	case "topic":
		return "topics", nil
	case "activity":
		return "activities", nil
	}
	return "", fmt.Errorf("unknown sibling kind %q", kind)
}

func siblingWhere(key model.SiblingKey) string {
	switch {
	case key.Kind == "topic":
		return "indicator_id = $1"
	case key.ByTopic:
		return "topic_id = $1"
	default:
		return "indicator_id = $1 AND topic_id IS NULL"
	}
}

// lockParentQuery selects the row owning a sibling list, or "" when the
// dialect has no row locks.
func lockParentQuery(d Dialect, key model.SiblingKey) string {
	clause := d.RowLockClause()
	if clause == "" {
		return ""
	}
	parent := "indicators"
	if key.ByTopic {
		parent = "topics"
	}
	return "SELECT id FROM " + parent + " WHERE id = $1 " + clause
}

// LockParent holds the parent indicator or topic row until q commits, so
// concurrent inserts into the same sibling list take positions one at a time.
func (s *Store) LockParent(ctx context.Context, q Querier, key model.SiblingKey) error {
	query := lockParentQuery(s.Dialect, key)
	if query == "" {
		return nil
	}
	var id int64
	err := q.QueryRowContext(ctx, s.q(query), key.ParentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// NextOrderIndex returns the position for a new last sibling: one past the
// larger of the sibling count and the highest stored position.
func (s *Store) NextOrderIndex(ctx context.Context, q Querier, key model.SiblingKey) (int, error) {
	table, err := siblingTable(key.Kind)
	if err != nil {
		return 0, err
	}
	var count, maxPos int
	err = q.QueryRowContext(ctx,
		s.q("SELECT COUNT(*), COALESCE(MAX(order_index), 0) FROM "+table+" WHERE "+siblingWhere(key)),
		key.ParentID).Scan(&count, &maxPos)
	if err != nil {
		return 0, fmt.Errorf("next order index %s: %w", key, err)
	}
	return max(count, maxPos) + 1, nil
}

// SiblingIDs returns the ids of one sibling list in display order.
func (s *Store) SiblingIDs(ctx context.Context, q Querier, key model.SiblingKey) ([]int64, error) {
	table, err := siblingTable(key.Kind)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx,
		s.q("SELECT id FROM "+table+" WHERE "+siblingWhere(key)+" ORDER BY COALESCE(order_index, 0), id"),
		key.ParentID)
	if err != nil {
		return nil, fmt.Errorf("list siblings %s: %w", key, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sibling: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RewriteOrder sets order_index = 1..N following ids, one row at a time.
func (s *Store) RewriteOrder(ctx context.Context, q Querier, kind string, ids []int64) error {
	table, err := siblingTable(kind)
	if err != nil {
		return err
	}
	query := s.q("UPDATE " + table + " SET order_index = $1 WHERE id = $2")
	for i, id := range ids {
		if _, err := q.ExecContext(ctx, query, i+1, id); err != nil {
			return fmt.Errorf("rewrite order %s %d: %w", kind, id, err)
		}
	}
	return nil
}

// CompactOrder renumbers a sibling list to 1..N keeping its display order.
func (s *Store) CompactOrder(ctx context.Context, q Querier, key model.SiblingKey) error {
	ids, err := s.SiblingIDs(ctx, q, key)
	if err != nil {
		return err
	}
	return s.RewriteOrder(ctx, q, key.Kind, ids)
}

// DeleteTopic removes a topic (its activities and their documents cascade)
// and compacts the remaining topics of the indicator.
func (s *Store) DeleteTopic(ctx context.Context, id int64) (*model.Topic, error) {
	var deleted *model.Topic
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		t, err := s.GetTopic(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, "DELETE FROM topics WHERE id = $1", id); err != nil {
			return err
		}
		deleted = t
		return s.CompactOrder(ctx, tx, model.TopicSiblings(t))
	})
	return deleted, err
}

// DeleteActivity removes an activity (its documents cascade) and compacts
// the remaining siblings.
func (s *Store) DeleteActivity(ctx context.Context, id int64) (*model.Activity, error) {
	var deleted *model.Activity
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		a, err := s.GetActivity(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, "DELETE FROM activities WHERE id = $1", id); err != nil {
			return err
		}
		deleted = a
		return s.CompactOrder(ctx, tx, model.ActivitySiblings(a))
	})
	return deleted, err
}
