package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-portal/internal/config"
	"qa-portal/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := New(ctx, config.DatabaseConfig{Driver: "sqlite", Path: t.TempDir(), Name: "test"})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))
	return s
}

// seedIndicator creates standard "1" with one indicator and returns the indicator id.
func seedIndicator(t *testing.T, s *Store, code string) int64 {
	t.Helper()
	res, err := s.Seed(context.Background(), []SeedStandard{{
		Code: "1", Name: "คุณภาพของผู้เรียน",
		Indicators: []SeedIndicator{{Code: code, Name: "indicator " + code}},
	}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Indicators)

	inds, err := s.ListIndicators(context.Background(), s.DB, nil)
	require.NoError(t, err)
	for _, ind := range inds {
		if ind.Code == code {
			return ind.ID
		}
	}
	t.Fatalf("indicator %s not seeded", code)
	return 0
}

func TestBootstrap_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Bootstrap(context.Background()))
}

func TestSeed_UpsertKeepsIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []SeedStandard{{Code: "1", Name: "first", Indicators: []SeedIndicator{{Code: "1.1", Name: "a"}}}}
	_, err := s.Seed(ctx, seed)
	require.NoError(t, err)
	before, err := s.ListStandards(ctx, s.DB)
	require.NoError(t, err)

	seed[0].Name = "renamed"
	_, err = s.Seed(ctx, seed)
	require.NoError(t, err)
	after, err := s.ListStandards(ctx, s.DB)
	require.NoError(t, err)

	require.Len(t, after, 1)
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, "renamed", after[0].Name)
}

func TestInsertTopic_AppendsAtEnd(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ind := seedIndicator(t, s, "1.1")

	for i, title := range []string{"ด้านคุณภาพผู้เรียน", "second", "third"} {
		tp := &model.Topic{IndicatorID: ind, Title: title}
		require.NoError(t, s.InsertTopic(ctx, s.DB, tp))
		assert.Equal(t, i+1, tp.OrderIndex)
		assert.NotZero(t, tp.ID)
	}

	got, err := s.GetTopic(ctx, s.DB, 1)
	require.NoError(t, err)
	assert.Equal(t, "ด้านคุณภาพผู้เรียน", got.Title)
	assert.Equal(t, "", got.Description)
}

func TestInsertInTx_LocksParentAndAppends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ind := seedIndicator(t, s, "1.1")

	require.NoError(t, s.LockParent(ctx, s.DB, model.SiblingKey{Kind: "topic", ParentID: 999}))

	var topics []*model.Topic
	for _, title := range []string{"a", "b", "c"} {
		tp := &model.Topic{IndicatorID: ind, Title: title}
		require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
			return s.InsertTopic(ctx, tx, tp)
		}))
		topics = append(topics, tp)
	}
	act := &model.Activity{IndicatorID: ind, TopicID: &topics[0].ID, Title: "x"}
	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		return s.InsertActivity(ctx, tx, act)
	}))

	for i, tp := range topics {
		assert.Equal(t, i+1, tp.OrderIndex)
	}
	assert.Equal(t, 1, act.OrderIndex)
}

func TestNextOrderIndex_UsesMaxWhenGapped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ind := seedIndicator(t, s, "1.1")

	_, err := s.DB.ExecContext(ctx, "INSERT INTO topics (indicator_id, title, order_index) VALUES (?1, 'x', 7)", ind)
	require.NoError(t, err)

	pos, err := s.NextOrderIndex(ctx, s.DB, model.SiblingKey{Kind: "topic", ParentID: ind})
	require.NoError(t, err)
	assert.Equal(t, 8, pos)
}

func TestActivitySiblingLists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ind := seedIndicator(t, s, "1.1")

	tp := &model.Topic{IndicatorID: ind, Title: "topic"}
	require.NoError(t, s.InsertTopic(ctx, s.DB, tp))

	under := &model.Activity{IndicatorID: ind, TopicID: &tp.ID, Title: "under topic"}
	require.NoError(t, s.InsertActivity(ctx, s.DB, under))
	loose := &model.Activity{IndicatorID: ind, Title: "no topic"}
	require.NoError(t, s.InsertActivity(ctx, s.DB, loose))

	// Separate lists: both start at 1.
	assert.Equal(t, 1, under.OrderIndex)
	assert.Equal(t, 1, loose.OrderIndex)

	ids, err := s.SiblingIDs(ctx, s.DB, model.ActivitySiblings(loose))
	require.NoError(t, err)
	assert.Equal(t, []int64{loose.ID}, ids)

	got, err := s.GetActivity(ctx, s.DB, under.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TopicID)
	assert.Equal(t, tp.ID, *got.TopicID)
}

func TestRewriteOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ind := seedIndicator(t, s, "1.1")

	var ids []int64
	for _, title := range []string{"a", "b", "c"} {
		a := &model.Activity{IndicatorID: ind, Title: title}
		require.NoError(t, s.InsertActivity(ctx, s.DB, a))
		ids = append(ids, a.ID)
	}

	reordered := []int64{ids[2], ids[0], ids[1]}
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		return s.RewriteOrder(ctx, tx, "activity", reordered)
	})
	require.NoError(t, err)

	got, err := s.SiblingIDs(ctx, s.DB, model.SiblingKey{Kind: "activity", ParentID: ind})
	require.NoError(t, err)
	assert.Equal(t, reordered, got)
}

func TestDeleteActivity_CompactsAndCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ind := seedIndicator(t, s, "1.1")

	var acts []*model.Activity
	for _, title := range []string{"a", "b", "c"} {
		a := &model.Activity{IndicatorID: ind, Title: title}
		require.NoError(t, s.InsertActivity(ctx, s.DB, a))
		acts = append(acts, a)
	}
	doc := &model.Document{ActivityID: &acts[0].ID, IndicatorID: &ind, Title: "link", DocType: model.DocLink, FileURL: "https://example.com"}
	require.NoError(t, s.InsertDocument(ctx, s.DB, doc))

	deleted, err := s.DeleteActivity(ctx, acts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "a", deleted.Title)

	_, err = s.GetDocument(ctx, s.DB, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	b, err := s.GetActivity(ctx, s.DB, acts[1].ID)
	require.NoError(t, err)
	c, err := s.GetActivity(ctx, s.DB, acts[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, b.OrderIndex)
	assert.Equal(t, 2, c.OrderIndex)

	_, err = s.DeleteActivity(ctx, acts[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTopic_CascadesToActivities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ind := seedIndicator(t, s, "1.1")

	tp := &model.Topic{IndicatorID: ind, Title: "topic"}
	require.NoError(t, s.InsertTopic(ctx, s.DB, tp))
	a := &model.Activity{IndicatorID: ind, TopicID: &tp.ID, Title: "act"}
	require.NoError(t, s.InsertActivity(ctx, s.DB, a))

	_, err := s.DeleteTopic(ctx, tp.ID)
	require.NoError(t, err)

	_, err = s.GetActivity(ctx, s.DB, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertTopic_UnknownIndicator(t *testing.T) {
	s := newTestStore(t)
	err := s.InsertTopic(context.Background(), s.DB, &model.Topic{IndicatorID: 999, Title: "orphan"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForeignKey), "got %v", err)
}

func TestDocuments_GalleryAndCover(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ind := seedIndicator(t, s, "1.1")

	gallery := []string{"/files/img-0.jpg", "/files/img-1.jpg", "/files/img-2.jpg"}
	doc := &model.Document{IndicatorID: &ind, Title: "album", DocType: model.DocAlbum, FileURL: gallery[0], Gallery: gallery}
	require.NoError(t, s.InsertDocument(ctx, s.DB, doc))
	assert.Equal(t, gallery, doc.Gallery)
	assert.False(t, doc.UploadedAt.IsZero())

	require.NoError(t, s.UpdateGallery(ctx, s.DB, doc.ID, nil, ""))
	got, err := s.GetDocument(ctx, s.DB, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.Gallery)
	assert.Equal(t, "", got.FileURL)

	link := &model.Document{IndicatorID: &ind, Title: "link", DocType: model.DocLink, FileURL: "https://example.com"}
	require.NoError(t, s.InsertDocument(ctx, s.DB, link))
	require.NotNil(t, link.Gallery)
	assert.Empty(t, link.Gallery)

	docs, err := s.ListDocuments(ctx, s.DB, []int64{ind}, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestRefreshTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rt, err := s.InsertRefreshToken(ctx, s.DB, "admin", time.Hour)
	require.NoError(t, err)

	got, err := s.GetRefreshToken(ctx, s.DB, rt.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Subject)
	assert.WithinDuration(t, rt.ExpiresAt, got.ExpiresAt, time.Second)

	n, err := s.DeleteExpiredRefreshTokens(ctx, s.DB, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetRefreshToken(ctx, s.DB, rt.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := int64(3)

	require.NoError(t, s.InsertEvents(ctx, s.DB, []Event{
		{Action: "create", Entity: "topic", RecordID: &id},
		{Action: "delete", Entity: "document", Metadata: `{"title":"x"}`},
	}))

	events, err := s.ListEvents(ctx, s.DB, "", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "delete", events[0].Action)
	assert.Nil(t, events[0].RecordID)

	topicEvents, err := s.ListEvents(ctx, s.DB, "topic", 10)
	require.NoError(t, err)
	require.Len(t, topicEvents, 1)
	assert.Equal(t, id, *topicEvents[0].RecordID)

	n, err := s.DeleteEventsOlderThan(ctx, s.DB, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
