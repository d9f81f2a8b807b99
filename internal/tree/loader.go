package tree

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"qa-portal/internal/model"
	"qa-portal/internal/store"
)

// ErrUnavailable is returned when a read fails and no earlier snapshot exists.
var ErrUnavailable = errors.New("hierarchy unavailable")

// Reader issues one query per hierarchy level.
type Reader interface {
	Standards(ctx context.Context) ([]model.Standard, error)
	Standard(ctx context.Context, id int64) (*model.Standard, error)
	Indicators(ctx context.Context, standardID *int64) ([]model.Indicator, error)
	Topics(ctx context.Context, indicatorIDs []int64) ([]model.Topic, error)
	Activities(ctx context.Context, indicatorIDs []int64) ([]model.Activity, error)
	Documents(ctx context.Context, indicatorIDs, activityIDs []int64) ([]model.Document, error)
}

type storeReader struct{ s *store.Store }

// FromStore adapts a Store into a Reader.
func FromStore(s *store.Store) Reader { return storeReader{s: s} }

func (r storeReader) Standards(ctx context.Context) ([]model.Standard, error) {
	return r.s.ListStandards(ctx, r.s.DB)
}

func (r storeReader) Standard(ctx context.Context, id int64) (*model.Standard, error) {
	return r.s.GetStandard(ctx, r.s.DB, id)
}

func (r storeReader) Indicators(ctx context.Context, standardID *int64) ([]model.Indicator, error) {
	return r.s.ListIndicators(ctx, r.s.DB, standardID)
}

func (r storeReader) Topics(ctx context.Context, ids []int64) ([]model.Topic, error) {
	return r.s.ListTopics(ctx, r.s.DB, ids)
}

func (r storeReader) Activities(ctx context.Context, ids []int64) ([]model.Activity, error) {
	return r.s.ListActivities(ctx, r.s.DB, ids)
}

func (r storeReader) Documents(ctx context.Context, indicatorIDs, activityIDs []int64) ([]model.Document, error) {
	return r.s.ListDocuments(ctx, r.s.DB, indicatorIDs, activityIDs)
}

// Loader reads and shapes the hierarchy, keeping the last good snapshot per
// (scope, shape) to serve when a later read fails.
type Loader struct {
	reader Reader
	log    *logrus.Entry
	now    func() time.Time

	mu   sync.Mutex
	last map[string]*Snapshot
}

func NewLoader(r Reader, log *logrus.Logger) *Loader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loader{
		reader: r,
		log:    log.WithField("component", "tree"),
		now:    time.Now,
		last:   make(map[string]*Snapshot),
	}
}

// Load returns the whole hierarchy (standardID nil) or one standard's subtree.
// An unknown standard yields store.ErrNotFound.
func (l *Loader) Load(ctx context.Context, standardID *int64, shape Shape) (*Snapshot, error) {
	key := "all/" + shape.String()
	if standardID != nil {
		key = strconv.FormatInt(*standardID, 10) + "/" + shape.String()
	}

	rows, err := l.read(ctx, standardID, shape)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		l.mu.Lock()
		prev := l.last[key]
		l.mu.Unlock()

		l.log.WithError(err).WithField("scope", key).Warn("hierarchy read failed")
		if prev == nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		stale := *prev
		stale.Stale = true
		return &stale, nil
	}

	snap := &Snapshot{
		Standards: Build(rows, shape),
		Shape:     shape.String(),
		LoadedAt:  l.now().UTC(),
	}
	l.mu.Lock()
	l.last[key] = snap
	l.mu.Unlock()
	return snap, nil
}

func (l *Loader) read(ctx context.Context, standardID *int64, shape Shape) (Rows, error) {
	var (
		rows Rows
		err  error
	)
	if standardID != nil {
		st, err := l.reader.Standard(ctx, *standardID)
		if err != nil {
			return rows, err
		}
		rows.Standards = []model.Standard{*st}
	} else if rows.Standards, err = l.reader.Standards(ctx); err != nil {
		return rows, fmt.Errorf("standards: %w", err)
	}

	if rows.Indicators, err = l.reader.Indicators(ctx, standardID); err != nil {
		return rows, fmt.Errorf("indicators: %w", err)
	}
	indicatorIDs := make([]int64, len(rows.Indicators))
	for i, ind := range rows.Indicators {
		indicatorIDs[i] = ind.ID
	}

	if shape.Topics {
		if rows.Topics, err = l.reader.Topics(ctx, indicatorIDs); err != nil {
			return rows, fmt.Errorf("topics: %w", err)
		}
	}
	// Activities are always read: documents hang off them in every shape.
	if rows.Activities, err = l.reader.Activities(ctx, indicatorIDs); err != nil {
		return rows, fmt.Errorf("activities: %w", err)
	}
	activityIDs := make([]int64, len(rows.Activities))
	for i, a := range rows.Activities {
		activityIDs[i] = a.ID
	}

	if rows.Documents, err = l.reader.Documents(ctx, indicatorIDs, activityIDs); err != nil {
		return rows, fmt.Errorf("documents: %w", err)
	}
	return rows, nil
}
