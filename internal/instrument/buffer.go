package instrument

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"qa-portal/internal/store"
)

// EventBuffer collects audit events in memory and periodically flushes them
// to the _events table in a batch insert.
type EventBuffer struct {
	mu      sync.Mutex
	events  []store.Event
	store   *store.Store
	log     *logrus.Entry
	maxSize int
	ticker  *time.Ticker
	done    chan struct{}
	stopped sync.Once
}

// NewEventBuffer creates a buffer that flushes on a timer or when full.
func NewEventBuffer(s *store.Store, log *logrus.Logger, maxSize int, flushInterval time.Duration) *EventBuffer {
	if maxSize <= 0 {
		maxSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	eb := &EventBuffer{
		store:   s,
		log:     log.WithField("component", "audit"),
		maxSize: maxSize,
		done:    make(chan struct{}),
		ticker:  time.NewTicker(flushInterval),
	}
	go eb.run()
	return eb
}

func (eb *EventBuffer) run() {
	for {
		select {
		case <-eb.done:
			return
		case <-eb.ticker.C:
			eb.Flush()
		}
	}
}

// Record enqueues one event. Metadata is stored as JSON along with the trace ID.
func (eb *EventBuffer) Record(ctx context.Context, action, entity string, recordID int64, metadata map[string]any) {
	if traceID := GetTraceID(ctx); traceID != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["trace_id"] = traceID
	}
	e := store.Event{Action: action, Entity: entity}
	if recordID > 0 {
		e.RecordID = &recordID
	}
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err == nil {
			e.Metadata = string(b)
		}
	}
	eb.Enqueue(e)
}

// Enqueue adds an event to the buffer. If the buffer is full, a flush
// is triggered asynchronously.
func (eb *EventBuffer) Enqueue(event store.Event) {
	eb.mu.Lock()
	eb.events = append(eb.events, event)
	shouldFlush := len(eb.events) >= eb.maxSize
	eb.mu.Unlock()
	if shouldFlush {
		go eb.Flush()
	}
}

// Flush writes all buffered events to the database in a single batch insert.
func (eb *EventBuffer) Flush() {
	eb.mu.Lock()
	if len(eb.events) == 0 {
		eb.mu.Unlock()
		return
	}
	batch := eb.events
	eb.events = nil
	eb.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eb.store.InsertEvents(ctx, eb.store.DB, batch); err != nil {
		eb.log.WithError(err).WithField("events", len(batch)).Error("flush audit events")
	}
}

// Stop halts the background ticker and flushes remaining events.
func (eb *EventBuffer) Stop() {
	eb.stopped.Do(func() {
		eb.ticker.Stop()
		close(eb.done)
		eb.Flush()
	})
}
