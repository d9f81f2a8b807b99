package instrument

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"qa-portal/internal/store"
)

// CleanupOldEvents deletes events older than retentionDays from the _events table.
func CleanupOldEvents(ctx context.Context, s *store.Store, log *logrus.Logger, retentionDays int) {
	n, err := s.DeleteEventsOlderThan(ctx, s.DB, retentionDays)
	if err != nil {
		log.WithError(err).Error("event cleanup")
		return
	}
	if n > 0 {
		log.WithField("deleted", n).Info("event cleanup: deleted old events")
	}
}

// RunPeriodic calls fn every interval until ctx is done.
func RunPeriodic(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
