package db

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionSweeper deletes admin sessions that have expired.
type SessionSweeper interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

func sweepOnce(ctx context.Context, s SessionSweeper, log logrus.FieldLogger) {
	n, err := s.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		log.WithError(err).Warn("session cleanup failed")
		return
	}
	if n > 0 {
		log.WithField("deleted", n).Info("expired admin sessions removed")
	}
}

// StartSessionCleanupWorker sweeps expired admin sessions once at startup
// and then on every tick of interval, until ctx is cancelled.
func StartSessionCleanupWorker(ctx context.Context, s SessionSweeper, interval time.Duration, log logrus.FieldLogger) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		sweepOnce(ctx, s, log)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepOnce(ctx, s, log)
			}
		}
	}()
}
