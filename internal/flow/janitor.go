package flow

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically deletes drafts idle for longer than ttl. Stores with native
// expiry (Redis) do not need one.
type Janitor struct {
	purger   Purger
	log      *zap.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewJanitor(purger Purger, log *zap.Logger, ttl, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{purger: purger, log: log, ttl: ttl, interval: interval, now: time.Now}
}

// Run purges once immediately and then on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.purge(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.purge(ctx)
		}
	}
}

func (j *Janitor) purge(ctx context.Context) {
	n, err := j.purger.PurgeExpired(ctx, j.now().Add(-j.ttl))
	if err != nil {
		if ctx.Err() == nil {
			j.log.Error("failed to purge expired drafts", zap.Error(err))
		}
		return
	}
	if n > 0 {
		j.log.Info("purged expired drafts", zap.Int64("count", n))
	}
}
