package workers

import (
	"context"
	"log/slog"
	"time"

	application "livepoll/contexts/polling/live-poll/application"
	"livepoll/contexts/polling/live-poll/ports"
)

// ExpiryReaper deletes poll and voter rows whose durability window elapsed.
// Substrates with native expiry (redis) leave Sweeper nil.
type ExpiryReaper struct {
	Sweeper ports.ExpirySweeper
	Clock   ports.Clock
	Logger  *slog.Logger
}

func (r ExpiryReaper) RunOnce(ctx context.Context) (int, error) {
	if r.Sweeper == nil {
		return 0, nil
	}
	logger := application.LayerLogger(r.Logger, "worker")
	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	removed, err := r.Sweeper.SweepExpired(ctx, now)
	if err != nil {
		logger.Error("live poll expiry sweep failed",
			"event", "live_poll_expiry_sweep_failed",
			"error", err.Error(),
		)
		return 0, err
	}
	if removed > 0 {
		logger.Info("live poll expired entries reclaimed",
			"event", "live_poll_expiry_swept",
			"removed_count", removed,
		)
	}
	return removed, nil
}
