package scheduler

import (
	"context"
	"time"

	"matter_intake_backend/internal/saga"
	"matter_intake_backend/platform/logger"
)

const (
	defaultSweepInterval = 15 * time.Minute
	defaultStalledAfter  = time.Hour
	sweepBatch           = 100
)

// StalledLister finds sagas whose status has not moved since before.
type StalledLister interface {
	ListStalled(ctx context.Context, before time.Time, limit int) ([]string, error)
}

// Replayer republishes the pending stage of a saga.
type Replayer interface {
	Replay(ctx context.Context, correlationID string, from saga.Path) (saga.Path, error)
}

// StalledSagaSweeper periodically republishes the pending stage of sagas
// whose event was lost, e.g. after its retries ran out.
type StalledSagaSweeper struct {
	lister       StalledLister
	replayer     Replayer
	log          *logger.Logger
	interval     time.Duration
	stalledAfter time.Duration
	now          func() time.Time
}

func NewStalledSagaSweeper(lister StalledLister, replayer Replayer, log *logger.Logger, interval, stalledAfter time.Duration) *StalledSagaSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if stalledAfter <= 0 {
		stalledAfter = defaultStalledAfter
	}
	// A saga is only stalled once its current stage can no longer be running.
	stalledAfter = max(stalledAfter, 2*StageTimeout)

	return &StalledSagaSweeper{
		lister:       lister,
		replayer:     replayer,
		log:          log,
		interval:     interval,
		stalledAfter: stalledAfter,
		now:          time.Now,
	}
}

func (s *StalledSagaSweeper) Run(ctx context.Context) error {
	if s == nil || s.lister == nil {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep replays one batch and returns how many sagas were republished.
func (s *StalledSagaSweeper) sweep(ctx context.Context) int {
	ids, err := s.lister.ListStalled(ctx, s.now().Add(-s.stalledAfter), sweepBatch)
	if err != nil {
		s.log.Warn("stalled saga sweep failed", "error", err)
		return 0
	}

	replayed := 0
	for _, id := range ids {
		path, err := s.replayer.Replay(ctx, id, "")
		if err != nil {
			s.log.WithCorrelationID(id).Warn("stalled saga replay failed", "error", err)
			continue
		}
		s.log.WithCorrelationID(id).Info("stalled saga replayed", "stage", path)
		replayed++
	}
	if replayed > 0 {
		s.log.Info("stalled saga sweep republished stages", "replayed", replayed)
	}
	return replayed
}
