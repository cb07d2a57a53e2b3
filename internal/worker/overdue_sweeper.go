package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OverduePersister writes the derived overdue status back to storage.
type OverduePersister interface {
	PersistOverdue(ctx context.Context) (int, error)
}

// OverdueSweeper periodically persists overdue task statuses.
type OverdueSweeper struct {
	tasks    OverduePersister
	interval time.Duration
	logger   *zap.Logger
}

// NewOverdueSweeper builds a sweeper. A non-positive interval defaults to five minutes.
func NewOverdueSweeper(tasks OverduePersister, interval time.Duration, logger *zap.Logger) *OverdueSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueSweeper{tasks: tasks, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *OverdueSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("overdue sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *OverdueSweeper) sweep(ctx context.Context) {
	n, err := s.tasks.PersistOverdue(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("overdue sweep failed", zap.Error(err))
		}
		return
	}
	if n > 0 {
		s.logger.Debug("overdue sweep", zap.Int("marked", n))
	}
}
