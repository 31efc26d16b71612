package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Purger removes expired entries from a response cache.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Scheduler periodically purges expired cache entries. It never touches the
// aggregate table, which is only built at startup.
type Scheduler struct {
	scheduler *gocron.Scheduler
	purger    Purger
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler.
func New(purger Purger, interval time.Duration, logger *zap.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		purger:    purger,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the purge job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("scheduler: cache purge disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.runPurge)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.purger.Purge(ctx)
	if err != nil {
		s.logger.Warn("scheduler: cache purge failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduler: cache purge completed", zap.Int64("removed", n))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
