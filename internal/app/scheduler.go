/**
 * @description
 * Cron scheduler for the two periodic sweeps. The jobs themselves catch
 * per-record errors, so the recover chain only guards against programming
 * faults. Schedules must not overlap: the sweeps assume single-writer access
 * to each record during a pass.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/19pdh/user-manager/internal/config"
)

// Scheduler manages the sweep cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	sweep  *Sweep
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(sweep *Sweep, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		sweep:  sweep,
		logger: logger,
		config: cfg,
	}
}

// Start registers the sweep jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.LifecycleSweepSchedule, func() {
		s.sweep.RunLifecycle(context.Background())
	}); err != nil {
		s.logger.Error("failed to schedule lifecycle sweep", "error", err)
	} else {
		s.logger.Info("scheduled lifecycle sweep", "schedule", s.config.LifecycleSweepSchedule)
	}

	if _, err := s.cron.AddFunc(s.config.CleanupSweepSchedule, func() {
		s.sweep.RunCleanup(context.Background())
	}); err != nil {
		s.logger.Error("failed to schedule cleanup sweep", "error", err)
	} else {
		s.logger.Info("scheduled cleanup sweep", "schedule", s.config.CleanupSweepSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
