package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SweepRunner is the job the scheduler drives.
type SweepRunner interface {
	Run(ctx context.Context) (*SweepSummary, error)
}

// Scheduler manages the periodic reminder sweep.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	sweeper  SweepRunner
	logger   *zap.Logger
}

// New creates a new cron scheduler. The schedule uses the six-field form
// with a leading seconds field.
func New(schedule string, sweeper SweepRunner, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		schedule: schedule,
		sweeper:  sweeper,
		logger:   logger.Named("cron"),
	}
}

// Start registers and starts the sweep job.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting cron scheduler...", zap.String("schedule", s.schedule))

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.logger.Debug("Running: reminder sweep")
		s.runSweep()
	}); err != nil {
		return fmt.Errorf("register reminder sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	defer s.recoverFromPanic("reminderSweep")

	summary, err := s.sweeper.Run(context.Background())
	if errors.Is(err, ErrSweepInProgress) {
		s.logger.Info("Skipping reminder sweep, another run holds the lock")
		return
	}
	if err != nil {
		s.logger.Error("Reminder sweep failed", zap.Error(err))
		return
	}
	if len(summary.Errors) > 0 {
		s.logger.Warn("Reminder sweep finished with errors", zap.Strings("errors", summary.Errors))
	}
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
