// Package scheduler runs recurring acquisitions on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts standard 5-field cron expressions.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether expr is a valid 5-field cron expression.
func ValidateSchedule(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// RunFunc performs one scheduled acquisition.
type RunFunc func(ctx context.Context) error

// Scheduler fires a RunFunc on a cron schedule. Overlapping runs are
// skipped: a tick that arrives while the previous run is still in flight
// is dropped.
type Scheduler struct {
	schedule cron.Schedule
	run      RunFunc
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a scheduler for the given 5-field cron expression.
func New(expr string, run RunFunc, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule: schedule,
		run:      run,
		logger:   logger,
	}, nil
}

// Next returns the next firing time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Start blocks, firing the run function at each scheduled time until ctx
// is cancelled. Each run executes in its own goroutine so a run that
// outlasts the interval does not delay subsequent ticks; those ticks are
// dropped by the overlap guard instead.
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		next := s.schedule.Next(time.Now())
		s.logger.Info("next scheduled run", slog.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		go s.fire(ctx)
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("previous run still in progress, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	started := time.Now()
	if err := s.run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduled run failed",
			slog.Duration("elapsed", time.Since(started)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("scheduled run finished", slog.Duration("elapsed", time.Since(started)))
}
