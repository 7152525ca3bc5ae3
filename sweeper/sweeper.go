// Package sweeper runs periodic cleanup independent of request traffic.
//
// A sweep is a full scan of every target. The interval is never longer than
// the hard expiry window, so a dead entry survives at most one interval.
package sweeper

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Target is anything the sweeper can clean: the cache coordinator and the rate limiter.
type Target interface {
	Name() string

	// Sweep removes whatever is expired at now and returns how many items went away.
	Sweep(now time.Time) int
}

// Report is the outcome of one pass, per target name.
type Report map[string]int

// Sweeper owns no state of its own; it only schedules Sweep calls.
type Sweeper struct {
	interval time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger
	targets  []Target
}

// New creates a sweeper. clock and logger may be nil.
func New(interval time.Duration, clock clockwork.Clock, logger *zap.Logger, targets ...Target) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		interval: interval,
		clock:    clock,
		logger:   logger,
		targets:  targets,
	}
}

// SweepOnce runs one pass over every target. Sweeping twice with no writes in between is a no-op.
func (s *Sweeper) SweepOnce() Report {
	now := s.clock.Now()
	report := make(Report, len(s.targets))

	for _, t := range s.targets {
		report[t.Name()] = t.Sweep(now)
	}
	return report
}

/*
Run sweeps every interval until ctx is done. It is meant to run in its own
goroutine (an errgroup member in the serving binary) and always returns nil
on cancellation so shutdown is not reported as a failure.
*/
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", zap.Duration("interval", s.interval), zap.Int("targets", len(s.targets)))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return nil
		case <-ticker.Chan():
			start := time.Now()
			report := s.SweepOnce()

			fields := []zap.Field{zap.Duration("took", time.Since(start))}
			for name, n := range report {
				fields = append(fields, zap.Int(name, n))
			}
			s.logger.Info("sweep finished", fields...)
		}
	}
}
