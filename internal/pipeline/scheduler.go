package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/adsb-aircraft-db/internal/domain"
	"github.com/couchcryptid/adsb-aircraft-db/internal/observability"
	"github.com/jonboulle/clockwork"
)

const initialBackoff = 200 * time.Millisecond

// BuildRunner runs a single build.
type BuildRunner interface {
	Build(ctx context.Context) (domain.BuildSummary, error)
}

// Scheduler rebuilds the database on a fixed interval.
type Scheduler struct {
	builder    BuildRunner
	interval   time.Duration
	maxBackoff time.Duration
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewScheduler creates a Scheduler. A nil clock uses real time.
func NewScheduler(b BuildRunner, interval, maxBackoff time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		builder:    b,
		interval:   interval,
		maxBackoff: maxBackoff,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run builds immediately and then once per interval until the context is cancelled.
// A failed build is retried with exponential backoff until the next tick is due.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.buildWithRetry(ctx, s.clock.Now().Add(s.interval))

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

func (s *Scheduler) buildWithRetry(ctx context.Context, deadline time.Time) {
	backoff := min(initialBackoff, s.maxBackoff)
	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.builder.Build(ctx); err == nil || ctx.Err() != nil {
			return
		}
		if s.clock.Now().Add(backoff).After(deadline) {
			s.logger.Warn("build retries exhausted until next interval", "next_attempt", deadline)
			return
		}
		s.logger.Info("retrying build", "backoff", backoff)
		if !s.sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, s.maxBackoff)
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
