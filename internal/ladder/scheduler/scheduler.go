// Package scheduler implements the periodic driver (spec §4.1): a
// jittered-interval ticker that invokes one ladder iteration at a time,
// guarding against overlap, and polling faster while the ladder is
// configured inactive.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"ladderbot/internal/core"
	"ladderbot/internal/exchange"
)

// ActiveChecker reports whether the ladder is currently active in
// configuration; satisfied by *config.LiveStore via an IsActive method,
// or a closure wrapping Config.Ladder.IsActive.
type ActiveChecker func() bool

// Scheduler ticks Builder.RunIteration at a randomized interval in
// [min, max], where min = max(MinIntervalMs, adapter's
// OpenOrdersCacheSec*1000) and max = min + IntervalSpreadMs. While
// IsActive() reports false, it ticks at InactivePollMs purely to notice
// reactivation.
type Scheduler struct {
	logger  core.ILogger
	adapter exchange.Adapter
	run     func(ctx context.Context)

	minIntervalMs    int
	intervalSpreadMs int
	inactivePollMs   int
	isActive         ActiveChecker

	mu      sync.Mutex
	running bool

	stopped chan struct{}
}

// Config carries the Scheduler's tunables, mirroring config.TimingConfig.
type Config struct {
	MinIntervalMs    int
	IntervalSpreadMs int
	InactivePollMs   int
}

// New builds a Scheduler. run is invoked on each tick that isn't
// suppressed by the reentrancy guard; it is expected to wrap
// Builder.RunIteration and log its own errors, since the Scheduler treats
// run as fire-and-forget.
func New(logger core.ILogger, adapter exchange.Adapter, cfg Config, isActive ActiveChecker, run func(ctx context.Context)) *Scheduler {
	return &Scheduler{
		logger:           logger.WithField("component", "scheduler"),
		adapter:          adapter,
		run:              run,
		minIntervalMs:    cfg.MinIntervalMs,
		intervalSpreadMs: cfg.IntervalSpreadMs,
		inactivePollMs:   cfg.InactivePollMs,
		isActive:         isActive,
	}
}

// nextInterval computes this tick's randomized wait.
func (s *Scheduler) nextInterval() time.Duration {
	if s.isActive != nil && !s.isActive() {
		return time.Duration(s.inactivePollMs) * time.Millisecond
	}

	min := s.minIntervalMs
	if cacheMs := s.adapter.Features().OpenOrdersCacheSec * 1000; cacheMs > min {
		min = cacheMs
	}
	max := min + s.intervalSpreadMs
	if max <= min {
		return time.Duration(min) * time.Millisecond
	}
	jitter := rand.Intn(max - min + 1)
	return time.Duration(min+jitter) * time.Millisecond
}

// Run blocks, ticking until ctx is cancelled. Cancellation is
// cooperative: a shutdown signal stops rescheduling only after any
// in-flight iteration completes, it does not abort one mid-flight.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler starting")
	defer s.logger.Info("scheduler stopped")

	for {
		wait := s.nextInterval()
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if s.isActive != nil && !s.isActive() {
			continue
		}
		s.tick(ctx)

		if ctx.Err() != nil {
			return
		}
	}
}

// tick runs one iteration under the reentrancy guard, logging and
// deferring without starting a second iteration if the previous one is
// still in flight.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("previous iteration still running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.run(ctx)
}
