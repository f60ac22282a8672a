package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one scheduled job. day is the aligned instant the tick belongs to.
type TickFunc func(ctx context.Context, day time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// Offset shifts aligned ticks away from local midnight, e.g. 1h runs daily jobs at 01:00.
	Offset time.Duration
	// Location anchors alignment to local midnight. Defaults to UTC.
	Location *time.Location
	// RunOnStart fires one tick right after the startup delay, before the first aligned one.
	RunOnStart bool
}

// Scheduler fires a TickFunc on a fixed cadence anchored to local midnight.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler. It panics on a non-positive interval.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks until ctx is cancelled. Tick errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleepUntil(ctx, time.Now().Add(s.opts.StartupDelay)); err != nil {
			return err
		}
	}

	if s.opts.RunOnStart {
		s.fire(ctx, tick, time.Now())
	}

	next := s.nextTick(time.Now())
	for {
		if time.Until(next) < 0 {
			// the previous tick overran one or more slots
			skipped := next
			next = s.nextTick(time.Now())
			s.logger.Warn().Time("skipped", skipped).Time("next", next).Msg("tick overran its slot")
		}

		s.logger.Debug().Time("next", next).Msg("sleeping until next tick")
		if err := sleepUntil(ctx, next); err != nil {
			return err
		}

		s.fire(ctx, tick, next)
		next = s.nextTick(next)
	}
}

func (s *Scheduler) fire(ctx context.Context, tick TickFunc, at time.Time) {
	started := time.Now()
	log := s.logger.With().Time("tick", at.In(s.opts.Location)).Logger()
	log.Info().Msg("tick started")

	if err := tick(ctx, at); err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("tick failed")
		return
	}
	log.Info().Dur("elapsed", time.Since(started)).Msg("tick finished")
}

func sleepUntil(ctx context.Context, t time.Time) error {
	timer := time.NewTimer(time.Until(t))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nextTick returns the first tick strictly after now.
func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}

	local := now.In(s.opts.Location)
	anchor := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.opts.Location).Add(s.opts.Offset)
	for anchor.After(now) {
		anchor = anchor.Add(-s.opts.Interval)
	}
	steps := now.Sub(anchor)/s.opts.Interval + 1
	return anchor.Add(steps * s.opts.Interval)
}
