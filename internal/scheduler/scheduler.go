// Package scheduler runs a job on a fixed interval with at most one run in
// flight, skipping ticks that fire too late.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrLockHeld is returned by RunOnce when another replica holds the job lock
var ErrLockHeld = errors.New("job lock held elsewhere")

// Job is a unit of scheduled work
type Job func(ctx context.Context) error

// Locker serializes runs across processes
type Locker interface {
	// Acquire returns ok=false when the lock is already held.
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// Options configures a Scheduler
type Options struct {
	Name         string
	Interval     time.Duration
	MisfireGrace time.Duration
	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration
	Locker  Locker
	Now     func() time.Time
}

// Scheduler runs a Job every Interval
type Scheduler struct {
	job     Job
	opts    Options
	running atomic.Bool
}

// New creates a scheduler for job
func New(job Job, opts Options) *Scheduler {
	if opts.Name == "" {
		opts.Name = "job"
	}
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Minute
	}
	if opts.MisfireGrace <= 0 {
		opts.MisfireGrace = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{job: job, opts: opts}
}

// Start blocks, firing the job on every tick until ctx is done
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	log.Info().
		Str("job", s.opts.Name).
		Dur("interval", s.opts.Interval).
		Dur("misfire_grace", s.opts.MisfireGrace).
		Msg("Scheduler started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("job", s.opts.Name).Msg("Scheduler stopped")
			return
		case scheduled := <-ticker.C:
			s.fire(ctx, scheduled)
		}
	}
}

// fire runs the job for a tick scheduled at the given time.
// It reports whether the job actually ran.
func (s *Scheduler) fire(ctx context.Context, scheduled time.Time) bool {
	if late := s.opts.Now().Sub(scheduled); late > s.opts.MisfireGrace {
		log.Warn().
			Str("job", s.opts.Name).
			Dur("late", late).
			Msg("Skipping misfired run")
		return false
	}
	ran, err := s.RunOnce(ctx)
	if err != nil && !errors.Is(err, ErrLockHeld) {
		log.Error().Err(err).Str("job", s.opts.Name).Msg("Scheduled run failed")
	}
	return ran
}

// RunOnce runs the job now unless a run is already in flight.
// ran is false when the run was coalesced into the one in flight or the
// lock is held elsewhere.
func (s *Scheduler) RunOnce(ctx context.Context) (ran bool, err error) {
	if !s.running.CompareAndSwap(false, true) {
		log.Debug().Str("job", s.opts.Name).Msg("Run already in flight, coalescing")
		return false, nil
	}
	defer s.running.Store(false)

	if s.opts.Locker != nil {
		release, ok, err := s.opts.Locker.Acquire(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to acquire job lock: %w", err)
		}
		if !ok {
			log.Debug().Str("job", s.opts.Name).Msg("Job lock held by another instance")
			return false, ErrLockHeld
		}
		defer release()
	}

	runCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	started := s.opts.Now()
	err = s.safeRun(runCtx)
	log.Debug().
		Str("job", s.opts.Name).
		Dur("took", s.opts.Now().Sub(started)).
		Msg("Run finished")
	return true, err
}

func (s *Scheduler) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return s.job(ctx)
}

// Running reports whether a run is in flight
func (s *Scheduler) Running() bool {
	return s.running.Load()
}
