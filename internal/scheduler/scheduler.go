// Package scheduler is the injected "fire at time T in timezone Z"
// capability. Multiple instances run the same schedule, so each firing is
// gated by a shared once-per-day guard to avoid duplicate job enqueues.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Guard admits at most one firing per name per day across all instances.
type Guard interface {
	TryAcquire(ctx context.Context, name string) (bool, error)
}

// AlwaysFire is a Guard for single-instance deployments without Redis.
type AlwaysFire struct{}

func (AlwaysFire) TryAcquire(context.Context, string) (bool, error) { return true, nil }

// Scheduler runs cron-style jobs in a fixed timezone.
type Scheduler struct {
	cron   *cron.Cron
	guard  Guard
	logger zerolog.Logger
}

// New creates a scheduler in the named timezone.
func New(timezone string, guard Guard, logger zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler: bad timezone %q: %w", timezone, err)
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		guard:  guard,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// AddDaily schedules fn under a cron expression. Each firing first passes
// the shared guard; losing the race to another instance is the normal case,
// not an error.
func (s *Scheduler) AddDaily(name, spec string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		ok, err := s.guard.TryAcquire(ctx, name)
		if err != nil {
			s.logger.Error().Err(err).Str("trigger", name).Msg("guard check failed")
			return
		}
		if !ok {
			s.logger.Debug().Str("trigger", name).Msg("another instance fired first")
			return
		}

		if err := fn(ctx); err != nil {
			s.logger.Error().Err(err).Str("trigger", name).Msg("scheduled trigger failed")
			return
		}
		s.logger.Info().Str("trigger", name).Msg("scheduled trigger fired")
	})
	return err
}

// Start begins running schedules in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight triggers.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
