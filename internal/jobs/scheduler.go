package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"smartcampus/api/internal/metrics"
)

// TokenPurger is satisfied by *repository.TokenRepository.
type TokenPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Scheduler struct {
	cron     *cron.Cron
	purger   TokenPurger
	schedule string
	timeout  time.Duration
	log      zerolog.Logger
}

// NewScheduler takes a six-field cron spec (seconds first).
func NewScheduler(purger TokenPurger, schedule string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return &Scheduler{
		cron:     c,
		purger:   purger,
		schedule: schedule,
		timeout:  time.Minute,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if s.schedule == "" {
		s.log.Info().Msg("token purge disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.runPurge); err != nil {
		return fmt.Errorf("schedule token purge %q: %w", s.schedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running purge, up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.PurgeExpiredTokens(ctx, time.Now()); err != nil {
		s.log.Error().Err(err).Msg("token purge failed")
	}
}

// PurgeExpiredTokens removes every pending token that has expired by now.
func (s *Scheduler) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.purger.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	metrics.RecordPurged(n)
	if n > 0 {
		s.log.Info().Int64("removed", n).Msg("expired tokens purged")
	}
	return n, nil
}
