// Package sweeper periodically removes stale authentication code records so
// the store stays bounded. Sweeping is housekeeping, not correctness: the
// validator already rejects expired records, so a failed run just waits for
// the next interval.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/keeperfind/keeper-auth/services"
)

// sweepTimeout bounds a single sweep run.
const sweepTimeout = time.Minute

// Sweeper schedules periodic sweeps of the code store.
type Sweeper struct {
	service  *services.AuthCodeService
	cron     *cron.Cron
	interval time.Duration
}

// New creates a Sweeper that runs every interval once started.
func New(service *services.AuthCodeService, interval time.Duration) *Sweeper {
	return &Sweeper{
		service:  service,
		cron:     cron.New(),
		interval: interval,
	}
}

// Start registers and starts the sweep schedule.
func (s *Sweeper) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	s.cron.Start()
	log.Info().Str("interval", s.interval.String()).Msg("Code sweeper started")
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Code sweeper stopped")
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	count, err := s.service.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Sweep failed, retrying next interval")
		return
	}
	if count > 0 {
		log.Info().Int64("deleted", count).Msg("Swept expired auth codes")
	}
}
