package services

import (
	"context"
	"time"

	"clinic_inventory_backend/pkg/utils"

	"github.com/rs/zerolog"
)

// Scheduler takes an automatic backup at midnight on the first of every month
// and prunes old automatic backups.
type Scheduler struct {
	backups BackupService
	keep    int
	log     zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(backups BackupService, keep int) *Scheduler {
	return &Scheduler{backups: backups, keep: keep, log: utils.WithComponent("scheduler")}
}

// nextMonthlyRun is 00:00 on the first day of the month after now, in now's location.
func nextMonthlyRun(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := nextMonthlyRun(nowFunc())
		s.log.Info().Time("next_run", next).Msg("monthly backup scheduled")
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info().Msg("scheduler stopped")
			return
		case <-timer.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	backup, err := s.backups.Create(ctx, BackupKindAuto)
	if err != nil {
		s.log.Error().Err(err).Msg("monthly backup failed")
		return
	}
	removed, err := s.backups.CleanOld(ctx, s.keep)
	if err != nil {
		s.log.Error().Err(err).Msg("backup cleanup failed")
		return
	}
	s.log.Info().Str("file", backup.Name).Int("removed", removed).Msg("monthly backup completed")
}
