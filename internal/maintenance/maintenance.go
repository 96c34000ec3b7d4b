// Package maintenance schedules the periodic housekeeping jobs.
package maintenance

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/attendhq/attend/internal/config"
	"github.com/attendhq/attend/internal/dedup"
	"github.com/attendhq/attend/internal/reservation"
)

// Runner sweeps the dedup set every minute and expires stale pending
// reservations every five minutes.
type Runner struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewRunner schedules the jobs; call Start to begin and Stop to drain.
func NewRunner(log *slog.Logger, deduper *dedup.Deduplicator, flow *reservation.Flow, cfg config.ReservationConfig) (*Runner, error) {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With(slog.String("component", "maintenance"))

	pendingTTL := time.Duration(cfg.PendingTTLMin) * time.Minute
	if pendingTTL <= 0 {
		pendingTTL = time.Duration(config.DefaultPendingTTLMin) * time.Minute
	}

	c := cron.New()
	if _, err := c.AddFunc("* * * * *", func() {
		if removed := deduper.Sweep(); removed > 0 {
			logger.Debug("dedup sweep", slog.Int("removed", removed))
		}
	}); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc("*/5 * * * *", func() {
		flow.ExpireStale(pendingTTL)
	}); err != nil {
		return nil, err
	}

	return &Runner{cron: c, logger: logger}, nil
}

func (r *Runner) Start() {
	r.logger.Info("maintenance jobs started")
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("maintenance jobs stopped")
}
