package marketdata

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/stockpredict/server/internal/marketclock"
	"github.com/stockpredict/server/pkg/logger"
)

// Janitor clears the real-time caches on the exchange schedule: ticks at
// 18:00 KST after the session, asking prices at the 08:00 pre-open.
type Janitor struct {
	ticks  *TickCache
	asking *AskingCache
	cron   *cron.Cron
	log    *logger.Logger
}

// NewJanitor creates a janitor for the given caches.
func NewJanitor(ticks *TickCache, asking *AskingCache) *Janitor {
	return &Janitor{
		ticks:  ticks,
		asking: asking,
		log:    logger.NewDefault("cache-janitor"),
	}
}

// Name implements system.Service.
func (j *Janitor) Name() string { return "cache-janitor" }

// Start schedules the cleanup jobs.
func (j *Janitor) Start(_ context.Context) error {
	j.cron = cron.New(cron.WithLocation(marketclock.KST))

	if _, err := j.cron.AddFunc("0 18 * * *", func() {
		j.ticks.Reset()
		j.log.Info("tick cache cleared after session")
	}); err != nil {
		return fmt.Errorf("schedule tick cleanup: %w", err)
	}
	if _, err := j.cron.AddFunc("0 8 * * *", func() {
		j.asking.Reset()
		j.log.Info("asking price cache cleared before open")
	}); err != nil {
		return fmt.Errorf("schedule asking cleanup: %w", err)
	}

	j.cron.Start()
	j.log.Info("cache janitor started")
	return nil
}

// Stop halts the schedule and waits for running jobs.
func (j *Janitor) Stop(ctx context.Context) error {
	if j.cron == nil {
		return nil
	}
	done := j.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
