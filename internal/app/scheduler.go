package app

import (
	"context"

	"github.com/robfig/cron/v3"
)

// StartScheduler runs the unattended radar batch on the configured cron
// schedule. Each scheduled run starts at offset 0 and, when the run hits
// its time budget, immediately re-invokes the runner at the returned
// offset until the full list is covered.
func (a *App) StartScheduler() error {
	spec := a.Config.Radar.CronSpec
	if spec == "" {
		a.Logger.Info().Msg("Radar scheduler disabled: no cron spec configured")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		a.runRadarChain(ctx)
	})
	if err != nil {
		cancel()
		return err
	}

	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	a.Logger.Info().Str("cron_spec", spec).Msg("Radar scheduler started")
	return nil
}

// runRadarChain drives the batch runner through its continuations. Each
// invocation enforces its own time budget, so the chain as a whole covers
// the full list in bounded slices.
func (a *App) runRadarChain(ctx context.Context) {
	offset := 0
	for {
		report, err := a.RadarService.Run(ctx, nil, offset)
		if err != nil {
			a.Logger.Error().Err(err).Int("offset", offset).Msg("Scheduled radar run failed")
			return
		}
		if !report.Batched {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		offset = report.NextOffset
	}
}
