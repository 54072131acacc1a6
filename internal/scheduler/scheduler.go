// Package scheduler runs the background reconciliation jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/iliyamo/futsal-booking/internal/config"
	"github.com/iliyamo/futsal-booking/internal/service"
)

// Sweeper is implemented by *service.ReconcileService.
type Sweeper interface {
	SweepPending(ctx context.Context, now time.Time) (service.SweepReport, error)
}

// Scheduler owns the gocron scheduler and the context its jobs run under.
type Scheduler struct {
	inner  gocron.Scheduler
	cancel context.CancelFunc
	log    *zap.Logger
}

// Start registers the pending-payment sweep every cfg.Interval and starts
// the scheduler. A run still in progress when the next is due is skipped.
func Start(cfg config.ReconcileConfig, sweeper Sweeper, log *zap.Logger) (*Scheduler, error) {
	inner, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{inner: inner, cancel: cancel, log: log}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	_, err = inner.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.sweep(ctx, sweeper) }),
		gocron.WithName("sweep-pending-payments"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	inner.Start()
	log.Info("scheduler started", zap.Duration("sweep_interval", interval))
	return s, nil
}

func (s *Scheduler) sweep(ctx context.Context, sweeper Sweeper) {
	rep, err := sweeper.SweepPending(ctx, time.Now().UTC())
	if err != nil && ctx.Err() == nil {
		s.log.Error("pending payment sweep failed", zap.Error(err))
	}
	if rep.Checked > 0 {
		s.log.Info("pending payment sweep",
			zap.Int("checked", rep.Checked),
			zap.Int("confirmed", rep.Confirmed),
			zap.Int("canceled", rep.Canceled),
			zap.Int("skipped", rep.Skipped),
			zap.Int("failed", rep.Failed))
	}
}

// Shutdown cancels running jobs and waits for them to return.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.inner.Shutdown()
}
