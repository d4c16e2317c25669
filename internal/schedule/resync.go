// Package schedule runs the periodic bulk resync.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Resyncer is the job being scheduled. The engine implements it.
type Resyncer interface {
	Resync(ctx context.Context) error
}

// Resync runs Resyncer.Resync on a fixed interval.
type Resync struct {
	scheduler gocron.Scheduler
	target    Resyncer
	interval  time.Duration
	logger    *zap.Logger
	cancel    context.CancelFunc
}

// NewResync creates the scheduler. A non-positive interval disables it;
// Start and Stop are then no-ops.
func NewResync(target Resyncer, interval time.Duration, logger *zap.Logger) (*Resync, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resync{target: target, interval: interval, logger: logger}
	if interval <= 0 {
		return r, nil
	}
	s, err := gocron.NewScheduler(gocron.WithLogger(&zapAdapter{logger: logger}))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	r.scheduler = s
	return r, nil
}

// Start schedules the job and starts the scheduler.
func (r *Resync) Start(ctx context.Context) error {
	if r.scheduler == nil {
		return nil
	}
	ctx, r.cancel = context.WithCancel(ctx)
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() {
			if err := r.target.Resync(ctx); err != nil {
				r.logger.Warn("scheduled resync failed", zap.Error(err))
			}
		}),
		gocron.WithName("resync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule resync: %w", err)
	}
	r.scheduler.Start()
	r.logger.Info("resync scheduled", zap.Duration("interval", r.interval))
	return nil
}

// Stop shuts the scheduler down and waits for a running resync.
func (r *Resync) Stop() error {
	if r.scheduler == nil {
		return nil
	}
	if r.cancel != nil {
		r.cancel()
	}
	if err := r.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	return nil
}

type zapAdapter struct {
	logger *zap.Logger
}

func (a *zapAdapter) Debug(msg string, args ...any) { a.logger.Sugar().Debugw(msg, args...) }
func (a *zapAdapter) Info(msg string, args ...any)  { a.logger.Sugar().Infow(msg, args...) }
func (a *zapAdapter) Warn(msg string, args ...any)  { a.logger.Sugar().Warnw(msg, args...) }
func (a *zapAdapter) Error(msg string, args ...any) { a.logger.Sugar().Errorw(msg, args...) }
