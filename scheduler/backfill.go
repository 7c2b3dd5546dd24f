// Package scheduler triggers the daily backfill of missed days.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/earlywake/backend/services"
	"github.com/earlywake/backend/utils"
)

// ErrBusy is returned when a backfill is already in progress here or on another instance.
var ErrBusy = fmt.Errorf("%w: backfill already running", services.ErrConflict)

const lockKey = "backfill:default-days"

// Runner performs one backfill pass.
type Runner interface {
	CreateDefaultUserDays(ctx context.Context) (services.BackfillResult, error)
}

// Backfill runs Runner on a cron schedule and on demand, never twice at once.
type Backfill struct {
	runner  Runner
	cron    *cron.Cron
	running atomic.Bool
	lockTTL time.Duration
	loc     *time.Location

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBackfill parses schedule (standard five-field cron) in loc.
func NewBackfill(runner Runner, schedule string, loc *time.Location) (*Backfill, error) {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Backfill{runner: runner, lockTTL: 10 * time.Minute, loc: loc, ctx: ctx, cancel: cancel}

	logger := cronLogger{}
	b.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := b.cron.AddFunc(schedule, b.scheduled); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid backfill schedule %q: %w", schedule, err)
	}
	return b, nil
}

func (b *Backfill) scheduled() {
	if _, err := b.Run(b.ctx); err != nil {
		utils.Sugar.Errorw("scheduled backfill failed", "error", err)
	}
}

// Run performs a backfill now, or returns ErrBusy if one is in progress.
func (b *Backfill) Run(ctx context.Context) (services.BackfillResult, error) {
	if !b.running.CompareAndSwap(false, true) {
		return services.BackfillResult{}, ErrBusy
	}
	defer b.running.Store(false)

	ok, release := utils.TryLock(lockKey, b.lockTTL)
	if !ok {
		return services.BackfillResult{}, ErrBusy
	}
	defer release()

	start := time.Now()
	res, err := b.runner.CreateDefaultUserDays(ctx)
	utils.Sugar.Infow("backfill run", "created", res.Created, "skipped", res.Skipped,
		"failed", res.Failed, "elapsed", time.Since(start).String())
	return res, err
}

func (b *Backfill) Start() {
	b.cron.Start()
	utils.Sugar.Infow("backfill scheduled", "next", b.Next())
}

// Stop halts the schedule and cancels a running pass. The returned context is done once it has returned.
func (b *Backfill) Stop() context.Context {
	b.cancel()
	return b.cron.Stop()
}

// Next is the time of the next scheduled run.
func (b *Backfill) Next() time.Time {
	entries := b.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now().In(b.loc))
}

// cronLogger forwards cron's logging to zap.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	utils.Sugar.Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	utils.Sugar.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
