package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earlywake/backend/services"
)

type fakeRunner struct {
	calls   atomic.Int32
	release chan struct{}
	started chan struct{}
	err     error
	panics  atomic.Bool
}

func (f *fakeRunner) CreateDefaultUserDays(ctx context.Context) (services.BackfillResult, error) {
	f.calls.Add(1)
	if f.panics.Load() {
		panic("runner exploded")
	}
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	return services.BackfillResult{Created: 2, Skipped: 1}, f.err
}

func TestBackfillRun(t *testing.T) {
	runner := &fakeRunner{}
	b, err := NewBackfill(runner, "50 6 * * *", time.UTC)
	require.NoError(t, err)

	res, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, services.BackfillResult{Created: 2, Skipped: 1}, res)
	assert.EqualValues(t, 1, runner.calls.Load())

	runner.err = errors.New("boom")
	_, err = b.Run(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestBackfillRejectsOverlappingRuns(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{}), started: make(chan struct{})}
	b, err := NewBackfill(runner, "50 6 * * *", time.UTC)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := b.Run(context.Background())
		done <- err
	}()
	<-runner.started

	_, err = b.Run(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, err, services.ErrConflict)

	close(runner.release)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, runner.calls.Load())
}

func TestBackfillSchedule(t *testing.T) {
	cairo, err := time.LoadLocation("Africa/Cairo")
	require.NoError(t, err)

	_, err = NewBackfill(&fakeRunner{}, "not a schedule", cairo)
	assert.Error(t, err)

	b, err := NewBackfill(&fakeRunner{}, "50 6 * * *", cairo)
	require.NoError(t, err)
	b.Start()
	defer b.Stop()

	next := b.Next().In(cairo)
	assert.Equal(t, 6, next.Hour())
	assert.Equal(t, 50, next.Minute())
}

func TestScheduledBackfillSurvivesFailures(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	b, err := NewBackfill(runner, "50 6 * * *", time.UTC)
	require.NoError(t, err)

	entries := b.cron.Entries()
	require.Len(t, entries, 1)
	job := entries[0].WrappedJob

	assert.NotPanics(t, job.Run)
	assert.EqualValues(t, 1, runner.calls.Load())

	runner.panics.Store(true)
	assert.NotPanics(t, job.Run)
	assert.EqualValues(t, 2, runner.calls.Load())

	// a panicking pass releases the guard for the next one
	runner.panics.Store(false)
	runner.err = nil
	res, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, services.BackfillResult{Created: 2, Skipped: 1}, res)
}
