package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/study-match/internal/application/command"
	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
	"github.com/campus-hub/study-match/pkg/logger"
)

type fakeReconciler struct {
	calls   []command.ReconcileAwardsCommand
	results []*command.ReconcileAwardsResult
	errs    []error
}

func (f *fakeReconciler) Handle(_ context.Context, cmd command.ReconcileAwardsCommand) (*command.ReconcileAwardsResult, error) {
	i := len(f.calls)
	f.calls = append(f.calls, cmd)
	var res *command.ReconcileAwardsResult
	var err error
	if i < len(f.results) {
		res = f.results[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return res, err
}

type recorded struct {
	applied, failed int
	err             error
}

type fakeRecorder struct {
	runs []recorded
}

func (f *fakeRecorder) RecordReconcile(applied, failed int, err error) {
	f.runs = append(f.runs, recorded{applied, failed, err})
}

func TestReconcileAwardsJob_SlidingWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := shared.NewManualClock(start)
	rec := &fakeReconciler{results: []*command.ReconcileAwardsResult{{Applied: 2}, {}}}
	metrics := &fakeRecorder{}

	job := NewReconcileAwardsJob(rec, metrics, clock, ReconcileAwardsConfig{Lookback: time.Hour, BatchLimit: 50}, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	clock.Advance(10 * time.Minute)
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, rec.calls, 2)
	assert.Equal(t, start.Add(-time.Hour), rec.calls[0].Since)
	assert.Equal(t, start.Add(-50*time.Minute), rec.calls[1].Since)
	assert.Equal(t, 50, rec.calls[0].BatchLimit)
	assert.Equal(t, []recorded{{2, 0, nil}, {0, 0, nil}}, metrics.runs)
	assert.Equal(t, 0, job.LastResult().Applied)
}

func TestReconcileAwardsJob_KeepsWindowAfterFailures(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := shared.NewManualClock(start)
	boom := errors.New("store down")
	rec := &fakeReconciler{
		results: []*command.ReconcileAwardsResult{{Applied: 1, Failed: 3}, nil, {Applied: 3}, {}},
		errs:    []error{nil, boom, nil, nil},
	}

	job := NewReconcileAwardsJob(rec, nil, clock, ReconcileAwardsConfig{Lookback: time.Hour}, logger.Nop())

	require.NoError(t, job.Run(context.Background()))
	clock.Advance(30 * time.Minute)
	err := job.Run(context.Background())
	require.ErrorIs(t, err, boom)
	clock.Advance(30 * time.Minute)
	require.NoError(t, job.Run(context.Background()))
	clock.Advance(30 * time.Minute)
	require.NoError(t, job.Run(context.Background()))

	first := start.Add(-time.Hour)
	assert.Equal(t, first, rec.calls[0].Since)
	assert.Equal(t, first, rec.calls[1].Since)
	assert.Equal(t, first, rec.calls[2].Since)
	assert.Equal(t, start.Add(30*time.Minute), rec.calls[3].Since)
	assert.Equal(t, DefaultReconcileAwardsConfig().BatchLimit, rec.calls[0].BatchLimit)
}

type fakeWarmer struct {
	size     int
	profiles reputation.ProfileRepository
	err      error
	deadline bool
}

func (f *fakeWarmer) Warm(ctx context.Context, profiles reputation.ProfileRepository, size int) error {
	f.size = size
	f.profiles = profiles
	_, f.deadline = ctx.Deadline()
	return f.err
}

func TestWarmLeaderboardJob_Run(t *testing.T) {
	w := &fakeWarmer{err: errors.New("redis down")}
	job := NewWarmLeaderboardJob(w, nil, 250, logger.Nop())

	assert.Equal(t, "warm_leaderboard", job.Name())
	assert.NotEmpty(t, job.Description())

	err := job.Run(context.Background())
	assert.EqualError(t, err, "redis down")
	assert.Equal(t, 250, w.size)
	assert.True(t, w.deadline)
}
