package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/study-match/pkg/logger"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job " + j.name }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func newTestScheduler() *Scheduler {
	return New(Config{Logger: logger.Nop(), TickInterval: 10 * time.Millisecond})
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "a"}

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Second)), ErrNilJob)
	assert.ErrorIs(t, s.Register(job, nil), ErrNilSchedule)
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Second)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Second)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.SetEnabled("missing", true), ErrJobNotFound)
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := New(Config{Logger: logger.Nop(), TickInterval: 5 * time.Millisecond, RunOnStart: true})
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(20*time.Millisecond)))

	done := make(chan JobResult, 16)
	s.OnJobComplete(func(r JobResult) {
		select {
		case done <- r:
		default:
		}
	})

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	r := <-done
	assert.Equal(t, "tick", r.JobName)
	assert.True(t, r.Success)
	assert.False(t, r.Manual)
	assert.GreaterOrEqual(t, len(s.History(0)), 2)
}

func TestScheduler_DisabledJobDoesNotRun(t *testing.T) {
	s := New(Config{Logger: logger.Nop(), TickInterval: 5 * time.Millisecond, RunOnStart: true})
	job := &countingJob{name: "off"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(5*time.Millisecond)))
	require.NoError(t, s.SetEnabled("off", false))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, job.runs.Load())
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler()
	boom := errors.New("boom")
	job := &countingJob{name: "manual", err: boom}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	res, err := s.RunNow(context.Background(), "manual")
	require.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.True(t, res.Manual)
	assert.False(t, res.Success)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(1), jobs[0].RunCount)
	assert.Equal(t, int64(1), jobs[0].FailCount)
	assert.Equal(t, "@every 1h0m0s", jobs[0].Schedule)
}

func TestScheduler_RunNowRejectsOverlap(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	errc := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background(), "slow")
		errc <- err
	}()
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobRunning)

	close(job.block)
	require.NoError(t, <-errc)
}

func TestParseCronExpression(t *testing.T) {
	tests := []struct {
		expr    string
		from    time.Time
		want    time.Time
		wantErr bool
	}{
		{
			expr: "*/15 * * * *",
			from: time.Date(2026, 1, 1, 10, 7, 30, 0, time.UTC),
			want: time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC),
		},
		{
			expr: "30 3 * * *",
			from: time.Date(2026, 1, 1, 3, 30, 0, 0, time.UTC),
			want: time.Date(2026, 1, 2, 3, 30, 0, 0, time.UTC),
		},
		{
			expr: "0 0 * * 0",
			from: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), // Thursday
			want: time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			expr: "0 9-17/4 * * 1,3",
			from: time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC), // Monday
			want: time.Date(2026, 1, 5, 17, 0, 0, 0, time.UTC),
		},
		{expr: "* * * *", wantErr: true},
		{expr: "60 * * * *", wantErr: true},
		{expr: "*/0 * * * *", wantErr: true},
		{expr: "5-2 * * * *", wantErr: true},
		{expr: "x * * * *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ce.Next(tt.from))
		})
	}
}

func TestCronExpression_NoMatchWithinYear(t *testing.T) {
	ce := MustParseCronExpression("0 0 31 2 *")
	assert.True(t, ce.Next(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).IsZero())
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("@every 5m")
	require.NoError(t, err)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, from.Add(5*time.Minute), s.Next(from))

	s, err = ParseSchedule("  */10 * * * * ")
	require.NoError(t, err)
	assert.Equal(t, "*/10 * * * *", s.String())

	_, err = ParseSchedule("@every -1s")
	assert.Error(t, err)
	_, err = ParseSchedule("@every soon")
	assert.Error(t, err)
}
