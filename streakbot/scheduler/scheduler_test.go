package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu      sync.Mutex
	newDays []time.Time
	warns   []time.Time
	err     error
}

func (r *recordingRunner) NewDay(_ context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newDays = append(r.newDays, now)
	return r.err
}

func (r *recordingRunner) Warn(_ context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warns = append(r.warns, now)
	return r.err
}

var defaultSpecs = Specs{NewDay: "0 0 * * *", FirstWarning: "0 18 * * *", SecondWarning: "0 22 * * *"}

func TestSchedulerState_ResetNeverDuplicatesJobs(t *testing.T) {
	s := New(time.UTC, time.Minute, DailyJobs(&recordingRunner{}, defaultSpecs)...)
	defer s.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Reset())
		entries := s.Entries()
		require.Len(t, entries, 3)
		assert.Equal(t, JobFirstWarning, entries[0].Name)
		assert.Equal(t, JobNewDay, entries[1].Name)
		assert.Equal(t, JobSecondWarning, entries[2].Name)
	}
}

func TestSchedulerState_InvalidSpecKeepsPreviousJobs(t *testing.T) {
	runner := &recordingRunner{}
	s := New(time.UTC, time.Minute, DailyJobs(runner, defaultSpecs)...)
	defer s.Stop()
	require.NoError(t, s.Reset())

	s.jobs = DailyJobs(runner, Specs{NewDay: "0 0 * * *", FirstWarning: "every evening", SecondWarning: "0 22 * * *"})
	err := s.Reset()
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobFirstWarning)
	assert.Len(t, s.Entries(), 3)
}

func TestSchedulerState_Stop(t *testing.T) {
	s := New(time.UTC, time.Minute, DailyJobs(&recordingRunner{}, defaultSpecs)...)
	require.NoError(t, s.Reset())
	s.Stop()
	assert.Empty(t, s.Entries())
	s.Stop()
}

func TestSchedulerState_RunPassesLocalTime(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	runner := &recordingRunner{err: errors.New("discord unavailable")}
	s := New(loc, time.Minute, DailyJobs(runner, defaultSpecs)...)
	s.now = func() time.Time { return time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC) }

	for _, job := range s.jobs {
		s.run(job)
	}

	require.Len(t, runner.newDays, 1)
	require.Len(t, runner.warns, 2)
	assert.Equal(t, 18, runner.newDays[0].Hour())
	assert.Equal(t, loc, runner.newDays[0].Location())
}

func TestDailySpecsFireAtLocalTimes(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	from := time.Date(2026, 3, 10, 12, 30, 0, 0, loc)

	tests := []struct {
		spec string
		want time.Time
	}{
		{defaultSpecs.NewDay, time.Date(2026, 3, 11, 0, 0, 0, 0, loc)},
		{defaultSpecs.FirstWarning, time.Date(2026, 3, 10, 18, 0, 0, 0, loc)},
		{defaultSpecs.SecondWarning, time.Date(2026, 3, 10, 22, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			require.NoError(t, ValidateSpec(tt.spec))
			sched, err := cron.ParseStandard(tt.spec)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(sched.Next(from)))
		})
	}

	assert.Error(t, ValidateSpec("0 0 * *"))
}
