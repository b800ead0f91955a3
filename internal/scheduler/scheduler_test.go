package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddJob_Listed(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	require.NoError(t, s.AddJob("backup", "0 3 * * *", func(ctx context.Context) {}))

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "backup", jobs["backup"].Name)
	assert.False(t, jobs["backup"].NextRun.IsZero())
}

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := New()

	assert.Error(t, s.AddJob("backup", "every day", func(ctx context.Context) {}))
	assert.Empty(t, s.ListJobs())
}

func TestAddJob_ReplacesSameName(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	require.NoError(t, s.AddJob("backup", "0 3 * * *", func(ctx context.Context) {}))
	daily := s.ListJobs()["backup"].NextRun

	require.NoError(t, s.AddJob("backup", "0 * * * *", func(ctx context.Context) {}))

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.False(t, jobs["backup"].NextRun.After(daily), "hourly run is never later than the daily one")
}

func TestRunNow(t *testing.T) {
	s := New()
	s.Start()

	ran := make(chan context.Context, 1)
	require.NoError(t, s.AddJob("backup", "0 3 * * *", func(ctx context.Context) {
		ran <- ctx
	}))
	require.NoError(t, s.RunNow("backup"))

	select {
	case ctx := <-ran:
		assert.NoError(t, ctx.Err(), "job runs with the live scheduler context")
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}

	<-s.Stop().Done()
}

func TestRunNow_UnknownJob(t *testing.T) {
	s := New()

	err := s.RunNow("backup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `job "backup" not found`)
}

func TestRunNow_AfterStop(t *testing.T) {
	s := New()
	require.NoError(t, s.AddJob("backup", "0 3 * * *", func(ctx context.Context) {}))
	<-s.Stop().Done()

	assert.Error(t, s.RunNow("backup"))
}

func TestStop_WaitsForManualRun(t *testing.T) {
	s := New()
	s.Start()

	var finished atomic.Bool
	started := make(chan struct{})
	require.NoError(t, s.AddJob("backup", "0 3 * * *", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}))
	require.NoError(t, s.RunNow("backup"))
	<-started

	select {
	case <-s.Stop().Done():
		assert.True(t, finished.Load(), "stop returned before the running pass")
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not complete")
	}
}

func TestStop_CancelsJobContext(t *testing.T) {
	s := New()
	s.Start()

	require.NoError(t, s.ctx.Err())
	<-s.Stop().Done()
	assert.ErrorIs(t, s.ctx.Err(), context.Canceled)
}

func TestValidate(t *testing.T) {
	valid := []string{
		"0 * * * *",
		"*/15 2-4 * * 1-5",
		"30 4 1,15 * *",
		"0 0 1 * *",
	}
	for _, schedule := range valid {
		assert.NoError(t, Validate(schedule), schedule)
	}

	invalid := []string{
		"",
		"0 * * *",
		"0 0 * * * *",
		"60 * * * *",
		"* 24 * * *",
		"@every",
	}
	for _, schedule := range invalid {
		assert.Error(t, Validate(schedule), schedule)
	}
}

func TestSlogLogger(t *testing.T) {
	// Must not panic with odd key/value lists
	slogLogger{}.Info("schedule", "now", time.Now())
	slogLogger{}.Error(context.Canceled, "panic", "odd")
}
