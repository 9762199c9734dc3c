package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

type fakeReaper struct {
	maxAge  time.Duration
	removed int
	err     error
}

func (f *fakeReaper) CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int, error) {
	f.maxAge = maxAge
	return f.removed, f.err
}

func TestRegisterJob_RejectsBadSchedule(t *testing.T) {
	s := NewService(arbor.NewLogger())
	err := s.RegisterJob("bad", "every minute", "", func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestRegisterJob_Duplicate(t *testing.T) {
	s := NewService(arbor.NewLogger())
	noop := func(context.Context) error { return nil }
	require.NoError(t, s.RegisterJob("a", "*/5 * * * *", "", noop))
	assert.Error(t, s.RegisterJob("a", "*/5 * * * *", "", noop))
}

func TestRegisterCleanup_RunNow(t *testing.T) {
	s := NewService(arbor.NewLogger())
	reaper := &fakeReaper{removed: 2}

	require.NoError(t, s.RegisterCleanup(reaper, "*/15 * * * *", time.Hour))
	require.NoError(t, s.RunNow(CleanupJobName))
	assert.Equal(t, time.Hour, reaper.maxAge)

	status, err := s.GetJobStatus(CleanupJobName)
	require.NoError(t, err)
	assert.NotNil(t, status.LastRun)
	assert.Empty(t, status.LastError)
	assert.False(t, status.IsRunning)
}

func TestRunNow_RecordsFailure(t *testing.T) {
	s := NewService(arbor.NewLogger())
	reaper := &fakeReaper{err: errors.New("store closed")}

	require.NoError(t, s.RegisterCleanup(reaper, "*/15 * * * *", time.Hour))
	err := s.RunNow(CleanupJobName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store closed")
}

func TestRunNow_RecoversPanic(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.RegisterJob("boom", "*/5 * * * *", "", func(context.Context) error { panic("bad state") }))

	err := s.RunNow("boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: bad state")
}

func TestStartStop(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}

func TestRunNow_Unknown(t *testing.T) {
	s := NewService(arbor.NewLogger())
	assert.Error(t, s.RunNow("missing"))
}
