package digest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	calls []CycleSummary
}

func (f *fakeNotifier) NotifyCycle(_ context.Context, summary CycleSummary) error {
	f.calls = append(f.calls, summary)
	return nil
}

func TestWorkerRunNowExecutesOneCycleAndNotifies(t *testing.T) {
	now := time.Date(2026, 3, 5, 4, 0, 0, 0, time.UTC)
	events := []EventRecord{
		{ConversationID: "c1", Type: "chat", Hash: "h1", Timestamp: now},
	}
	runner, _ := newTestRunner(t, events, now)
	lock := NewLock(filepath.Join(t.TempDir(), "digest.lock"), time.Minute)
	notifier := &fakeNotifier{}
	worker := NewWorker(runner, lock, runner.cfg, notifier, "worker-1")

	require.NoError(t, worker.RunNow(context.Background()))

	summary, err := worker.LastResult()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Daily.Written)
	require.Len(t, notifier.calls, 1)

	held, _, _, _, statusErr := lock.Status()
	require.NoError(t, statusErr)
	assert.False(t, held, "lock must be released after RunNow")
}

func TestWorkerRunNowSkipsWithoutErrorWhenLockHeldByAnother(t *testing.T) {
	now := time.Date(2026, 3, 5, 4, 0, 0, 0, time.UTC)
	runner, _ := newTestRunner(t, nil, now)
	lockPath := filepath.Join(t.TempDir(), "digest.lock")
	lock := NewLock(lockPath, time.Hour)
	require.NoError(t, lock.Acquire("someone-else"))

	worker := NewWorker(runner, lock, runner.cfg, nil, "worker-1")
	err := worker.RunNow(context.Background())
	assert.NoError(t, err)
}

func TestWorkerDueNowMatchesScheduleHour(t *testing.T) {
	now := time.Date(2026, 3, 5, 4, 30, 0, 0, time.UTC)
	runner, _ := newTestRunner(t, nil, now)
	lock := NewLock(filepath.Join(t.TempDir(), "digest.lock"), time.Minute)
	worker := NewWorker(runner, lock, runner.cfg, nil, "worker-1")
	worker.clock = func() time.Time { return now }

	assert.True(t, worker.dueNow())

	worker.clock = func() time.Time { return now.Add(2 * time.Hour) }
	assert.False(t, worker.dueNow())
}

func TestWorkerStartStopIsGraceful(t *testing.T) {
	now := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC) // outside schedule hour
	runner, _ := newTestRunner(t, nil, now)
	lock := NewLock(filepath.Join(t.TempDir(), "digest.lock"), time.Minute)
	worker := NewWorker(runner, lock, runner.cfg, nil, "worker-1")
	worker.clock = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	cancel()
	worker.Stop()
}
