package digest

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digest.lock")
	lock := NewLock(path, time.Minute)

	require.NoError(t, lock.Acquire("owner-a"))
	held, owner, _, stale, err := lock.Status()
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, "owner-a", owner)
	assert.False(t, stale)

	require.NoError(t, lock.Release())
	held, _, _, _, err = lock.Status()
	require.NoError(t, err)
	assert.False(t, held)
}

func TestLockAcquireFailsWhileFreshlyHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digest.lock")
	lock := NewLock(path, time.Minute)

	require.NoError(t, lock.Acquire("owner-a"))
	err := lock.Acquire("owner-b")
	assert.True(t, errors.Is(err, ErrLocked))
}

func TestLockTakeoverSucceedsWhenStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digest.lock")
	lock := NewLock(path, time.Millisecond)

	require.NoError(t, lock.Acquire("owner-a"))
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, lock.Acquire("owner-b"))
	_, owner, _, _, err := lock.Status()
	require.NoError(t, err)
	assert.Equal(t, "owner-b", owner)
}

func TestLockStatusOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digest.lock")
	lock := NewLock(path, time.Minute)

	held, owner, _, stale, err := lock.Status()
	require.NoError(t, err)
	assert.False(t, held)
	assert.Empty(t, owner)
	assert.False(t, stale)
}

func TestLockReleaseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digest.lock")
	lock := NewLock(path, time.Minute)
	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release())
}

func TestLockTakeoverBlockedByConcurrentSentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digest.lock")
	lock := NewLock(path, time.Millisecond)

	require.NoError(t, lock.Acquire("owner-a"))
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, lock.tryCreate(lock.takeoverPath, "owner-c"))
	defer func() { _ = lock.Release() }()

	err := lock.Acquire("owner-b")
	assert.True(t, errors.Is(err, ErrLocked))
}
