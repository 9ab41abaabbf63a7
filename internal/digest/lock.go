package digest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lockPayload is the content written into the lock file — enough to
// answer the runtime API's locking.{status,owner,since,stale} shape and
// to decide staleness without any extra stat-time bookkeeping.
type lockPayload struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock is the digest pipeline's advisory file lock (spec.md §5: "O_CREAT
// |O_EXCL to acquire; sidecar .takeover O_CREAT|O_EXCL serializes
// concurrent takeover attempts"). Exactly one owner holds it at a time
// (P7); a holder whose acquired_at has aged past timeout is stale and
// eligible for takeover.
type Lock struct {
	path        string
	takeoverPath string
	timeout     time.Duration
}

// NewLock builds a Lock rooted at path, with takeover attempts serialized
// through path+".takeover".
func NewLock(path string, timeout time.Duration) *Lock {
	return &Lock{path: path, takeoverPath: path + ".takeover", timeout: timeout}
}

// ErrLocked is returned by Acquire when the lock is held by a live owner.
var ErrLocked = fmt.Errorf("digest lock is held")

// Acquire tries to take the lock for owner. If the existing holder (if
// any) is stale — now - acquired_at >= timeout — Acquire attempts a
// takeover serialized by the .takeover sentinel so two stale-detecting
// processes can't both win the race (spec.md I6/P7).
func (l *Lock) Acquire(owner string) error {
	if err := l.tryCreate(l.path, owner); err == nil {
		return nil
	} else if !os.IsExist(err) {
		return fmt.Errorf("create digest lock: %w", err)
	}

	stale, err := l.isStale()
	if err != nil {
		return fmt.Errorf("check digest lock staleness: %w", err)
	}
	if !stale {
		return ErrLocked
	}

	return l.takeover(owner)
}

// Release removes the lock file. Safe to call even if the lock is not
// currently held (idempotent cleanup on shutdown).
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release digest lock: %w", err)
	}
	return nil
}

// Status reports the current lock state for the runtime API.
func (l *Lock) Status() (held bool, owner string, since time.Time, stale bool, err error) {
	payload, readErr := l.read()
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return false, "", time.Time{}, false, nil
		}
		return false, "", time.Time{}, false, fmt.Errorf("read digest lock: %w", readErr)
	}
	isStale := time.Since(payload.AcquiredAt) >= l.timeout
	return true, payload.Owner, payload.AcquiredAt, isStale, nil
}

func (l *Lock) isStale() (bool, error) {
	payload, err := l.read()
	if err != nil {
		if os.IsNotExist(err) {
			// the lock vanished between our failed create and this read —
			// treat as not stale so the caller just retries Acquire.
			return false, nil
		}
		return false, err
	}
	return time.Since(payload.AcquiredAt) >= l.timeout, nil
}

// takeover serializes concurrent stale-takeover attempts through an
// exclusive sentinel file: only the process that wins the sentinel
// create may remove and recreate the real lock file.
func (l *Lock) takeover(owner string) error {
	if err := l.tryCreate(l.takeoverPath, owner); err != nil {
		if os.IsExist(err) {
			return ErrLocked // another process is already taking over
		}
		return fmt.Errorf("create takeover sentinel: %w", err)
	}
	defer os.Remove(l.takeoverPath)

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale digest lock: %w", err)
	}
	if err := l.tryCreate(l.path, owner); err != nil {
		return fmt.Errorf("recreate digest lock after takeover: %w", err)
	}
	return nil
}

func (l *Lock) tryCreate(path, owner string) error {
	data, err := json.Marshal(lockPayload{Owner: owner, AcquiredAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal lock payload: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

func (l *Lock) read() (lockPayload, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return lockPayload{}, err
	}
	var payload lockPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return lockPayload{}, fmt.Errorf("parse lock payload: %w", err)
	}
	return payload, nil
}
