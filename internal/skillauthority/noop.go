package skillauthority

import (
	"context"
	"log/slog"
)

// LogGraphIndexEnqueuer logs the best-effort graph-index sync request
// (spec.md §4.4 flow step 7) instead of placing it on a real queue. A
// production deployment would hand this to pkg/queue's worker pool the
// way tarsy enqueues alert-session work, but internal/graphhygiene (C7)
// has no async ingestion path of its own to enqueue onto — it runs as a
// synchronous batch pass (internal/graphhygiene's own DESIGN.md entry) —
// so there is nothing downstream yet for a real queue to feed.
type LogGraphIndexEnqueuer struct{}

// NewLogGraphIndexEnqueuer builds a LogGraphIndexEnqueuer.
func NewLogGraphIndexEnqueuer() *LogGraphIndexEnqueuer {
	return &LogGraphIndexEnqueuer{}
}

func (LogGraphIndexEnqueuer) EnqueueSync(_ context.Context, skillKey string) error {
	slog.Info("graph index sync requested", "skill_key", skillKey)
	return nil
}

// UnavailableExecutor rejects every Create call. Standing up a real
// Executor means driving an actual skill runtime (container build +
// deploy) — out of scope per spec.md §1's Non-goals the way a new
// storage engine or a browser UI are. Wiring a real skill runtime is
// future work tracked outside this repo.
type UnavailableExecutor struct{}

// NewUnavailableExecutor builds an UnavailableExecutor.
func NewUnavailableExecutor() *UnavailableExecutor {
	return &UnavailableExecutor{}
}

func (UnavailableExecutor) Create(_ context.Context, _ ExecutorCreateRequest) (*ExecutorResult, error) {
	return &ExecutorResult{Accepted: false, RejectReason: "skill runtime not configured"}, nil
}
