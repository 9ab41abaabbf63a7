package digest

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/localmind/assistant/internal/config"
)

// Notifier is told about each completed cycle; implementations post the
// digest-ready notification (notify.go's Slack-backed notifier, or a
// no-op in tests).
type Notifier interface {
	NotifyCycle(ctx context.Context, summary CycleSummary) error
}

// Worker is the digest pipeline's long-lived scheduling loop: a single
// inline goroutine or sidecar process (mutually exclusive via Lock) that
// fires the daily->weekly->archive cycle at ScheduleHour local time, and
// on demand via RunNow. Grounded on pkg/queue/worker.go's run loop,
// generalized from "poll for pending sessions" to "wake at 04:00 local,
// catch up on misses."
type Worker struct {
	runner   *Runner
	lock     *Lock
	cfg      *config.DigestConfig
	notifier Notifier
	owner    string
	clock    func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	lastRun  CycleSummary
	lastErr  error
}

// NewWorker builds a Worker. owner identifies this process/thread in the
// DigestLock payload. notifier may be nil (notifications disabled).
func NewWorker(runner *Runner, lock *Lock, cfg *config.DigestConfig, notifier Notifier, owner string) *Worker {
	return &Worker{
		runner:   runner,
		lock:     lock,
		cfg:      cfg,
		notifier: notifier,
		owner:    owner,
		clock:    time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the scheduling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the loop to exit and waits for it. Safe to call more than
// once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("component", "digest-worker", "owner", w.owner)
	log.Info("digest worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("digest worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, digest worker shutting down")
			return
		default:
			if w.dueNow() {
				if err := w.RunNow(ctx); err != nil {
					log.Error("digest cycle failed", "error", err)
				}
			}
			w.sleep(w.pollInterval())
		}
	}
}

// dueNow reports whether it is currently the scheduled hour. Called once
// per poll tick; the poll interval is short enough (minutes) that a
// single hour-long window is never missed entirely, and RunNow's own
// idempotent keys make a double-fire within the same hour harmless.
func (w *Worker) dueNow() bool {
	loc := w.runner.location()
	return w.clock().In(loc).Hour() == w.cfg.ScheduleHour
}

// RunNow acquires the digest lock and runs one cycle immediately,
// regardless of schedule. Used both by the scheduling loop and by an
// on-demand API trigger (spec.md §4.6: "also callable on demand").
func (w *Worker) RunNow(ctx context.Context) error {
	if err := w.lock.Acquire(w.owner); err != nil {
		if errors.Is(err, ErrLocked) {
			return nil // another owner is mid-cycle; not an error
		}
		return err
	}
	defer w.lock.Release()

	summary, err := w.runner.RunCycle(ctx)

	w.mu.Lock()
	w.lastRun = summary
	w.lastErr = err
	w.mu.Unlock()

	if err != nil {
		return err
	}

	if w.notifier != nil {
		if notifyErr := w.notifier.NotifyCycle(ctx, summary); notifyErr != nil {
			slog.Warn("digest notification failed", "error", notifyErr)
		}
	}
	return nil
}

// LastResult returns the most recently completed cycle's summary and
// error, for the runtime API (spec.md §6).
func (w *Worker) LastResult() (CycleSummary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun, w.lastErr
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollInterval is a fixed one-minute tick with jitter, fine-grained
// enough to catch the scheduled hour reliably without busy-looping.
func (w *Worker) pollInterval() time.Duration {
	const base = time.Minute
	const jitter = 5 * time.Second
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}
