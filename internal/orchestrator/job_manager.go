package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobManager runs long requests as deep jobs (spec.md §4.3): the caller
// gets a job id back immediately and polls JobManager.Status for the
// queued/running/succeeded/failed lifecycle, the same claim-then-run shape
// as tarsy's queue.Worker but in-process — single-process deployment is
// this system's scope (spec.md Non-goals exclude multi-pod horizontal
// scaling), so there is no DB-backed claim/lock here, only an in-memory
// registry guarded by a mutex.
type JobManager struct {
	orch *Orchestrator

	mu   sync.RWMutex
	jobs map[string]*JobStatus
}

// NewJobManager builds a JobManager over an Orchestrator.
func NewJobManager(orch *Orchestrator) *JobManager {
	return &JobManager{orch: orch, jobs: make(map[string]*JobStatus)}
}

// Submit enqueues req as a deep job and returns its id immediately. The job
// itself runs in the background, detached from ctx's cancellation — like a
// worker's terminal-status update, a deep job's outcome must still be
// recorded even if the submitting request's own context is gone.
func (m *JobManager) Submit(_ context.Context, req Request) (string, error) {
	jobID := uuid.New().String()

	m.mu.Lock()
	m.jobs[jobID] = &JobStatus{State: JobQueued}
	m.mu.Unlock()

	go m.run(jobID, req)

	return jobID, nil
}

func (m *JobManager) run(jobID string, req Request) {
	m.setState(jobID, JobRunning)
	start := time.Now()

	resp, err := m.orch.Process(context.Background(), req)
	durationMS := time.Since(start).Milliseconds()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.jobs[jobID] = &JobStatus{State: JobFailed, DurationMS: durationMS, Error: err.Error()}
		return
	}
	m.jobs[jobID] = &JobStatus{State: JobSucceeded, DurationMS: durationMS, Result: resp}
}

func (m *JobManager) setState(jobID string, state JobState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.jobs[jobID]; ok {
		existing.State = state
		return
	}
	m.jobs[jobID] = &JobStatus{State: state}
}

// Status returns the current status of a previously submitted job.
func (m *JobManager) Status(jobID string) (*JobStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %q not found", jobID)
	}
	copied := *status
	return &copied, nil
}
