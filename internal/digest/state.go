// Package digest implements the Digest Pipeline (C8, spec.md §4.6):
// periodically compacting an event log into daily, weekly, and archive
// digests, robust to restarts and clock skew. The scheduling shape —
// long-lived goroutine, graceful stop, jittered poll — is
// pkg/queue/worker.go's polling loop generalized from "poll for pending
// alert sessions" to "run at 04:00 local, catch up on misses"; the
// atomic DigestState write is the same temp-file-then-rename durability
// idiom used throughout this repo (internal/skillauthority's registry,
// grounded on the retrieval pack's document_store.go).
package digest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RetryPolicy tracks one cycle's retry state machine: None -> retry ->
// ok|failed (spec.md §5).
type RetryPolicy string

const (
	RetryNone   RetryPolicy = ""
	RetryRetry  RetryPolicy = "retry"
	RetryOK     RetryPolicy = "ok"
	RetryFailed RetryPolicy = "failed"
)

// CycleState is one of {daily, weekly, archive}'s persisted status.
type CycleState struct {
	Status      string      `json:"status"`
	Reason      string      `json:"reason,omitempty"`
	RetryPolicy RetryPolicy `json:"retry_policy,omitempty"`
	Timestamp   time.Time   `json:"ts"`
}

// CatchUp records the most recent catch-up pass's outcome.
type CatchUp struct {
	MissedRuns int    `json:"missed_runs"`
	Recovered  int    `json:"recovered"`
	Generated  int    `json:"generated"`
	Mode       string `json:"mode,omitempty"` // "full" | "cap"
}

// JITInfo records the most recent just-in-time typed-state render.
type JITInfo struct {
	Trigger string    `json:"trigger,omitempty"`
	Rows    int       `json:"rows"`
	Ts      time.Time `json:"ts"`
}

// State is the v2 DigestState schema (spec.md §3): the runtime API and
// the digest worker's own persisted view of the last run of each cycle.
type State struct {
	SchemaVersion int        `json:"schema_version"`
	Cycles        CycleSet   `json:"cycles"`
	CatchUpInfo   CatchUp    `json:"catch_up"`
	JIT           JITInfo    `json:"jit"`
}

// CycleSet is the {daily, weekly, archive} status triple.
type CycleSet struct {
	Daily   CycleState `json:"daily"`
	Weekly  CycleState `json:"weekly"`
	Archive CycleState `json:"archive"`
}

// stateV1 is the legacy on-disk shape this package migrates from. v1 had
// no catch_up/jit sections and used bare top-level fields instead of a
// cycles object.
type stateV1 struct {
	Daily   CycleState `json:"daily"`
	Weekly  CycleState `json:"weekly"`
	Archive CycleState `json:"archive"`
}

// NewState returns a freshly initialized v2 state with every cycle unset.
func NewState() *State {
	return &State{SchemaVersion: 2}
}

// Store is the file-backed DigestState truth store. Reads auto-migrate a
// v1 file to v2 in memory (the on-disk file is only rewritten v2 on the
// next Save, keeping migration itself pure — no I/O beyond the state
// file, per spec.md §5: "Keep migration pure").
type Store struct {
	path string
}

// NewStore builds a Store rooted at path (conventionally
// memory_speicher/digest_state.json).
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the current state, migrating v1 -> v2 if necessary. A
// missing file yields a fresh v2 state, not an error.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read digest state: %w", err)
	}

	var probe struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse digest state: %w", err)
	}

	if probe.SchemaVersion >= 2 {
		var st State
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("parse v2 digest state: %w", err)
		}
		return &st, nil
	}

	var v1 stateV1
	if err := json.Unmarshal(data, &v1); err != nil {
		return nil, fmt.Errorf("parse v1 digest state: %w", err)
	}
	return migrateV1ToV2(&v1), nil
}

func migrateV1ToV2(v1 *stateV1) *State {
	return &State{
		SchemaVersion: 2,
		Cycles: CycleSet{
			Daily:   v1.Daily,
			Weekly:  v1.Weekly,
			Archive: v1.Archive,
		},
	}
}

// Save writes st atomically: marshal -> temp file -> fsync -> rename, so
// a reader never observes a partial write nor a schema_version < 2
// (spec.md invariants I5/P6). The writer always emits v2 regardless of
// what was loaded.
func (s *Store) Save(st *State) error {
	st.SchemaVersion = 2

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal digest state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create digest state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp digest state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp digest state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsync temp digest state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp digest state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename digest state file: %w", err)
	}
	return nil
}
