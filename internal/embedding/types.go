// Package embedding implements the Embedding Router (C9, spec.md §4.7):
// a policy-driven decision between a CPU and a GPU embedding target,
// backed by a short-TTL availability cache. The cache shape is
// pkg/runbook/cache.go's TTL map generalized from GitHub runbook content
// to per-target health booleans; the availability probe is
// pkg/mcp/health.go's periodic-check pattern generalized from ListTools
// to a short HTTP GET.
package embedding

import "time"

// Policy selects the router's target preference (spec.md §4.7).
type Policy string

const (
	PolicyCPUOnly   Policy = "cpu_only"
	PolicyPreferGPU Policy = "prefer_gpu"
	PolicyAuto      Policy = "auto"
)

// Target identifies an embedding backend.
type Target string

const (
	TargetCPU Target = "cpu"
	TargetGPU Target = "gpu"
)

// CallerRole identifies who is asking for a routing decision, carried
// through only for logging/metrics context (spec.md §4.7).
type CallerRole string

const (
	RoleArchiveEmbedding   CallerRole = "archive_embedding"
	RoleSQLMemoryEmbedding CallerRole = "sql_memory_embedding"
)

// Availability is the known-good/known-bad state of each target. A nil
// *Availability passed to Resolve means "unknown" — the router then
// probes its availability checker, and only when no checker is configured
// does it fall back to an optimistic all-available read.
type Availability struct {
	CPU bool
	GPU bool
}

// Decision is the Embedding Router's resolved routing outcome.
type Decision struct {
	EffectiveTarget Target
	FallbackReason  string // "gpu_down" when prefer_gpu/auto fell back to cpu
	HardError       bool
	ErrorCode       int // 503 when HardError
	LogLevel        string
}

// availabilityCacheTTL is the default per-target cache lifetime
// (spec.md §5: "Embedding availability cache: TTL 30s per target").
const availabilityCacheTTL = 30 * time.Second
