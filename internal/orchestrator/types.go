// Package orchestrator implements the Pipeline Orchestrator (C5, spec.md
// §4.3): the one place that drives the Context Builder (C3) and the
// Layered Pipeline (C4) for a single conversational turn, in both sync and
// streaming form, with identical results for identical input (I8) and
// workspace writes at the same points tarsy writes TimelineEvent/Message
// rows during its own chain execution.
package orchestrator

import (
	"github.com/localmind/assistant/internal/config"
	"github.com/localmind/assistant/internal/contextbuilder"
	"github.com/localmind/assistant/internal/pipeline"
)

// Request is one turn's input to the orchestrator.
type Request struct {
	ConversationID string
	UserMessage    string
	Mode           config.ContextMode
	Trigger        config.Trigger
	SkillNames     []string
}

// FinalResponse is the sync process() result (spec.md §4.3).
type FinalResponse struct {
	Text           string
	ContextSources []string
	SkippedSources []contextbuilder.SkipReason
	ReasoningSteps []pipeline.StepEvent
	Decision       *pipeline.ControlDecision
	ToolLoopEvents []pipeline.ToolLoopEvent
	CodeModelUsed  bool

	// ContextTrace is the Context Builder's full observability trace
	// (spec.md §4.1 Observability: mode, context_sources,
	// context_chars_final, retrieval_count, flags) — ContextSources and
	// SkippedSources above are kept as their own fields for callers that
	// only care about those, but ContextTrace carries the complete shape.
	ContextTrace ContextTrace
}

// ContextTrace mirrors contextbuilder.Result's trace fields onto the
// orchestrator's own response type, so callers outside internal/ never
// need to import internal/contextbuilder just to read the trace.
type ContextTrace struct {
	Mode                  config.ContextMode
	ContextCharsFinal     int
	RetrievalCount        int
	SkillsPrefetchUsed    bool
	DetectionRulesUsed    bool
	OutputReinjectionRisk bool
	Truncated             bool
}

// JobState is a deep job's lifecycle stage (spec.md §4.3 deep-job mode).
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// JobStatus is returned by status polling for a deep job.
type JobStatus struct {
	State      JobState
	DurationMS int64
	Result     *FinalResponse
	Error      string
}
