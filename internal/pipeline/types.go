// Package pipeline implements the Layered Pipeline (C4, spec.md §4.2): four
// stages — tool-selector, thinking (planner), control (critic), output —
// run in a fixed order for every turn. Each stage is independently
// testable and exchanges only the typed values defined here, the same way
// tarsy's pkg/agent/controller stages exchange ExecutionContext/
// ExecutionResult without reaching into each other's internals.
package pipeline

import "context"

// HallucinationRisk is the Plan's self-reported confidence tier.
type HallucinationRisk string

const (
	HallucinationRiskLow    HallucinationRisk = "low"
	HallucinationRiskMedium HallucinationRisk = "med"
	HallucinationRiskHigh   HallucinationRisk = "high"
)

// Plan is the thinking layer's immutable output (spec.md §3/§4.2.1).
type Plan struct {
	Intent            string
	SuggestedTools    []string
	NeedsMemory       bool
	NeedsChatHistory  bool
	NeedsContainer    bool
	ContainerName     string
	Complexity        int // 1-10
	HallucinationRisk HallucinationRisk
	Reasoning         string
}

// safeDefaultPlan is returned when the planner's JSON output can't be
// parsed even after the configured retries (spec.md §4.2.1).
func safeDefaultPlan() *Plan {
	return &Plan{
		Complexity:        1,
		NeedsMemory:       false,
		NeedsChatHistory:  false,
		HallucinationRisk: HallucinationRiskMedium,
	}
}

// ControlAction is the control layer's (or Skill Authority's) verdict.
type ControlAction string

const (
	ControlActionApprove  ControlAction = "approve"
	ControlActionWarn     ControlAction = "warn"
	ControlActionBlock    ControlAction = "block"
	ControlActionEscalate ControlAction = "escalate"
)

// ControlDecision is produced by the control layer or the Skill Authority
// (C6). Fail-closed: an absent, empty-action, or source-mismatched
// decision is always equivalent to block (spec.md §3).
type ControlDecision struct {
	Action        ControlAction
	Passed        bool
	Source        string
	PolicyVersion string
	Reasons       []string
}

// IsFailClosed reports whether d must collapse to a block outcome: nil,
// empty action, or (when expectedSource is non-empty) a source mismatch.
func (d *ControlDecision) IsFailClosed(expectedSource string) bool {
	if d == nil || d.Action == "" {
		return true
	}
	if expectedSource != "" && d.Source != expectedSource {
		return true
	}
	return false
}

// StepEvent is one structured reasoning step the control layer emits for
// sufficiently complex plans ("## Step N: Title" stream events).
type StepEvent struct {
	Number  int
	Title   string
	Content string
}

// LLMClient is the narrow single-shot generation seam used by the thinking
// layer; the tool-selector does not call it. LLM inference
// itself stays out of scope (spec.md §1); this is only the contract.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}
