package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ReasoningStepPattern is the fixed regex contract for "## Step N: Title"
// stream events (spec.md §4.2.2) — both the emitter here and any
// downstream stream consumer parse against exactly this anchor, the same
// deterministic-line-marker discipline tarsy's ParseReActResponse uses for
// its own "Thought:"/"Action:"/"Final Answer:" sections.
var ReasoningStepPattern = regexp.MustCompile(`(?m)^##\s*Step\s+(\d+):\s*(.*)$`)

// ParseReasoningSteps extracts structured steps from raw control-layer
// stream text. Returns nil when no step markers are present (short plans
// never go through the deep-reasoning path).
func ParseReasoningSteps(text string) []StepEvent {
	matches := ReasoningStepPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	steps := make([]StepEvent, 0, len(matches))
	for i, m := range matches {
		var num int
		fmt.Sscanf(text[m[2]:m[3]], "%d", &num)
		title := strings.TrimSpace(text[m[4]:m[5]])
		contentEnd := len(text)
		if i+1 < len(matches) {
			contentEnd = matches[i+1][0]
		}
		content := strings.TrimSpace(text[m[1]:contentEnd])
		steps = append(steps, StepEvent{Number: num, Title: title, Content: content})
	}
	return steps
}

// defaultBlockedPatterns is the basic safety pre-filter — pattern_check,
// spec.md §4.2.2 — a fast reject before the Skill Authority is ever
// consulted.
var defaultBlockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rm\s+-rf\s+/`),
	regexp.MustCompile(`(?i)\bsudo\s+shutdown\b`),
	regexp.MustCompile(`(?i)\bdrop\s+table\b`),
	regexp.MustCompile(`:\(\)\{.*:\|.*&.*\};:`), // fork bomb shape
}

// SkillAuthority is the narrow seam to the Skill Authority (C6), consulted
// whenever a plan carries a skill-mutating intent.
type SkillAuthority interface {
	Decide(ctx context.Context, intent string, plan *Plan) (*ControlDecision, error)
}

// skillMutatingIntents lists the Plan.Intent values that require Skill
// Authority consultation before approval.
var skillMutatingIntents = map[string]bool{
	"create_skill": true,
	"install_skill": true,
	"update_skill": true,
	"delete_skill":  true,
}

// Critic is the control layer (C4.2, spec.md §4.2.2): within one request,
// pattern_check always precedes authority_decision.
type Critic struct {
	authority SkillAuthority
}

// NewCritic builds a Critic. authority may be nil for deployments that
// never register skill-mutating intents (any skill-mutating plan is then
// fail-closed rather than silently approved).
func NewCritic(authority SkillAuthority) *Critic {
	return &Critic{authority: authority}
}

// Decide runs the initial -> pattern_check -> (blocked|allow) ->
// authority_decision -> terminal state machine. Short-circuits to a
// trivial approve when the plan has low hallucination risk and no
// skill-mutating intent, skipping deep reasoning entirely.
func (c *Critic) Decide(ctx context.Context, plan *Plan, streamText string) (*ControlDecision, []StepEvent, error) {
	if plan.HallucinationRisk == HallucinationRiskLow && !skillMutatingIntents[plan.Intent] {
		return &ControlDecision{Action: ControlActionApprove, Passed: true, Source: "control_layer", PolicyVersion: "v1"}, nil, nil
	}

	steps := ParseReasoningSteps(streamText)

	if blocked, reason := matchesBlockedPattern(plan.Reasoning); blocked {
		return &ControlDecision{
			Action: ControlActionBlock, Passed: false, Source: "control_layer",
			PolicyVersion: "v1", Reasons: []string{reason},
		}, steps, nil
	}

	if !skillMutatingIntents[plan.Intent] {
		return &ControlDecision{Action: ControlActionApprove, Passed: true, Source: "control_layer", PolicyVersion: "v1"}, steps, nil
	}

	// authority_decision — a skill-mutating intent always defers to the
	// Skill Authority; a missing authority or a fail-closed answer from it
	// is itself a block, never a silent approve.
	if c.authority == nil {
		return &ControlDecision{
			Action: ControlActionBlock, Passed: false, Source: "control_layer",
			Reasons: []string{"missing_authority_decision"},
		}, steps, nil
	}
	decision, err := c.authority.Decide(ctx, plan.Intent, plan)
	if err != nil {
		return nil, steps, fmt.Errorf("authority decision: %w", err)
	}
	if decision.IsFailClosed("") {
		return &ControlDecision{
			Action: ControlActionBlock, Passed: false, Source: "control_layer",
			Reasons: []string{"missing_authority_decision"},
		}, steps, nil
	}
	return decision, steps, nil
}

func matchesBlockedPattern(text string) (bool, string) {
	for _, p := range defaultBlockedPatterns {
		if p.MatchString(text) {
			return true, "blocked pattern matched: " + p.String()
		}
	}
	return false, ""
}
