package pipeline

import (
	"context"
	"fmt"

	"github.com/localmind/assistant/internal/config"
	"github.com/localmind/assistant/internal/toolhub"
)

// Pipeline composes the four layered-pipeline stages (C4, spec.md §4.2) in
// their fixed order: tool-selector, thinking, control, output. The
// orchestrator (C5) drives it once per turn with the context C3 already
// built.
type Pipeline struct {
	Selector *ToolSelector
	Planner  *Planner
	Critic   *Critic
	Output   *Output
}

// New builds a Pipeline from config and its collaborators.
func New(cfg *config.PipelineConfig, llm LLMClient, authority SkillAuthority, model OutputModel, tools *toolhub.Registry, persona func(string) string) *Pipeline {
	return &Pipeline{
		Selector: NewToolSelector(cfg.ToolSelectorTopK, cfg.ToolSelectorMax),
		Planner:  NewPlanner(llm, cfg.PlanParseRetries),
		Critic:   NewCritic(authority),
		Output:   NewOutput(model, tools, cfg.MaxToolLoops, persona),
	}
}

// Turn is one request's full run through all four stages. Result is nil
// when the control layer did not approve/warn — the orchestrator decides
// what a block or escalate outcome means for the caller (return the
// reasons, or persist an approval request) rather than this package
// guessing at it.
type Turn struct {
	Plan           *Plan
	Decision       *ControlDecision
	ReasoningSteps []StepEvent
	SelectedTools  []toolhub.ToolDescriptor
	Result         *OutputResult
}

// Run executes tool-selector -> thinking -> control -> output for one
// turn, never speculatively invoking the output layer before the control
// layer has approved (spec.md §4.3).
func (p *Pipeline) Run(ctx context.Context, query, contextText string, catalogue []toolhub.ToolDescriptor) (*Turn, error) {
	selected, err := p.Selector.Select(ctx, query, catalogue)
	if err != nil {
		return nil, fmt.Errorf("tool selector: %w", err)
	}

	plan, err := p.Planner.Plan(ctx, query, contextText)
	if err != nil {
		return nil, fmt.Errorf("thinking layer: %w", err)
	}

	decision, steps, err := p.Critic.Decide(ctx, plan, plan.Reasoning)
	if err != nil {
		return nil, fmt.Errorf("control layer: %w", err)
	}

	turn := &Turn{Plan: plan, Decision: decision, ReasoningSteps: steps, SelectedTools: selected}
	if decision.Action != ControlActionApprove && decision.Action != ControlActionWarn {
		return turn, nil
	}

	result, err := p.Output.Run(ctx, plan, decision, selected, contextText)
	if err != nil {
		return nil, fmt.Errorf("output layer: %w", err)
	}
	turn.Result = result
	return turn, nil
}
