package pipeline

import (
	"context"
	"fmt"

	"github.com/localmind/assistant/internal/toolhub"
)

// Message is one turn in the output layer's running conversation.
type Message struct {
	Role    string // "system", "user", "assistant", "tool"
	Content string
}

// ModelResponse is one generate call's raw output: either a final answer
// (Text, ToolCall nil) or a requested tool call.
type ModelResponse struct {
	Text     string
	ToolCall *toolhub.ToolCall
}

// OutputModel is the narrow seam to the generation backend used by the
// output layer. Separate from LLMClient because it must translate the
// tool catalogue into the runtime's native tool-calling schema and honor
// a code-model switch, not just do single-shot text generation.
type OutputModel interface {
	Generate(ctx context.Context, messages []Message, tools []toolhub.ToolDescriptor, useCodeModel bool) (*ModelResponse, error)
}

// ToolLoopEvent is emitted at each iteration of the output layer's tool
// loop, for the orchestrator to forward as stream events.
type ToolLoopEvent struct {
	Iteration int
	Call      toolhub.ToolCall
	Result    *toolhub.ToolResult
}

// OutputResult is the output layer's final outcome for one turn.
type OutputResult struct {
	Text           string
	ToolLoopEvents []ToolLoopEvent
	CodeModelUsed  bool
}

// codeIntents marks the Plan intents that switch the output layer to the
// code-specialized model (spec.md §4.2.3).
var codeIntents = map[string]bool{
	"write_code":    true,
	"debug_code":    true,
	"refactor_code": true,
	"review_code":   true,
}

// Output is the output layer (C4.3, spec.md §4.2.3): translates the tool
// catalogue, runs the bounded tool loop, and applies persona styling.
type Output struct {
	model        OutputModel
	tools        *toolhub.Registry
	maxToolLoops int
	persona      func(string) string
}

// NewOutput builds an Output. persona may be nil for an identity styling
// pass.
func NewOutput(model OutputModel, tools *toolhub.Registry, maxToolLoops int, persona func(string) string) *Output {
	if persona == nil {
		persona = func(s string) string { return s }
	}
	return &Output{model: model, tools: tools, maxToolLoops: maxToolLoops, persona: persona}
}

// Run executes the output layer's bounded tool loop. decision must already
// be approve/warn — Run never second-guesses a control decision and never
// calls a tool before being invoked with one; the caller (the
// orchestrator) is responsible for never reaching Run with a block or
// escalate outcome.
func (o *Output) Run(ctx context.Context, plan *Plan, decision *ControlDecision, catalogue []toolhub.ToolDescriptor, contextText string) (*OutputResult, error) {
	if decision == nil || (decision.Action != ControlActionApprove && decision.Action != ControlActionWarn) {
		return nil, fmt.Errorf("output layer invoked without an approved control decision (action=%q)", decisionActionOf(decision))
	}

	messages := []Message{
		{Role: "system", Content: "You are a local-first assistant. Respond precisely using the provided context."},
		{Role: "user", Content: contextText},
	}
	useCodeModel := codeIntents[plan.Intent]
	result := &OutputResult{CodeModelUsed: useCodeModel}

	for i := 0; i < o.maxToolLoops; i++ {
		resp, err := o.model.Generate(ctx, messages, catalogue, useCodeModel)
		if err != nil {
			return nil, fmt.Errorf("output layer generate: %w", err)
		}
		if resp.ToolCall == nil {
			result.Text = o.persona(resp.Text)
			return result, nil
		}

		toolResult, err := o.tools.Execute(ctx, *resp.ToolCall)
		if err != nil {
			return nil, fmt.Errorf("tool execution: %w", err)
		}
		result.ToolLoopEvents = append(result.ToolLoopEvents, ToolLoopEvent{
			Iteration: i + 1, Call: *resp.ToolCall, Result: toolResult,
		})
		messages = append(messages,
			Message{Role: "assistant", Content: fmt.Sprintf("(tool call: %s)", resp.ToolCall.Name)},
			Message{Role: "tool", Content: toolResult.Content},
		)
	}

	// MAX_TOOL_LOOPS reached without a final answer — force one more
	// generate call with no tools offered, the same forced-conclusion
	// shape as ReAct's forceConclusion.
	resp, err := o.model.Generate(ctx, messages, nil, useCodeModel)
	if err != nil {
		return nil, fmt.Errorf("output layer forced conclusion: %w", err)
	}
	result.Text = o.persona(resp.Text)
	return result, nil
}

func decisionActionOf(d *ControlDecision) ControlAction {
	if d == nil {
		return ""
	}
	return d.Action
}
