package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/localmind/assistant/internal/contextbuilder"
	"github.com/localmind/assistant/internal/memory"
	"github.com/localmind/assistant/internal/pipeline"
	"github.com/localmind/assistant/internal/telemetry"
	"github.com/localmind/assistant/internal/toolhub"
)

// Orchestrator drives one conversational turn through C3 (exactly once,
// per I8) and the four C4 stages, writing workspace entries at the points
// spec.md §4.3 requires: the user message, each tool result, and any
// approval request.
type Orchestrator struct {
	builder      *contextbuilder.Builder
	pipeline     *pipeline.Pipeline
	store        memory.Store
	toolRegistry *toolhub.Registry
	publisher    *telemetry.Publisher // may be nil; Process and ProcessStream do not publish through it
}

// New builds an Orchestrator.
func New(builder *contextbuilder.Builder, pipe *pipeline.Pipeline, store memory.Store, toolRegistry *toolhub.Registry, publisher *telemetry.Publisher) *Orchestrator {
	return &Orchestrator{builder: builder, pipeline: pipe, store: store, toolRegistry: toolRegistry, publisher: publisher}
}

// Process runs one turn synchronously (spec.md §4.3's process(request)).
func (o *Orchestrator) Process(ctx context.Context, req Request) (*FinalResponse, error) {
	resp, err := o.runTurn(ctx, req)
	if err != nil {
		_ = o.store.UpdateConversationStatus(ctx, req.ConversationID, "failed", "", err.Error())
		return nil, err
	}
	_ = o.store.UpdateConversationStatus(ctx, req.ConversationID, "succeeded", resp.Text, "")
	return resp, nil
}

// ProcessStream runs the identical turn as Process but delivers it as a
// cooperative event stream (spec.md §4.3's process_stream(request)).
// Parity with Process (I8) is structural: both call the same runTurn, so
// the assembled text and context_sources are always identical for the
// same request — ProcessStream only re-narrates that one result as
// sequenced events rather than computing anything differently.
func (o *Orchestrator) ProcessStream(ctx context.Context, req Request) (<-chan telemetry.Event, error) {
	events := make(chan telemetry.Event, 16)

	go func() {
		defer close(events)

		resp, err := o.runTurn(ctx, req)
		if err != nil {
			_ = o.store.UpdateConversationStatus(context.Background(), req.ConversationID, "failed", "", err.Error())
			events <- telemetry.Event{Type: telemetry.EventError, ConversationID: req.ConversationID,
				Payload: map[string]any{"error": err.Error()}}
			return
		}
		_ = o.store.UpdateConversationStatus(context.Background(), req.ConversationID, "succeeded", resp.Text, "")

		seq := 0
		emit := func(t string, payload map[string]any) {
			seq++
			events <- telemetry.Event{Type: t, ConversationID: req.ConversationID, SequenceNumber: seq, Payload: payload}
		}

		if len(resp.ReasoningSteps) > 0 {
			emit(telemetry.EventSequentialStart, nil)
			for _, s := range resp.ReasoningSteps {
				emit(telemetry.EventSequentialStep, map[string]any{"number": s.Number, "title": s.Title, "content": s.Content})
			}
			emit(telemetry.EventSequentialDone, nil)
		}

		if resp.Decision != nil {
			emit(telemetry.EventControl, map[string]any{"action": resp.Decision.Action, "reasons": resp.Decision.Reasons})
		}

		for _, tlEvent := range resp.ToolLoopEvents {
			emit(telemetry.EventContent, map[string]any{
				"tool": tlEvent.Call.Name, "result": tlEvent.Result.Content, "is_error": tlEvent.Result.IsError,
			})
		}

		emit(telemetry.EventContent, map[string]any{"text": resp.Text})
		emit(telemetry.EventDone, map[string]any{
			"context_sources": resp.ContextSources,
			"mode":            resp.ContextTrace.Mode,
			"retrieval_count": resp.ContextTrace.RetrievalCount,
			"context_chars":   resp.ContextTrace.ContextCharsFinal,
		})
	}()

	return events, nil
}

// runTurn is the single shared core both Process and ProcessStream call —
// the one place C3 is invoked and the one place workspace writes happen,
// so sync/stream parity (I8) and write ordering (I10) hold by
// construction rather than by keeping two implementations in sync.
func (o *Orchestrator) runTurn(ctx context.Context, req Request) (*FinalResponse, error) {
	now := time.Now()
	if err := o.store.AppendMessage(ctx, &memory.Message{
		ConversationID: req.ConversationID, Role: "user", Content: req.UserMessage, CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}
	if err := o.store.AppendWorkspaceEntry(ctx, &memory.WorkspaceEntry{
		ConversationID: req.ConversationID, EntryType: "user_message", SourceLayer: "orchestrator",
		Content: map[string]any{"text": req.UserMessage}, CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("persist user message workspace entry: %w", err)
	}

	// Tool-selector runs ahead of context assembly — the tool_catalogue
	// section of C3 renders whatever C4.0 already narrowed the full
	// catalogue down to (spec.md §4.1 item 5), not the raw catalogue.
	fullCatalogue := o.toolRegistry.List()
	selected, err := o.pipeline.Selector.Select(ctx, req.UserMessage, fullCatalogue)
	if err != nil {
		return nil, fmt.Errorf("tool selector: %w", err)
	}

	ctxResult, err := o.builder.BuildEffectiveContext(ctx, contextbuilder.Request{
		ConversationID: req.ConversationID,
		UserMessage:    req.UserMessage,
		ToolCatalogue:  toToolSummaries(selected),
		SkillNames:     req.SkillNames,
	}, req.Trigger, req.Mode)
	if err != nil {
		return nil, fmt.Errorf("context builder: %w", err)
	}

	plan, err := o.pipeline.Planner.Plan(ctx, req.UserMessage, ctxResult.Text)
	if err != nil {
		return nil, fmt.Errorf("thinking layer: %w", err)
	}

	decision, steps, err := o.pipeline.Critic.Decide(ctx, plan, plan.Reasoning)
	if err != nil {
		return nil, fmt.Errorf("control layer: %w", err)
	}

	resp := &FinalResponse{
		ContextSources: ctxResult.ContributingSources,
		SkippedSources: ctxResult.SkippedSources,
		ReasoningSteps: steps,
		Decision:       decision,
		ContextTrace: ContextTrace{
			Mode:                  ctxResult.Mode,
			ContextCharsFinal:     len(ctxResult.Text),
			RetrievalCount:        ctxResult.RetrievalCount,
			SkillsPrefetchUsed:    ctxResult.Flags.SkillsPrefetchUsed,
			DetectionRulesUsed:    ctxResult.Flags.DetectionRulesUsed,
			OutputReinjectionRisk: ctxResult.Flags.OutputReinjectionRisk,
			Truncated:             ctxResult.Flags.Truncated,
		},
	}

	// spec.md §4.1 Observability: "emit a one-line log marker on sync and
	// stream alike" — runTurn is the one place both call, so this fires
	// exactly once per turn regardless of which entry point was used.
	slog.Info("context built", "conversation_id", req.ConversationID, "mode", resp.ContextTrace.Mode,
		"context_sources", resp.ContextSources, "retrieval_count", resp.ContextTrace.RetrievalCount,
		"context_chars_final", resp.ContextTrace.ContextCharsFinal,
		"skills_prefetch_used", resp.ContextTrace.SkillsPrefetchUsed,
		"detection_rules_used", resp.ContextTrace.DetectionRulesUsed,
		"output_reinjection_risk", resp.ContextTrace.OutputReinjectionRisk,
		"truncated", resp.ContextTrace.Truncated)

	switch decision.Action {
	case pipeline.ControlActionEscalate:
		if err := o.store.AppendWorkspaceEntry(ctx, &memory.WorkspaceEntry{
			ConversationID: req.ConversationID, EntryType: "approval_requested", SourceLayer: "control_layer",
			Content: map[string]any{"reasons": decision.Reasons}, CreatedAt: time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("persist approval request: %w", err)
		}
		resp.Text = "This request requires approval before it can proceed."
		return resp, nil

	case pipeline.ControlActionBlock:
		resp.Text = "This request was blocked: " + strings.Join(decision.Reasons, "; ")
		return resp, nil
	}

	// never speculatively execute tools before the control layer approves
	// (spec.md §4.3) — Output.Run itself refuses anything but approve/warn.
	outResult, err := o.pipeline.Output.Run(ctx, plan, decision, selected, ctxResult.Text)
	if err != nil {
		return nil, fmt.Errorf("output layer: %w", err)
	}

	for _, ev := range outResult.ToolLoopEvents {
		rec := &memory.ToolCallRecord{
			ConversationID: req.ConversationID,
			ToolName:       ev.Call.Name,
			Args:           ev.Call.Arguments,
			Status:         toolCallStatus(ev.Result),
			CreatedAt:      time.Now(),
		}
		if ev.Result != nil {
			rec.Result = map[string]any{"content": ev.Result.Content}
			if ev.Result.IsError {
				rec.ErrorMessage = ev.Result.Content
			}
		}
		if err := o.store.CreateToolCallRecord(ctx, rec); err != nil {
			return nil, fmt.Errorf("persist tool call record: %w", err)
		}
		if err := o.store.AppendWorkspaceEntry(ctx, &memory.WorkspaceEntry{
			ConversationID: req.ConversationID, EntryType: "tool_result", SourceLayer: "output_layer",
			Content:   map[string]any{"tool": ev.Call.Name, "result": ev.Result.Content, "is_error": ev.Result.IsError},
			CreatedAt: time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("persist tool result workspace entry: %w", err)
		}
	}

	if err := o.store.AppendMessage(ctx, &memory.Message{
		ConversationID: req.ConversationID, Role: "assistant", Content: outResult.Text, CreatedAt: time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	resp.Text = outResult.Text
	resp.ToolLoopEvents = outResult.ToolLoopEvents
	resp.CodeModelUsed = outResult.CodeModelUsed
	return resp, nil
}

func toToolSummaries(tools []toolhub.ToolDescriptor) []contextbuilder.ToolSummary {
	out := make([]contextbuilder.ToolSummary, len(tools))
	for i, t := range tools {
		out[i] = contextbuilder.ToolSummary{Name: t.Name, Description: t.Description}
	}
	return out
}

func toolCallStatus(r *toolhub.ToolResult) string {
	if r == nil || r.IsError {
		return "error"
	}
	return "success"
}
