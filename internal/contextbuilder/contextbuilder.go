// Package contextbuilder composes the single block of context text handed
// to the Layered Pipeline (C3, spec.md §4.1). BuildEffectiveContext is the
// only entry point — no other package is allowed to assemble multi-source
// prompt text itself, the same "one seam for composition" discipline
// tarsy's pkg/agent/prompt.PromptBuilder enforces for its own prompts.
package contextbuilder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/localmind/assistant/internal/config"
	"github.com/localmind/assistant/internal/memory"
	"github.com/localmind/assistant/internal/telemetry"
)

// Request is the caller-supplied input to a context build.
type Request struct {
	ConversationID string
	UserMessage    string
	ToolCatalogue  []ToolSummary // name + description pairs, pre-ranked by the tool-selector stage
	SkillNames     []string      // active skill names eligible for this request
}

// ToolSummary is the minimal tool-catalogue entry the context builder
// renders — full schemas stay with the tool hub.
type ToolSummary struct {
	Name        string
	Description string
}

// Flags are the named observability signals spec.md §4.1 requires on every
// trace, alongside mode/context_sources/context_chars_final/retrieval_count.
type Flags struct {
	SkillsPrefetchUsed    bool // skill_catalogue contributed to the final text
	DetectionRulesUsed    bool // the RULES block contributed to the final text
	OutputReinjectionRisk bool // a NOW entry traces back to the output layer
	Truncated             bool // the "impossible by construction" hard-cap fallback fired
}

// Result is the built context plus an observability trace (spec.md §4.1's
// "observability trace" requirement): which sources contributed, which
// were skipped and why, the final size after capping, and the named flags.
type Result struct {
	Text                string
	ContributingSources []string
	SkippedSources      []SkipReason
	TruncatedChars      int // 0 if the hard cap dropped no characters
	Mode                config.ContextMode
	RetrievalCount      int
	Flags               Flags
}

// SkipReason records why a source did not contribute, for the trace.
type SkipReason struct {
	Source string
	Reason string
}

// Builder assembles effective context from the memory store and live
// request data.
type Builder struct {
	store  memory.Store
	config *config.ContextBuilderConfig
}

// New builds a Builder.
func New(store memory.Store, cfg *config.ContextBuilderConfig) *Builder {
	return &Builder{store: store, config: cfg}
}

// renderedSection is one section that survived its own render pass, in
// final composition order.
type renderedSection struct {
	name string
	text string
}

// step is one of the 9 fixed sources (spec.md §4.1). Ordering of the slice
// built in BuildEffectiveContext IS the render order — section 6 (skills)
// and sections 2/3/9 (NOW/RULES/NEXT) all route through renderStateBlock,
// the one channel typed state and the skills catalog share.
type step struct {
	name   string
	render func() (string, int, error)
}

// BuildEffectiveContext runs the full normalize → dedupe(window) →
// correlate → select_top(budget) → render → hard-cap pipeline spec.md
// §4.1 describes and returns the composed text plus its trace. A source
// that errors is fail-closed: it is omitted from the text (never guessed
// at) and recorded in SkippedSources — one bad source must never block the
// rest of the context from being usable. The one exception is NOW, whose
// own render failure falls back to a minimal block instead of disappearing
// (spec.md §4.1 failure semantics).
func (b *Builder) BuildEffectiveContext(ctx context.Context, req Request, trigger config.Trigger, mode config.ContextMode) (*Result, error) {
	result := &Result{Mode: mode}

	nowItems, rulesItems, nextItems, reinjectionRisk, typedErr := b.fetchTypedStateBuckets(ctx)
	typedStateRetrieval := 0
	if typedErr == nil {
		typedStateRetrieval = len(nowItems) + len(rulesItems) + len(nextItems)
		result.Flags.OutputReinjectionRisk = reinjectionRisk
	}

	steps := []step{
		{"system_persona", func() (string, int, error) { return renderSystemPersona(), 0, nil }},
		{"now", func() (string, int, error) {
			if b.config.TypedState.Mode == config.TypedStateShadow {
				return "", 0, nil
			}
			if typedErr != nil {
				return renderStateBlock("NOW", []string{"(state unavailable)"}), 0, nil
			}
			return renderStateBlock("NOW", nowItems), 0, nil
		}},
		{"rules", func() (string, int, error) {
			if b.config.TypedState.Mode == config.TypedStateShadow {
				return "", 0, nil
			}
			if typedErr != nil {
				return "", 0, typedErr
			}
			return renderStateBlock("RULES", rulesItems), 0, nil
		}},
		{"active_containers", func() (string, int, error) { return renderActiveContainers(ctx, b, req) }},
		{"tool_catalogue", func() (string, int, error) { return renderToolCatalogue(req), 0, nil }},
		{"skill_catalogue", func() (string, int, error) { return renderStateBlock("SKILLS", req.SkillNames), 0, nil }},
		{"cross_conversation_facts", func() (string, int, error) { return renderCrossConversationFacts(ctx, b, req, trigger) }},
		{"recent_chat_turns", func() (string, int, error) { return renderRecentChatTurns(ctx, b, req) }},
		{"next", func() (string, int, error) {
			if b.config.TypedState.Mode == config.TypedStateShadow {
				return "", 0, nil
			}
			if typedErr != nil {
				return "", 0, typedErr
			}
			return renderStateBlock("NEXT", nextItems), 0, nil
		}},
	}

	var rendered []renderedSection
	retrieval := typedStateRetrieval
	for _, st := range steps {
		if mode == config.ContextModeSmallModel && skipForSmallModel(st.name) {
			result.SkippedSources = append(result.SkippedSources, SkipReason{st.name, "small_model mode omits this section"})
			continue
		}
		if mode == config.ContextModeFailureCompact && skipForFailureCompact(st.name) {
			result.SkippedSources = append(result.SkippedSources, SkipReason{st.name, "failure_compact mode omits this section"})
			continue
		}
		if st.name == "cross_conversation_facts" && trigger == config.TriggerNone {
			result.SkippedSources = append(result.SkippedSources, SkipReason{st.name, "no JIT trigger active"})
			continue
		}

		text, n, err := st.render()
		retrieval += n
		if err != nil {
			result.SkippedSources = append(result.SkippedSources, SkipReason{st.name, err.Error()})
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			result.SkippedSources = append(result.SkippedSources, SkipReason{st.name, "empty after render"})
			continue
		}
		rendered = append(rendered, renderedSection{st.name, text})
		result.ContributingSources = append(result.ContributingSources, st.name)
	}
	result.RetrievalCount = retrieval

	text, dropped, truncatedChars, truncated := applyHardCap(rendered, b.config.FinalCapChars)
	result.Text = text
	result.TruncatedChars = truncatedChars
	result.Flags.Truncated = truncated
	if len(dropped) > 0 {
		droppedSet := make(map[string]bool, len(dropped))
		for _, name := range dropped {
			droppedSet[name] = true
			result.SkippedSources = append(result.SkippedSources, SkipReason{name, "dropped by hard cap"})
		}
		kept := result.ContributingSources[:0]
		for _, name := range result.ContributingSources {
			if !droppedSet[name] {
				kept = append(kept, name)
			}
		}
		result.ContributingSources = kept
	}

	for _, name := range result.ContributingSources {
		switch name {
		case "skill_catalogue":
			result.Flags.SkillsPrefetchUsed = true
		case "rules":
			result.Flags.DetectionRulesUsed = true
		}
	}

	return result, nil
}

func skipForSmallModel(name string) bool {
	switch name {
	case "cross_conversation_facts", "skill_catalogue":
		return true
	default:
		return false
	}
}

func skipForFailureCompact(name string) bool {
	switch name {
	case "tool_catalogue", "skill_catalogue", "cross_conversation_facts":
		return true
	default:
		return false
	}
}

// dropPriority is hard-cap's reverse-priority drop order (spec.md §4.1):
// "drop whole sections in this reverse-priority order: chat history →
// facts → skills → tools → RULES → NOW". system_persona, active_containers,
// and NEXT are never dropped — they carry no per-item volume to shed.
var dropPriority = []string{"recent_chat_turns", "cross_conversation_facts", "skill_catalogue", "tool_catalogue", "rules", "now"}

func joinSections(sections []renderedSection) string {
	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = s.text
	}
	return strings.Join(parts, "\n\n")
}

// applyHardCap enforces FinalCapChars by dropping whole sections in
// dropPriority order before ever truncating text mid-section (spec.md
// §4.1: "never truncate mid-token of a section unless only one remains").
// Exceeding the cap after every droppable section is gone is impossible
// by construction per spec; if it still happens the last remaining
// section is tail-truncated, the composed text is cut at the cap if it is
// still longer, and the truncated flag is set.
func applyHardCap(kept []renderedSection, limit int) (text string, dropped []string, truncatedChars int, truncated bool) {
	if limit <= 0 {
		return joinSections(kept), nil, 0, false
	}
	full := joinSections(kept)
	if len(full) <= limit {
		return full, nil, 0, false
	}

	for _, name := range dropPriority {
		idx := -1
		for i, s := range kept {
			if s.name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		kept = append(kept[:idx:idx], kept[idx+1:]...)
		dropped = append(dropped, name)
		full = joinSections(kept)
		if len(full) <= limit {
			return full, dropped, 0, false
		}
	}

	if len(kept) == 0 {
		return "", dropped, 0, false
	}
	last := kept[len(kept)-1]
	overage := len(full) - limit
	if overage > len(last.text) {
		overage = len(last.text)
	}
	kept[len(kept)-1] = renderedSection{last.name, last.text[:len(last.text)-overage]}
	out := joinSections(kept)
	if len(out) > limit {
		overage += len(out) - limit
		out = out[:limit]
	}
	return out, dropped, overage, true
}

// renderSystemPersona stands in for an external persona store (spec.md
// §4.1 item 1) — this repo has no separate persona-configuration surface,
// so the one fixed persona lives here until that store exists.
func renderSystemPersona() string {
	return "You are a local-first assistant. Use the NOW/RULES/NEXT state and tool results to respond precisely."
}

// renderStateBlock is the one rendering channel shared by NOW, RULES, NEXT,
// and the skills catalog (spec.md §4.1 item 6: "Skills catalog — exactly
// one channel (the typed-state renderer). Double injection is forbidden.")
// — nothing else in this package formats a bulleted state block, so a
// skill name can only ever enter the prompt here.
func renderStateBlock(label string, items []string) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(label)
	sb.WriteString(":\n")
	writeBulletList(&sb, items)
	return sb.String()
}

func writeBulletList(sb *strings.Builder, items []string) {
	for _, item := range items {
		sb.WriteString("  - " + item + "\n")
	}
}

// fetchTypedStateBuckets is the single fetch-and-split path for NOW/RULES/
// NEXT: one query, deduped, bucketed by a "state_bucket" content field
// (unbucketed notes default to NOW). reinjectionRisk flags a NOW entry
// that was itself written by the output layer (spec.md §4.1's
// output_reinjection_risk trace flag) — a tool/assistant output that made
// it back into NOW as a "fact" is exactly the loop the flag exists to
// surface.
func (b *Builder) fetchTypedStateBuckets(ctx context.Context) (now, rules, next []string, reinjectionRisk bool, err error) {
	entries, err := b.store.ListWorkspaceEntriesByType(ctx, "note", time.Now().Add(-b.config.JITWindows.RememberHours), 10)
	if err != nil {
		return nil, nil, nil, false, fmt.Errorf("typed_state: %w", err)
	}
	entries = dedupeByContent(entries)
	now, rules, next = splitTypedState(entries)
	for _, e := range entries {
		bucket, _ := e.Content["state_bucket"].(string)
		if e.SourceLayer == "output_layer" && (bucket == "" || bucket == "now") {
			reinjectionRisk = true
		}
	}
	return now, rules, next, reinjectionRisk, nil
}

// splitTypedState buckets note entries into NOW/RULES/NEXT by a
// "state_bucket" content field, defaulting unbucketed notes to NOW.
func splitTypedState(entries []*memory.WorkspaceEntry) (now, rules, next []string) {
	for _, e := range entries {
		text := fmt.Sprint(e.Content["text"])
		bucket, _ := e.Content["state_bucket"].(string)
		switch bucket {
		case "rules":
			rules = append(rules, text)
		case "next":
			next = append(next, text)
		default:
			now = append(now, text)
		}
	}
	return now, rules, next
}

// renderActiveContainers implements spec.md §4.1 item 4: containers
// started minus stopped, today, read from container_start/container_done
// TimelineEvent rows (internal/telemetry event types). Nothing in this
// repository publishes those two event types; the orchestrator does not.
func renderActiveContainers(ctx context.Context, b *Builder, req Request) (string, int, error) {
	since := startOfDay(time.Now())
	events, err := b.store.ListTimelineEventsByTypes(ctx, req.ConversationID,
		[]string{telemetry.EventContainerStart, telemetry.EventContainerDone}, since)
	if err != nil {
		return "", 0, fmt.Errorf("active_containers: %w", err)
	}
	active := activeContainerLabels(events)
	if len(active) == 0 {
		return "", len(events), nil
	}
	var sb strings.Builder
	sb.WriteString("ACTIVE CONTAINERS:\n")
	writeBulletList(&sb, active)
	return sb.String(), len(events), nil
}

// activeContainerLabels replays container_start/container_done rows in
// order, leaving only containers that started today and have not yet
// stopped.
func activeContainerLabels(events []*memory.TimelineEvent) []string {
	labels := make(map[string]string)
	for _, ev := range events {
		id, _ := ev.Payload["container_id"].(string)
		if id == "" {
			continue
		}
		switch ev.EventType {
		case telemetry.EventContainerStart:
			label, _ := ev.Payload["tool"].(string)
			if label == "" {
				label = id
			}
			labels[id] = label
		case telemetry.EventContainerDone:
			delete(labels, id)
		}
	}
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func renderToolCatalogue(req Request) string {
	if len(req.ToolCatalogue) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Available tools:\n")
	for _, t := range req.ToolCatalogue {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", t.Name, t.Description))
	}
	return sb.String()
}

func renderRecentChatTurns(ctx context.Context, b *Builder, req Request) (string, int, error) {
	if b.config.MaxChatTurns <= 0 {
		return "", 0, nil
	}
	msgs, err := b.store.ListMessages(ctx, req.ConversationID, b.config.MaxChatTurns)
	if err != nil {
		return "", 0, fmt.Errorf("recent_chat_turns: %w", err)
	}
	if len(msgs) == 0 {
		return "", 0, nil
	}
	var sb strings.Builder
	sb.WriteString("Recent conversation:\n")
	for _, m := range msgs {
		sb.WriteString(fmt.Sprintf("  [%s] %s\n", m.Role, m.Content))
	}
	return sb.String(), len(msgs), nil
}

// renderCrossConversationFacts implements the JIT-loading windows: the
// lookback horizon depends on which trigger fired this build, never a
// fixed constant — a "time_reference" trigger looks back further than a
// generic "fact_recall".
func renderCrossConversationFacts(ctx context.Context, b *Builder, req Request, trigger config.Trigger) (string, int, error) {
	window := jitWindow(b.config, trigger)
	facts, err := b.store.SearchFacts(ctx, req.UserMessage, time.Now().Add(-window), b.config.TopKFacts)
	if err != nil {
		return "", 0, fmt.Errorf("cross_conversation_facts: %w", err)
	}
	if len(facts) == 0 {
		return "", 0, nil
	}
	var sb strings.Builder
	sb.WriteString("Relevant facts from prior conversations:\n")
	for _, f := range facts {
		sb.WriteString(fmt.Sprintf("  - %v\n", f.Content["text"]))
	}
	return sb.String(), len(facts), nil
}

func jitWindow(cfg *config.ContextBuilderConfig, trigger config.Trigger) time.Duration {
	switch trigger {
	case config.TriggerTimeReference:
		return cfg.JITWindows.TimeReferenceHours
	case config.TriggerRemember:
		return cfg.JITWindows.RememberHours
	case config.TriggerFactRecall:
		return cfg.JITWindows.FactRecallHours
	default:
		return 0
	}
}

// dedupeByContent collapses entries whose rendered text is identical,
// keeping the most recent occurrence — the "correlate" step of the
// normalize/dedupe/correlate/select_top pipeline.
func dedupeByContent(entries []*memory.WorkspaceEntry) []*memory.WorkspaceEntry {
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	seen := make(map[string]bool)
	out := make([]*memory.WorkspaceEntry, 0, len(entries))
	for _, e := range entries {
		key := fmt.Sprint(e.Content["text"])
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
