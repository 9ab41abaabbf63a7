package contextbuilder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmind/assistant/internal/config"
	"github.com/localmind/assistant/internal/memory"
	"github.com/localmind/assistant/internal/telemetry"
)

func testConfig() *config.ContextBuilderConfig {
	return config.DefaultContextBuilderConfig()
}

func TestBuildEffectiveContextOrdersTheNineSourcesPerSpec(t *testing.T) {
	store := memory.NewFakeStore()
	now := time.Now()
	require.NoError(t, store.AppendWorkspaceEntry(context.Background(), &memory.WorkspaceEntry{
		ConversationID: "c1", EntryType: "note", CreatedAt: now,
		Content: map[string]any{"text": "deploy window is 2am-4am", "state_bucket": "now"},
	}))
	require.NoError(t, store.AppendWorkspaceEntry(context.Background(), &memory.WorkspaceEntry{
		ConversationID: "c1", EntryType: "note", CreatedAt: now,
		Content: map[string]any{"text": "always confirm before deleting", "state_bucket": "rules"},
	}))
	require.NoError(t, store.AppendWorkspaceEntry(context.Background(), &memory.WorkspaceEntry{
		ConversationID: "c1", EntryType: "note", CreatedAt: now,
		Content: map[string]any{"text": "ask about the backup job next", "state_bucket": "next"},
	}))
	require.NoError(t, store.AppendMessage(context.Background(), &memory.Message{
		ConversationID: "c1", Role: "user", Content: "hi there",
	}))

	b := New(store, testConfig())
	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "hi",
		ToolCatalogue: []ToolSummary{{Name: "files-server.read_file", Description: "reads a file"}},
		SkillNames:    []string{"weather"},
	}, config.TriggerFactRecall, config.ContextModeFull)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"system_persona", "now", "rules", "tool_catalogue", "skill_catalogue",
		"cross_conversation_facts", "recent_chat_turns", "next",
	}, result.ContributingSources)

	// NOW/RULES must render ahead of the skills/facts/chat block, and NEXT
	// must be the very last thing in the composed text (spec.md §4.1).
	nowIdx := strings.Index(result.Text, "NOW:")
	rulesIdx := strings.Index(result.Text, "RULES:")
	skillsIdx := strings.Index(result.Text, "SKILLS:")
	chatIdx := strings.Index(result.Text, "Recent conversation:")
	nextIdx := strings.Index(result.Text, "NEXT:")
	require.Greater(t, nowIdx, -1)
	require.Greater(t, rulesIdx, -1)
	require.Greater(t, nextIdx, -1)
	assert.Less(t, nowIdx, rulesIdx)
	assert.Less(t, rulesIdx, skillsIdx)
	assert.Less(t, chatIdx, nextIdx, "NEXT must render after recent chat history")
	assert.True(t, strings.HasSuffix(result.Text, strings.TrimRight(result.Text[nextIdx:], "\n")))
}

func TestBuildEffectiveContextSkillsCatalogueRoutesThroughTypedStateChannel(t *testing.T) {
	store := memory.NewFakeStore()
	b := New(store, testConfig())

	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "hi", SkillNames: []string{"weather", "calendar"},
	}, config.TriggerNone, config.ContextModeFull)

	require.NoError(t, err)
	assert.Contains(t, result.ContributingSources, "skill_catalogue")
	assert.Contains(t, result.Text, "SKILLS:\n  - weather\n  - calendar\n")
	assert.True(t, result.Flags.SkillsPrefetchUsed)
}

func TestBuildEffectiveContextActiveContainersStartedMinusStoppedToday(t *testing.T) {
	store := memory.NewFakeStore()
	store.AppendTimelineEvent(&memory.TimelineEvent{
		ConversationID: "c1", SequenceNumber: 1, EventType: telemetry.EventContainerStart,
		Payload: map[string]any{"container_id": "a", "tool": "files-server.sandbox"},
	})
	store.AppendTimelineEvent(&memory.TimelineEvent{
		ConversationID: "c1", SequenceNumber: 2, EventType: telemetry.EventContainerStart,
		Payload: map[string]any{"container_id": "b", "tool": "code-runner.sandbox"},
	})
	store.AppendTimelineEvent(&memory.TimelineEvent{
		ConversationID: "c1", SequenceNumber: 3, EventType: telemetry.EventContainerDone,
		Payload: map[string]any{"container_id": "b"},
	})
	b := New(store, testConfig())

	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "hi",
	}, config.TriggerNone, config.ContextModeFull)

	require.NoError(t, err)
	assert.Contains(t, result.ContributingSources, "active_containers")
	assert.Contains(t, result.Text, "files-server.sandbox")
	assert.NotContains(t, result.Text, "code-runner.sandbox")
}

func TestBuildEffectiveContextNoActiveContainersIsSkipped(t *testing.T) {
	store := memory.NewFakeStore()
	b := New(store, testConfig())

	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "hi",
	}, config.TriggerNone, config.ContextModeFull)

	require.NoError(t, err)
	assert.NotContains(t, result.ContributingSources, "active_containers")
}

func TestBuildEffectiveContextSmallModelModeOmitsFactsAndSkills(t *testing.T) {
	store := memory.NewFakeStore()
	b := New(store, testConfig())

	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "hi", SkillNames: []string{"weather"},
	}, config.TriggerFactRecall, config.ContextModeSmallModel)

	require.NoError(t, err)
	assert.NotContains(t, result.ContributingSources, "cross_conversation_facts")
	assert.NotContains(t, result.ContributingSources, "skill_catalogue")
}

func TestBuildEffectiveContextNoTriggerSkipsCrossConversationFacts(t *testing.T) {
	store := memory.NewFakeStore()
	require.NoError(t, store.AppendWorkspaceEntry(context.Background(), &memory.WorkspaceEntry{
		ConversationID: "other", EntryType: "note", CreatedAt: time.Now(),
		Content: map[string]any{"text": "some fact"},
	}))
	b := New(store, testConfig())

	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "hi",
	}, config.TriggerNone, config.ContextModeFull)

	require.NoError(t, err)
	assert.NotContains(t, result.ContributingSources, "cross_conversation_facts")
}

func TestBuildEffectiveContextRendersToolCatalogue(t *testing.T) {
	store := memory.NewFakeStore()
	b := New(store, testConfig())

	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "hi",
		ToolCatalogue: []ToolSummary{{Name: "files-server.read_file", Description: "reads a file"}},
	}, config.TriggerNone, config.ContextModeFull)

	require.NoError(t, err)
	assert.Contains(t, result.Text, "files-server.read_file")
	assert.Contains(t, result.ContributingSources, "tool_catalogue")
}

func TestBuildEffectiveContextFailureCompactOmitsToolsSkillsAndFacts(t *testing.T) {
	store := memory.NewFakeStore()
	b := New(store, testConfig())

	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "hi", SkillNames: []string{"weather"},
		ToolCatalogue: []ToolSummary{{Name: "x.y", Description: "z"}},
	}, config.TriggerFactRecall, config.ContextModeFailureCompact)

	require.NoError(t, err)
	assert.NotContains(t, result.ContributingSources, "tool_catalogue")
	assert.NotContains(t, result.ContributingSources, "skill_catalogue")
	assert.NotContains(t, result.ContributingSources, "cross_conversation_facts")
	assert.Contains(t, result.ContributingSources, "system_persona")
}

func TestBuildEffectiveContextHardCapDropsWholeSectionsInReversePriorityOrder(t *testing.T) {
	store := memory.NewFakeStore()
	require.NoError(t, store.AppendMessage(context.Background(), &memory.Message{
		ConversationID: "c1", Role: "user", Content: strings.Repeat("y", 200),
	}))
	cfg := testConfig()
	cfg.FinalCapChars = 120
	b := New(store, cfg)

	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "hi",
		ToolCatalogue: []ToolSummary{{Name: "x.y", Description: strings.Repeat("z", 80)}},
		SkillNames:    []string{"weather"},
	}, config.TriggerNone, config.ContextModeFull)

	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Text), 120)
	assert.NotContains(t, result.ContributingSources, "recent_chat_turns")
	assert.NotContains(t, result.ContributingSources, "tool_catalogue")
	assert.NotContains(t, result.ContributingSources, "skill_catalogue")
	assert.Contains(t, result.ContributingSources, "system_persona")

	foundDropReason := false
	for _, s := range result.SkippedSources {
		if s.Source == "recent_chat_turns" && s.Reason == "dropped by hard cap" {
			foundDropReason = true
		}
	}
	assert.True(t, foundDropReason)
}

func TestBuildEffectiveContextNoTruncationWhenUnderCap(t *testing.T) {
	store := memory.NewFakeStore()
	b := New(store, testConfig())

	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "short",
	}, config.TriggerNone, config.ContextModeFull)

	require.NoError(t, err)
	assert.Equal(t, 0, result.TruncatedChars)
	assert.False(t, result.Flags.Truncated)
}

func TestBuildEffectiveContextImpossibleCaseTailTruncatesLastSectionAndSetsFlag(t *testing.T) {
	store := memory.NewFakeStore()
	require.NoError(t, store.AppendWorkspaceEntry(context.Background(), &memory.WorkspaceEntry{
		ConversationID: "c1", EntryType: "note", CreatedAt: time.Now(),
		Content: map[string]any{"text": strings.Repeat("n", 500), "state_bucket": "next"},
	}))
	cfg := testConfig()
	cfg.FinalCapChars = 10 // smaller than even the system persona alone
	b := New(store, cfg)

	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "hi",
	}, config.TriggerNone, config.ContextModeFull)

	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Text), 10)
	assert.True(t, result.Flags.Truncated)
	assert.Greater(t, result.TruncatedChars, 0)
}

func TestBuildEffectiveContextDedupesTypedStateEntries(t *testing.T) {
	store := memory.NewFakeStore()
	now := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendWorkspaceEntry(context.Background(), &memory.WorkspaceEntry{
			ConversationID: "c1", EntryType: "note", CreatedAt: now.Add(time.Duration(i) * time.Second),
			Content: map[string]any{"text": "duplicate note"},
		}))
	}
	b := New(store, testConfig())

	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "hi",
	}, config.TriggerNone, config.ContextModeFull)

	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(result.Text, "duplicate note"))
}

func TestBuildEffectiveContextTraceCarriesModeAndRetrievalCount(t *testing.T) {
	store := memory.NewFakeStore()
	require.NoError(t, store.AppendWorkspaceEntry(context.Background(), &memory.WorkspaceEntry{
		ConversationID: "c1", EntryType: "note", CreatedAt: time.Now(),
		Content: map[string]any{"text": "a fact", "state_bucket": "now"},
	}))
	b := New(store, testConfig())

	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "hi",
	}, config.TriggerNone, config.ContextModeFull)

	require.NoError(t, err)
	assert.Equal(t, config.ContextModeFull, result.Mode)
	assert.GreaterOrEqual(t, result.RetrievalCount, 1)
}

func TestBuildEffectiveContextNowFailsClosedToMinimalBlockOnTypedStateError(t *testing.T) {
	b := New(newFailingTypedStateStore(), testConfig())

	result, err := b.BuildEffectiveContext(context.Background(), Request{
		ConversationID: "c1", UserMessage: "hi",
	}, config.TriggerNone, config.ContextModeFull)

	require.NoError(t, err)
	assert.Contains(t, result.ContributingSources, "now")
	assert.Contains(t, result.Text, "state unavailable")
	assert.NotContains(t, result.ContributingSources, "rules")
	assert.NotContains(t, result.ContributingSources, "next")
}

func TestJITWindowVariesByTrigger(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, cfg.JITWindows.TimeReferenceHours, jitWindow(cfg, config.TriggerTimeReference))
	assert.Equal(t, cfg.JITWindows.RememberHours, jitWindow(cfg, config.TriggerRemember))
	assert.Equal(t, cfg.JITWindows.FactRecallHours, jitWindow(cfg, config.TriggerFactRecall))
	assert.Equal(t, time.Duration(0), jitWindow(cfg, config.TriggerNone))
}

// failingTypedStateStore embeds a real FakeStore for every other method and
// only overrides the typed-state lookup, to exercise NOW's minimal-block
// fallback (spec.md §4.1 failure semantics) in isolation.
type failingTypedStateStore struct {
	memory.Store
}

func newFailingTypedStateStore() failingTypedStateStore {
	return failingTypedStateStore{Store: memory.NewFakeStore()}
}

func (failingTypedStateStore) ListWorkspaceEntriesByType(context.Context, string, time.Time, int) ([]*memory.WorkspaceEntry, error) {
	return nil, errors.New("typed state store unavailable")
}
