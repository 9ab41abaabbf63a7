package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmind/assistant/internal/config"
	"github.com/localmind/assistant/internal/contextbuilder"
	"github.com/localmind/assistant/internal/memory"
	"github.com/localmind/assistant/internal/pipeline"
	"github.com/localmind/assistant/internal/toolhub"
)

type fakeLLM struct{ response string }

func (f *fakeLLM) Generate(_ context.Context, _, _ string, _ float64) (string, error) {
	return f.response, nil
}

type fakeModel struct{ text string }

func (f *fakeModel) Generate(_ context.Context, _ []pipeline.Message, _ []toolhub.ToolDescriptor, _ bool) (*pipeline.ModelResponse, error) {
	return &pipeline.ModelResponse{Text: f.text}, nil
}

type fakeToolClient struct{}

func (fakeToolClient) ListTools(_ context.Context, _ string) ([]toolhub.ToolDescriptor, error) {
	return nil, nil
}
func (fakeToolClient) CallTool(_ context.Context, _, _ string, _ map[string]any) (string, bool, error) {
	return "", false, nil
}

func newTestOrchestrator(t *testing.T, planJSON, finalText string) (*Orchestrator, memory.Store) {
	t.Helper()
	store := memory.NewFakeStore()
	registry := toolhub.NewRegistry(fakeToolClient{}, nil)
	require.NoError(t, registry.Refresh(context.Background()))

	builder := contextbuilder.New(store, config.DefaultContextBuilderConfig())
	pipe := pipeline.New(config.DefaultPipelineConfig(), &fakeLLM{response: planJSON}, nil, &fakeModel{text: finalText}, registry, nil)

	return New(builder, pipe, store, registry, nil), store
}

func TestOrchestratorProcessApprovedTurnPersistsEverything(t *testing.T) {
	orch, store := newTestOrchestrator(t,
		`{"intent":"answer_question","complexity":1,"hallucination_risk":"low"}`,
		"the final answer")

	resp, err := orch.Process(context.Background(), Request{ConversationID: "c1", UserMessage: "hello", Mode: config.ContextModeFull})
	require.NoError(t, err)
	assert.Equal(t, "the final answer", resp.Text)
	assert.Contains(t, resp.ContextSources, "system_persona")

	msgs, err := store.ListMessages(context.Background(), "c1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)

	entries, err := store.ListWorkspaceEntries(context.Background(), "c1", msgs[0].CreatedAt.Add(-time.Second))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "user_message", entries[0].EntryType)
}

func TestOrchestratorProcessBlockedTurnNeverRunsOutput(t *testing.T) {
	orch, _ := newTestOrchestrator(t,
		`{"intent":"run_shell","complexity":9,"hallucination_risk":"high","reasoning":"rm -rf / cleanup"}`,
		"should never be used")

	resp, err := orch.Process(context.Background(), Request{ConversationID: "c2", UserMessage: "clean up", Mode: config.ContextModeFull})
	require.NoError(t, err)
	assert.Equal(t, pipeline.ControlActionBlock, resp.Decision.Action)
	assert.Contains(t, resp.Text, "blocked")
}

func TestOrchestratorProcessSkillIntentWithoutAuthorityBlocks(t *testing.T) {
	orch, store := newTestOrchestrator(t,
		`{"intent":"create_skill","complexity":8,"hallucination_risk":"high"}`,
		"should never be used")

	resp, err := orch.Process(context.Background(), Request{ConversationID: "c3", UserMessage: "make a skill", Mode: config.ContextModeFull})
	require.NoError(t, err)
	assert.Equal(t, pipeline.ControlActionBlock, resp.Decision.Action) // no authority registered -> fail-closed block, not escalate
	_ = store
}

func TestOrchestratorProcessAndProcessStreamAgreeOnText(t *testing.T) {
	planJSON := `{"intent":"answer_question","complexity":1,"hallucination_risk":"low"}`
	orch1, _ := newTestOrchestrator(t, planJSON, "identical text")
	syncResp, err := orch1.Process(context.Background(), Request{ConversationID: "c4", UserMessage: "hi", Mode: config.ContextModeFull})
	require.NoError(t, err)

	orch2, _ := newTestOrchestrator(t, planJSON, "identical text")
	stream, err := orch2.ProcessStream(context.Background(), Request{ConversationID: "c5", UserMessage: "hi", Mode: config.ContextModeFull})
	require.NoError(t, err)

	var lastText string
	for ev := range stream {
		if ev.Type == "content" {
			if text, ok := ev.Payload["text"].(string); ok {
				lastText = text
			}
		}
	}
	assert.Equal(t, syncResp.Text, lastText)
}
