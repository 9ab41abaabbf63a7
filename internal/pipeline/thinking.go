package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// plannerSystemPrompt fixes the JSON-only contract the thinking layer
// demands of the LLM backend (spec.md §4.2.1).
const plannerSystemPrompt = `You are the planning stage of a layered assistant pipeline.
Respond with JSON only, no prose, matching this shape:
{"intent": "...", "suggested_tools": ["..."], "needs_memory": bool, "needs_chat_history": bool, "needs_container": bool, "container_name": "...", "complexity": 1-10, "hallucination_risk": "low|med|high", "reasoning": "..."}`

// Planner is the thinking layer (C4.1, spec.md §4.2.1). It produces an
// immutable Plan from the user query and composed context. No side
// effects, no tool calls — those belong to the output layer.
type Planner struct {
	llm     LLMClient
	retries int // additional attempts after the first, from plan_parse_retries
}

// NewPlanner builds a Planner. retries is the number of additional
// attempts made after a JSON parse failure before falling back to the
// safe default Plan.
func NewPlanner(llm LLMClient, retries int) *Planner {
	return &Planner{llm: llm, retries: retries}
}

// Plan calls the LLM for a structured Plan. On parse failure it retries up
// to retries more times, then returns the safe default Plan rather than
// failing the request outright (spec.md §4.2.1) — the thinking layer must
// never be the reason a turn aborts.
func (p *Planner) Plan(ctx context.Context, query, contextText string) (*Plan, error) {
	userPrompt := contextText + "\n\nUser query: " + query

	attempts := p.retries + 1
	for i := 0; i < attempts; i++ {
		raw, err := p.llm.Generate(ctx, plannerSystemPrompt, userPrompt, 0)
		if err != nil {
			continue
		}
		if plan, parseErr := parsePlanJSON(raw); parseErr == nil {
			return plan, nil
		}
	}
	return safeDefaultPlan(), nil
}

type planWire struct {
	Intent            string   `json:"intent"`
	SuggestedTools    []string `json:"suggested_tools"`
	NeedsMemory       bool     `json:"needs_memory"`
	NeedsChatHistory  bool     `json:"needs_chat_history"`
	NeedsContainer    bool     `json:"needs_container"`
	ContainerName     string   `json:"container_name"`
	Complexity        int      `json:"complexity"`
	HallucinationRisk string   `json:"hallucination_risk"`
	Reasoning         string   `json:"reasoning"`
}

func parsePlanJSON(raw string) (*Plan, error) {
	body := extractJSONObject(raw)
	var w planWire
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return nil, fmt.Errorf("parse plan JSON: %w", err)
	}

	risk := HallucinationRisk(w.HallucinationRisk)
	switch risk {
	case HallucinationRiskLow, HallucinationRiskMedium, HallucinationRiskHigh:
	default:
		risk = HallucinationRiskMedium
	}

	complexity := w.Complexity
	if complexity < 1 {
		complexity = 1
	}
	if complexity > 10 {
		complexity = 10
	}

	return &Plan{
		Intent:            w.Intent,
		SuggestedTools:    w.SuggestedTools,
		NeedsMemory:       w.NeedsMemory,
		NeedsChatHistory:  w.NeedsChatHistory,
		NeedsContainer:    w.NeedsContainer,
		ContainerName:     w.ContainerName,
		Complexity:        complexity,
		HallucinationRisk: risk,
		Reasoning:         w.Reasoning,
	}, nil
}

// extractJSONObject trims any prose a model wraps its JSON output in
// (e.g. a markdown code fence), returning just the outermost {...}.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
