package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/localmind/assistant/internal/toolhub"
)

// ToolSelector narrows a full tool catalogue (which may hold dozens of
// descriptors) to a short ranked list before the thinking layer ever sees
// it (C4.0, spec.md §4.2.0). Selection is deterministic given identical
// inputs — no randomness, no wall-clock dependence — so it ranks by
// keyword overlap against the descriptor text rather than a
// nondeterministic semantic-similarity call; semantic ranking over
// embeddings is the Embedding Router's (C9) concern, not this pre-filter's.
type ToolSelector struct {
	topK int
	max  int
}

// NewToolSelector builds a ToolSelector. topK bounds the keyword-ranked
// shortlist; max bounds the final selection handed to the thinking layer.
// No second ranking pass (an LLM re-rank or otherwise) runs between the
// two cuts.
func NewToolSelector(topK, max int) *ToolSelector {
	return &ToolSelector{topK: topK, max: max}
}

type scoredTool struct {
	tool  toolhub.ToolDescriptor
	score int
}

// Select returns at most max tool descriptors, ranked by descending
// keyword-overlap score against query and ties broken by name.
func (s *ToolSelector) Select(_ context.Context, query string, catalogue []toolhub.ToolDescriptor) ([]toolhub.ToolDescriptor, error) {
	queryWords := wordSet(query)

	scored := make([]scoredTool, 0, len(catalogue))
	for _, t := range catalogue {
		scored = append(scored, scoredTool{tool: t, score: overlapScore(queryWords, t.Name+" "+t.Description)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].tool.Name < scored[j].tool.Name
	})

	top := scored
	if s.topK > 0 && len(top) > s.topK {
		top = top[:s.topK]
	}

	n := s.max
	if n > len(top) {
		n = len(top)
	}
	out := make([]toolhub.ToolDescriptor, n)
	for i := 0; i < n; i++ {
		out[i] = top[i].tool
	}
	return out, nil
}

func wordSet(text string) map[string]bool {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(fields))
	for _, w := range fields {
		set[strings.Trim(w, ".,!?;:'\"")] = true
	}
	return set
}

func overlapScore(queryWords map[string]bool, text string) int {
	score := 0
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if queryWords[strings.Trim(w, ".,!?;:'\"")] {
			score++
		}
	}
	return score
}
