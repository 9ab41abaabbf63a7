package graphhygiene

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(sec int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, sec, 0, time.UTC)
}

func TestApplyGraphHygieneDropsMalformedCandidates(t *testing.T) {
	candidates := []*RawCandidate{
		nil,
		{NodeID: "", BlueprintID: "bp1"},
		{NodeID: "n1", BlueprintID: ""},
		{NodeID: "n2", BlueprintID: "bp1", UpdatedAt: ts(1)},
	}
	active := map[string]bool{"bp1": true}

	out, counters := ApplyGraphHygiene(candidates, active, nil)
	assert.Equal(t, 4, counters.In)
	assert.Equal(t, 1, counters.ParsedOK)
	assert.Len(t, out, 1)
	assert.Equal(t, "n2", out[0].NodeID)
}

func TestApplyGraphHygieneDedupesKeepingLatestPerBlueprint(t *testing.T) {
	candidates := []*RawCandidate{
		{NodeID: "n1", BlueprintID: "bp1", UpdatedAt: ts(1)},
		{NodeID: "n2", BlueprintID: "bp1", UpdatedAt: ts(5)},
		{NodeID: "n3", BlueprintID: "bp1", UpdatedAt: ts(3)},
	}
	active := map[string]bool{"bp1": true}

	out, counters := ApplyGraphHygiene(candidates, active, nil)
	assert.Equal(t, 1, counters.Deduped)
	assert.Len(t, out, 1)
	assert.Equal(t, "n2", out[0].NodeID)
}

func TestApplyGraphHygieneDedupeTieBreaksOnNodeIDDesc(t *testing.T) {
	candidates := []*RawCandidate{
		{NodeID: "a", BlueprintID: "bp1", UpdatedAt: ts(1)},
		{NodeID: "z", BlueprintID: "bp1", UpdatedAt: ts(1)},
	}
	active := map[string]bool{"bp1": true}

	out, _ := ApplyGraphHygiene(candidates, active, nil)
	assert.Len(t, out, 1)
	assert.Equal(t, "z", out[0].NodeID)
}

func TestApplyGraphHygieneFiltersAgainstActiveSet(t *testing.T) {
	candidates := []*RawCandidate{
		{NodeID: "n1", BlueprintID: "bp1", UpdatedAt: ts(1)},
		{NodeID: "n2", BlueprintID: "bp2", UpdatedAt: ts(1)},
	}
	active := map[string]bool{"bp1": true}

	out, counters := ApplyGraphHygiene(candidates, active, nil)
	assert.Len(t, out, 1)
	assert.Equal(t, "bp1", out[0].BlueprintID)
	assert.Equal(t, 1, counters.ActiveKept)
}

func TestApplyGraphHygieneNilActiveIDsFailsClosedToEmpty(t *testing.T) {
	candidates := []*RawCandidate{
		{NodeID: "n1", BlueprintID: "bp1", UpdatedAt: ts(1)},
	}
	out, counters := ApplyGraphHygiene(candidates, nil, nil)
	assert.Empty(t, out)
	assert.Equal(t, 0, counters.ActiveKept)
	assert.Equal(t, 0, counters.Out)
}

func TestApplyGraphHygieneAppliesExtraFilter(t *testing.T) {
	candidates := []*RawCandidate{
		{NodeID: "n1", BlueprintID: "bp1", UpdatedAt: ts(1), TrustLevel: "low"},
		{NodeID: "n2", BlueprintID: "bp2", UpdatedAt: ts(1), TrustLevel: "high"},
	}
	active := map[string]bool{"bp1": true, "bp2": true}

	trustedOnly := func(n Node) bool { return n.TrustLevel == "high" }
	out, counters := ApplyGraphHygiene(candidates, active, trustedOnly)
	assert.Len(t, out, 1)
	assert.Equal(t, "n2", out[0].NodeID)
	assert.Equal(t, 1, counters.Filtered)
	assert.Equal(t, 1, counters.Out)
}

func TestApplyGraphHygieneCountersAddUpAcrossFullPipeline(t *testing.T) {
	candidates := []*RawCandidate{
		nil,
		{NodeID: "n1", BlueprintID: "bp1", UpdatedAt: ts(1)},
		{NodeID: "n2", BlueprintID: "bp1", UpdatedAt: ts(2)},
		{NodeID: "n3", BlueprintID: "bp2", UpdatedAt: ts(1)},
		{NodeID: "n4", BlueprintID: "bp3", UpdatedAt: ts(1)},
	}
	active := map[string]bool{"bp1": true, "bp2": true}

	_, counters := ApplyGraphHygiene(candidates, active, nil)
	assert.Equal(t, 5, counters.In)
	assert.Equal(t, 4, counters.ParsedOK)
	assert.Equal(t, 3, counters.Deduped) // bp1 (latest), bp2, bp3
	assert.Equal(t, 2, counters.ActiveKept) // bp3 filtered out by active set
	assert.Equal(t, 2, counters.Out)
}
