package graphhygiene

import "sort"

// ApplyGraphHygiene runs the full C7 pipeline (spec.md §4.5): parse ->
// dedupe_latest_by_blueprint_id -> filter_against_active_set ->
// extra_filter -> counters. activeIDs == nil means the active-set read
// itself failed; this fails closed to an empty result rather than
// guessing at staleness, exactly like a missing control_decision
// collapses to a block in the pipeline package.
func ApplyGraphHygiene(candidates []*RawCandidate, activeIDs map[string]bool, extraFilter ExtraFilter) ([]Node, Counters) {
	counters := Counters{In: len(candidates)}

	parsed := make([]Node, 0, len(candidates))
	for _, c := range candidates {
		node, ok := parseCandidate(c)
		if !ok {
			continue
		}
		parsed = append(parsed, node)
	}
	counters.ParsedOK = len(parsed)

	deduped := dedupeLatestByBlueprintID(parsed)
	counters.Deduped = len(deduped)

	activeKept := filterAgainstActiveSet(deduped, activeIDs)
	counters.ActiveKept = len(activeKept)

	out := activeKept
	if extraFilter != nil {
		filtered := make([]Node, 0, len(activeKept))
		for _, n := range activeKept {
			if extraFilter(n) {
				filtered = append(filtered, n)
			}
		}
		out = filtered
	}
	counters.Filtered = len(activeKept) - len(out)
	counters.Out = len(out)

	return out, counters
}

// parseCandidate nil-safely parses one raw candidate. A nil pointer or a
// missing NodeID/BlueprintID is malformed and dropped.
func parseCandidate(c *RawCandidate) (Node, bool) {
	if c == nil || c.NodeID == "" || c.BlueprintID == "" {
		return Node{}, false
	}
	return Node{
		NodeID:      c.NodeID,
		BlueprintID: c.BlueprintID,
		UpdatedAt:   c.UpdatedAt,
		TrustLevel:  c.TrustLevel,
		Payload:     c.Payload,
	}, true
}

// dedupeLatestByBlueprintID keeps the record with the latest
// (updated_at desc, node_id desc) per blueprint_id — a deterministic
// tie-break so two nodes updated at the same instant always resolve the
// same way regardless of input order.
func dedupeLatestByBlueprintID(nodes []Node) []Node {
	latest := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		cur, ok := latest[n.BlueprintID]
		if !ok || isNewer(n, cur) {
			latest[n.BlueprintID] = n
		}
	}
	out := make([]Node, 0, len(latest))
	for _, n := range latest {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlueprintID < out[j].BlueprintID })
	return out
}

func isNewer(candidate, current Node) bool {
	if !candidate.UpdatedAt.Equal(current.UpdatedAt) {
		return candidate.UpdatedAt.After(current.UpdatedAt)
	}
	return candidate.NodeID > current.NodeID
}

// filterAgainstActiveSet drops any node whose BlueprintID is not a
// member of activeIDs. A nil activeIDs (active-set read failed) fails
// closed to an empty result.
func filterAgainstActiveSet(nodes []Node, activeIDs map[string]bool) []Node {
	if activeIDs == nil {
		return nil
	}
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if activeIDs[n.BlueprintID] {
			out = append(out, n)
		}
	}
	return out
}
