// Package graphhygiene implements Graph Hygiene (C7, spec.md §4.5): a
// single pipeline that turns a batch of raw candidate graph nodes into a
// clean, deduped, active-set-filtered batch plus a counters summary.
// There is no teacher equivalent for a node graph, so the pipeline's
// shape borrows the retrieval pack's claim/dedupe idiom instead —
// tarsy's claimNextSession orders pending work by created_at and keeps
// exactly one winner per contested row; dedupe_latest_by_blueprint_id
// does the same thing in memory, ordering by (updated_at desc, node_id
// desc) and keeping only the first per blueprint_id.
package graphhygiene

import "time"

// RawCandidate is an untrusted graph-node candidate as received from an
// upstream source, before parsing. A nil *RawCandidate, or one missing
// NodeID/BlueprintID, is malformed and dropped.
type RawCandidate struct {
	NodeID      string
	BlueprintID string
	UpdatedAt   time.Time
	TrustLevel  string
	Payload     map[string]any
}

// Node is one parsed, well-formed graph node.
type Node struct {
	NodeID      string
	BlueprintID string
	UpdatedAt   time.Time
	TrustLevel  string
	Payload     map[string]any
}

// ExtraFilter is an optional additional predicate applied after the
// active-set filter (e.g. a minimum trust level). Returning false drops
// the node.
type ExtraFilter func(Node) bool

// Counters is the pipeline's per-run summary (spec.md §4.5 step 5).
type Counters struct {
	In        int
	ParsedOK  int
	Deduped   int
	ActiveKept int
	Filtered  int
	Out       int
}
