package graphhygiene

import (
	"context"
	"fmt"
)

// TombstoneQueue enqueues an asynchronous tombstone job for a deleted
// blueprint's graph nodes (spec.md §4.5 "Delete consistency"). Enqueueing
// is fire-and-forget from the caller's perspective — the actual tombstone
// write happens out of band.
type TombstoneQueue interface {
	EnqueueTombstone(ctx context.Context, blueprintID string) error
}

// RemoveBlueprintFromGraph enqueues the async tombstone job that marks
// blueprintID's graph nodes as removed. Called synchronously from the
// blueprint-delete path; the tombstone itself completes later.
func RemoveBlueprintFromGraph(ctx context.Context, blueprintID string, queue TombstoneQueue) error {
	if queue == nil {
		return fmt.Errorf("graphhygiene: no tombstone queue configured")
	}
	return queue.EnqueueTombstone(ctx, blueprintID)
}

// BlueprintStore lists the authoritative set of blueprint ids.
type BlueprintStore interface {
	ListBlueprintIDs(ctx context.Context) ([]string, error)
}

// GraphStore lists which blueprint ids currently have graph nodes, and
// can remove all nodes for a given blueprint id.
type GraphStore interface {
	ListNodeBlueprintIDs(ctx context.Context) ([]string, error)
	RemoveNodesForBlueprint(ctx context.Context, blueprintID string) error
}

// Reconcile iterates the authoritative blueprint store and removes any
// graph nodes whose blueprint no longer exists there — the standalone
// catch-up for tombstone jobs that were lost (process crash between
// delete and enqueue, a dropped queue message, etc). Returns the
// blueprint ids whose orphaned nodes were removed.
func Reconcile(ctx context.Context, blueprints BlueprintStore, graph GraphStore) ([]string, error) {
	activeList, err := blueprints.ListBlueprintIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blueprint ids: %w", err)
	}
	active := make(map[string]bool, len(activeList))
	for _, id := range activeList {
		active[id] = true
	}

	graphIDs, err := graph.ListNodeBlueprintIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list graph node blueprint ids: %w", err)
	}

	seen := make(map[string]bool, len(graphIDs))
	var orphans []string
	for _, id := range graphIDs {
		if active[id] || seen[id] {
			continue
		}
		seen[id] = true
		orphans = append(orphans, id)
	}

	for _, id := range orphans {
		if err := graph.RemoveNodesForBlueprint(ctx, id); err != nil {
			return nil, fmt.Errorf("remove orphaned nodes for blueprint %q: %w", id, err)
		}
	}
	return orphans, nil
}
