package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// WorkspaceEntry holds the schema definition for the WorkspaceEntry entity
// (spec.md §3). Owned by the memory component; the orchestrator writes and
// the browser UI reads.
//
// Invariant I2: every row with entry_type="approval_requested" carries
// {skill_name, missing_packages[]} inside content.
type WorkspaceEntry struct {
	ent.Schema
}

// Fields of the WorkspaceEntry.
func (WorkspaceEntry) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("entry_id").
			Unique().
			Immutable(),
		field.String("conversation_id").
			Immutable(),
		field.Enum("entry_type").
			Values(
				"user_message",
				"tool_result",
				"approval_requested",
				"final_assistant",
				"note",
			),
		field.Enum("source_layer").
			Values("tool_selector", "thinking", "control_layer", "output_layer", "orchestrator").
			Comment("Which pipeline stage produced the entry"),
		field.Enum("source").
			Values("entry", "event").
			Default("event").
			Comment(`"entry" rows are user-editable, "event" rows are read-only`),
		field.JSON("content", map[string]interface{}{}).
			Comment("Structured payload; approval rows carry skill_name/missing_packages"),
		field.JSON("event_data", map[string]interface{}{}).
			Optional(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the WorkspaceEntry.
func (WorkspaceEntry) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("session", ConversationSession.Type).
			Ref("workspace_entries").
			Field("conversation_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the WorkspaceEntry.
func (WorkspaceEntry) Indexes() []ent.Index {
	return []ent.Index{
		// Workspace append order per conversation (I10): strictly
		// non-decreasing in created_at, read back in that order.
		index.Fields("conversation_id", "created_at"),
		index.Fields("entry_type"),
	}
}
