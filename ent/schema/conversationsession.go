package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ConversationSession holds the schema definition for one Request's
// lifetime (spec.md §3 Request). One row per orchestrator run.
type ConversationSession struct {
	ent.Schema
}

// Fields of the ConversationSession.
func (ConversationSession) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("conversation_id").
			Unique().
			Immutable(),
		field.String("model").
			Comment("LLM backend identity requested for this turn"),
		field.Bool("stream").
			Default(false),
		field.Bool("deep_job").
			Default(false).
			Comment("Submitted via /api/chat/deep-jobs instead of synchronously"),
		field.Enum("status").
			Values("queued", "running", "succeeded", "failed").
			Default("queued"),
		field.String("job_id").
			Optional().
			Nillable().
			Comment("Set when deep_job=true"),
		field.Int64("duration_ms").
			Optional().
			Nillable(),
		field.Text("final_text").
			Optional().
			Nillable().
			Comment("Assistant's final text — used by the I8 sync/stream parity test"),
		field.JSON("context_sources", []string{}).
			Optional().
			Comment("Trace of which Context Builder sources fed the final answer"),
		field.String("error_message").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

// Edges of the ConversationSession.
func (ConversationSession) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("workspace_entries", WorkspaceEntry.Type),
		edge.To("messages", Message.Type),
		edge.To("tool_calls", ToolCallRecord.Type),
		edge.To("timeline_events", TimelineEvent.Type),
	}
}

// Indexes of the ConversationSession.
func (ConversationSession) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("status", "created_at"),
		index.Fields("job_id"),
	}
}
