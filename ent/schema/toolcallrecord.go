package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ToolCallRecord holds the schema definition for one ToolCall (spec.md §3):
// a single invocation routed through the Tool Registry & Hub (C1).
type ToolCallRecord struct {
	ent.Schema
}

// Fields of the ToolCallRecord.
func (ToolCallRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("tool_call_id").
			Unique().
			Immutable(),
		field.String("conversation_id").
			Immutable(),
		field.String("tool_name").
			Immutable(),
		field.JSON("args", map[string]interface{}{}).
			Optional(),
		field.JSON("result", map[string]interface{}{}).
			Optional(),
		field.String("error_message").
			Optional().
			Nillable(),
		field.Enum("status").
			Values("success", "error", "pending_approval").
			Default("pending_approval"),
		field.String("container_id").
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

// Edges of the ToolCallRecord.
func (ToolCallRecord) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("session", ConversationSession.Type).
			Ref("tool_calls").
			Field("conversation_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the ToolCallRecord.
func (ToolCallRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("conversation_id", "created_at"),
		index.Fields("tool_name"),
	}
}
