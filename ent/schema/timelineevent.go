package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// TimelineEvent holds the schema definition for a durable record of one
// streaming event (spec.md §4.3). Persisted so a disconnected client can
// replay a turn and so the orchestrator can assert total ordering (I10-like
// guarantee at the event level).
type TimelineEvent struct {
	ent.Schema
}

// Fields of the TimelineEvent.
func (TimelineEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("event_id").
			Unique().
			Immutable(),
		field.String("conversation_id").
			Immutable(),
		field.Int("sequence_number"),
		field.Enum("event_type").
			Values(
				"thinking_stream", "thinking_done",
				"seq_thinking_stream", "seq_thinking_done",
				"sequential_start", "sequential_step", "sequential_done",
				"control",
				"container_start", "container_done",
				"panel_create_tab", "panel_update",
				"content", "memory", "done", "error",
			),
		field.JSON("payload", map[string]interface{}{}).
			Optional(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the TimelineEvent.
func (TimelineEvent) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("session", ConversationSession.Type).
			Ref("timeline_events").
			Field("conversation_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the TimelineEvent.
func (TimelineEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("conversation_id", "sequence_number"),
	}
}
