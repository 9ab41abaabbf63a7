package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Blueprint holds the authoritative active-container set that the Graph
// Hygiene pipeline (C7) cross-checks graph candidates against (spec.md
// §4.5, invariant I3). A blueprint describes a runnable container template;
// "active" rows are the ones graph-visible candidates must be a subset of.
type Blueprint struct {
	ent.Schema
}

// Fields of the Blueprint.
func (Blueprint) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("blueprint_id").
			Unique().
			Immutable(),
		field.Bool("active").
			Default(true),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("deleted_at").
			Optional().
			Nillable().
			Comment("Set when the blueprint is deleted; triggers graph tombstoning"),
	}
}

// Indexes of the Blueprint.
func (Blueprint) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("active"),
	}
}
