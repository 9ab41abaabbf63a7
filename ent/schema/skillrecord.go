package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// SkillRecord mirrors the authoritative `installed.json` truth store
// (spec.md §4.4) for queryability from the runtime API. `installed.json`
// itself — not this table — is the source of truth, written through
// internal/skillauthority.Registry; nothing in this repository writes rows
// to this table.
//
// Invariant I1: only one non-revoked row per `key` ever exists.
type SkillRecord struct {
	ent.Schema
}

// Fields of the SkillRecord.
func (SkillRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("key").
			Comment("Deterministic hash(name, normalized_code, language) — unique per I1").
			Unique().
			Immutable(),
		field.String("name"),
		field.String("version"),
		field.Enum("status").
			Values("active", "draft", "revoked").
			Default("draft"),
		field.String("language"),
		field.Strings("requested_packages").
			Optional(),
		field.JSON("control_decision", map[string]interface{}{}).
			Optional().
			Comment("The ControlDecision that authorized creation"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the SkillRecord.
func (SkillRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("name", "status"),
	}
}
