// Package memory defines the platform's cross-session memory interface —
// the single seam every other package uses to read and write conversation
// history, workspace entries, tool-call records, and skill/blueprint
// projections. Keeping it as an interface (mirrored on the retrieval pack's
// own MemoryDB pattern) lets the pipeline, context builder, and digest
// worker develop and test against a fake without a live database.
package memory

import (
	"context"
	"time"
)

// Conversation is the read model of a ConversationSession row.
type Conversation struct {
	ID             string
	Model          string
	Stream         bool
	DeepJob        bool
	Status         string
	JobID          string
	DurationMS     int64
	FinalText      string
	ContextSources []string
	ErrorMessage   string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// WorkspaceEntry is the read model of a WorkspaceEntry row.
type WorkspaceEntry struct {
	ID             string
	ConversationID string
	EntryType      string
	SourceLayer    string
	Source         string
	Content        map[string]any
	EventData      map[string]any
	CreatedAt      time.Time
}

// Message is a chat-turn row attached to a conversation.
type Message struct {
	ID             string
	ConversationID string
	SequenceNumber int
	Role           string
	Content        string
	ToolCallID     string
	ToolName       string
	CreatedAt      time.Time
}

// TimelineEvent is the read model of one persisted streaming event
// (internal/telemetry.Publisher writes these; the Context Builder's
// active-containers source, spec.md §4.1 item 4, reads them back).
type TimelineEvent struct {
	ID             string
	ConversationID string
	SequenceNumber int
	EventType      string
	Payload        map[string]any
	CreatedAt      time.Time
}

// ToolCallRecord is the read/write model of a ToolCallRecord row.
type ToolCallRecord struct {
	ID             string
	ConversationID string
	ToolName       string
	Args           map[string]any
	Result         map[string]any
	ErrorMessage   string
	Status         string
	ContainerID    string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// Store is the persistence seam for conversation, workspace, and tool-call
// state. Implementations must be safe for concurrent use.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	UpdateConversationStatus(ctx context.Context, id string, status string, finalText string, errMsg string) error
	ListRecentConversations(ctx context.Context, since time.Time, limit int) ([]*Conversation, error)

	// Messages
	AppendMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	// Workspace entries — append-only, non-decreasing sequence within a
	// conversation (spec.md invariant I10). UpdateWorkspaceEntry and
	// DeleteWorkspaceEntry are only valid against entries with
	// Source == "entry" (spec.md §6 Workspace: "Editable rows carry
	// _source=entry, read-only _source=event") — callers must check
	// Source before calling either.
	AppendWorkspaceEntry(ctx context.Context, e *WorkspaceEntry) error
	GetWorkspaceEntry(ctx context.Context, id string) (*WorkspaceEntry, error)
	UpdateWorkspaceEntry(ctx context.Context, id string, content map[string]any) error
	DeleteWorkspaceEntry(ctx context.Context, id string) error
	ListWorkspaceEntries(ctx context.Context, conversationID string, since time.Time) ([]*WorkspaceEntry, error)
	ListWorkspaceEntriesByType(ctx context.Context, entryType string, since time.Time, limit int) ([]*WorkspaceEntry, error)

	// Tool calls
	CreateToolCallRecord(ctx context.Context, r *ToolCallRecord) error
	UpdateToolCallRecord(ctx context.Context, r *ToolCallRecord) error
	ListToolCallRecords(ctx context.Context, conversationID string) ([]*ToolCallRecord, error)

	// Cross-conversation fact recall — backs the Context Builder's
	// fact_recall and remember JIT-loading triggers.
	SearchFacts(ctx context.Context, query string, since time.Time, topK int) ([]*WorkspaceEntry, error)

	// Timeline events — backs the Context Builder's active-containers
	// source (spec.md §4.1 item 4).
	ListTimelineEventsByTypes(ctx context.Context, conversationID string, eventTypes []string, since time.Time) ([]*TimelineEvent, error)
}
