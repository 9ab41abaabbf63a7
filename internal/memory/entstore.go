package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/localmind/assistant/ent"
	"github.com/localmind/assistant/ent/conversationsession"
	"github.com/localmind/assistant/ent/message"
	"github.com/localmind/assistant/ent/timelineevent"
	"github.com/localmind/assistant/ent/toolcallrecord"
	"github.com/localmind/assistant/ent/workspaceentry"
)

// EntStore implements Store over the generated ent client, following the
// same thin-wrapper-around-ent pattern as tarsy's pkg/services.
type EntStore struct {
	client *ent.Client
}

// NewEntStore builds an EntStore.
func NewEntStore(client *ent.Client) *EntStore {
	return &EntStore{client: client}
}

func (s *EntStore) CreateConversation(ctx context.Context, c *Conversation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	builder := s.client.ConversationSession.Create().
		SetID(c.ID).
		SetModel(c.Model).
		SetStream(c.Stream).
		SetDeepJob(c.DeepJob).
		SetStatus(conversationsession.Status(c.Status)).
		SetCreatedAt(time.Now())
	if c.JobID != "" {
		builder = builder.SetJobID(c.JobID)
	}
	if len(c.ContextSources) > 0 {
		builder = builder.SetContextSources(c.ContextSources)
	}
	_, err := builder.Save(ctx)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (s *EntStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row, err := s.client.ConversationSession.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return conversationFromEnt(row), nil
}

func (s *EntStore) UpdateConversationStatus(ctx context.Context, id string, status string, finalText string, errMsg string) error {
	update := s.client.ConversationSession.UpdateOneID(id).
		SetStatus(conversationsession.Status(status)).
		SetCompletedAt(time.Now())
	if finalText != "" {
		update = update.SetFinalText(finalText)
	}
	if errMsg != "" {
		update = update.SetErrorMessage(errMsg)
	}
	if _, err := update.Save(ctx); err != nil {
		return fmt.Errorf("update conversation status %s: %w", id, err)
	}
	return nil
}

func (s *EntStore) ListRecentConversations(ctx context.Context, since time.Time, limit int) ([]*Conversation, error) {
	rows, err := s.client.ConversationSession.Query().
		Where(conversationsession.CreatedAtGTE(since)).
		Order(ent.Desc(conversationsession.FieldCreatedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recent conversations: %w", err)
	}
	out := make([]*Conversation, len(rows))
	for i, r := range rows {
		out[i] = conversationFromEnt(r)
	}
	return out, nil
}

func (s *EntStore) AppendMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	builder := s.client.Message.Create().
		SetID(m.ID).
		SetConversationID(m.ConversationID).
		SetSequenceNumber(m.SequenceNumber).
		SetRole(message.Role(m.Role)).
		SetContent(m.Content).
		SetCreatedAt(time.Now())
	if m.ToolCallID != "" {
		builder = builder.SetToolCallID(m.ToolCallID)
	}
	if m.ToolName != "" {
		builder = builder.SetToolName(m.ToolName)
	}
	if _, err := builder.Save(ctx); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *EntStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	rows, err := s.client.Message.Query().
		Where(message.ConversationIDEQ(conversationID)).
		Order(ent.Asc(message.FieldSequenceNumber)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", conversationID, err)
	}
	out := make([]*Message, len(rows))
	for i, r := range rows {
		out[i] = &Message{
			ID: r.ID, ConversationID: r.ConversationID, SequenceNumber: r.SequenceNumber,
			Role: string(r.Role), Content: r.Content, ToolCallID: r.ToolCallID,
			ToolName: r.ToolName, CreatedAt: r.CreatedAt,
		}
	}
	return out, nil
}

// AppendWorkspaceEntry writes a new entry. Callers are responsible for
// passing a sequence-consistent CreatedAt so the (conversation_id,
// created_at) index preserves append order — invariant I10.
func (s *EntStore) AppendWorkspaceEntry(ctx context.Context, e *WorkspaceEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	builder := s.client.WorkspaceEntry.Create().
		SetID(e.ID).
		SetConversationID(e.ConversationID).
		SetEntryType(workspaceentry.EntryType(e.EntryType)).
		SetSourceLayer(workspaceentry.SourceLayer(e.SourceLayer)).
		SetContent(e.Content).
		SetCreatedAt(time.Now())
	if e.Source != "" {
		builder = builder.SetSource(workspaceentry.Source(e.Source))
	}
	if e.EventData != nil {
		builder = builder.SetEventData(e.EventData)
	}
	if _, err := builder.Save(ctx); err != nil {
		return fmt.Errorf("append workspace entry: %w", err)
	}
	return nil
}

func (s *EntStore) GetWorkspaceEntry(ctx context.Context, id string) (*WorkspaceEntry, error) {
	row, err := s.client.WorkspaceEntry.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get workspace entry %s: %w", id, err)
	}
	return workspaceEntriesFromEnt([]*ent.WorkspaceEntry{row})[0], nil
}

func (s *EntStore) UpdateWorkspaceEntry(ctx context.Context, id string, content map[string]any) error {
	if _, err := s.client.WorkspaceEntry.UpdateOneID(id).SetContent(content).Save(ctx); err != nil {
		return fmt.Errorf("update workspace entry %s: %w", id, err)
	}
	return nil
}

func (s *EntStore) DeleteWorkspaceEntry(ctx context.Context, id string) error {
	if err := s.client.WorkspaceEntry.DeleteOneID(id).Exec(ctx); err != nil {
		return fmt.Errorf("delete workspace entry %s: %w", id, err)
	}
	return nil
}

func (s *EntStore) ListWorkspaceEntries(ctx context.Context, conversationID string, since time.Time) ([]*WorkspaceEntry, error) {
	rows, err := s.client.WorkspaceEntry.Query().
		Where(
			workspaceentry.ConversationIDEQ(conversationID),
			workspaceentry.CreatedAtGTE(since),
		).
		Order(ent.Asc(workspaceentry.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspace entries for %s: %w", conversationID, err)
	}
	return workspaceEntriesFromEnt(rows), nil
}

func (s *EntStore) ListWorkspaceEntriesByType(ctx context.Context, entryType string, since time.Time, limit int) ([]*WorkspaceEntry, error) {
	rows, err := s.client.WorkspaceEntry.Query().
		Where(
			workspaceentry.EntryTypeEQ(workspaceentry.EntryType(entryType)),
			workspaceentry.CreatedAtGTE(since),
		).
		Order(ent.Desc(workspaceentry.FieldCreatedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspace entries by type %s: %w", entryType, err)
	}
	return workspaceEntriesFromEnt(rows), nil
}

func (s *EntStore) CreateToolCallRecord(ctx context.Context, r *ToolCallRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	builder := s.client.ToolCallRecord.Create().
		SetID(r.ID).
		SetConversationID(r.ConversationID).
		SetToolName(r.ToolName).
		SetStatus(toolcallrecord.Status(r.Status)).
		SetCreatedAt(time.Now())
	if r.Args != nil {
		builder = builder.SetArgs(r.Args)
	}
	if _, err := builder.Save(ctx); err != nil {
		return fmt.Errorf("create tool call record: %w", err)
	}
	return nil
}

func (s *EntStore) UpdateToolCallRecord(ctx context.Context, r *ToolCallRecord) error {
	update := s.client.ToolCallRecord.UpdateOneID(r.ID).
		SetStatus(toolcallrecord.Status(r.Status)).
		SetCompletedAt(time.Now())
	if r.Result != nil {
		update = update.SetResult(r.Result)
	}
	if r.ErrorMessage != "" {
		update = update.SetErrorMessage(r.ErrorMessage)
	}
	if r.ContainerID != "" {
		update = update.SetContainerID(r.ContainerID)
	}
	if _, err := update.Save(ctx); err != nil {
		return fmt.Errorf("update tool call record %s: %w", r.ID, err)
	}
	return nil
}

func (s *EntStore) ListToolCallRecords(ctx context.Context, conversationID string) ([]*ToolCallRecord, error) {
	rows, err := s.client.ToolCallRecord.Query().
		Where(toolcallrecord.ConversationIDEQ(conversationID)).
		Order(ent.Asc(toolcallrecord.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tool call records for %s: %w", conversationID, err)
	}
	out := make([]*ToolCallRecord, len(rows))
	for i, r := range rows {
		out[i] = &ToolCallRecord{
			ID: r.ID, ConversationID: r.ConversationID, ToolName: r.ToolName,
			Args: r.Args, Result: r.Result, ErrorMessage: r.ErrorMessage,
			Status: string(r.Status), ContainerID: r.ContainerID,
			CreatedAt: r.CreatedAt, CompletedAt: r.CompletedAt,
		}
	}
	return out, nil
}

// SearchFacts does a simple recency-windowed scan over "note" entries,
// matching substrings of query against Content. A real deployment would
// route this through the Embedding Router (C9) for semantic search; this
// keeps the interface stable while that integration lands.
func (s *EntStore) SearchFacts(ctx context.Context, query string, since time.Time, topK int) ([]*WorkspaceEntry, error) {
	rows, err := s.client.WorkspaceEntry.Query().
		Where(
			workspaceentry.EntryTypeEQ(workspaceentry.EntryTypeNote),
			workspaceentry.CreatedAtGTE(since),
		).
		Order(ent.Desc(workspaceentry.FieldCreatedAt)).
		Limit(topK * 4). // over-fetch, then filter below
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("search facts: %w", err)
	}
	matched := workspaceEntriesFromEnt(rows)
	if query == "" {
		if len(matched) > topK {
			matched = matched[:topK]
		}
		return matched, nil
	}
	filtered := matched[:0]
	needle := strings.ToLower(query)
	for _, e := range matched {
		if strings.Contains(strings.ToLower(fmt.Sprint(e.Content)), needle) {
			filtered = append(filtered, e)
		}
		if len(filtered) >= topK {
			break
		}
	}
	return filtered, nil
}

func (s *EntStore) ListTimelineEventsByTypes(ctx context.Context, conversationID string, eventTypes []string, since time.Time) ([]*TimelineEvent, error) {
	types := make([]timelineevent.EventType, len(eventTypes))
	for i, t := range eventTypes {
		types[i] = timelineevent.EventType(t)
	}
	rows, err := s.client.TimelineEvent.Query().
		Where(
			timelineevent.ConversationIDEQ(conversationID),
			timelineevent.EventTypeIn(types...),
			timelineevent.CreatedAtGTE(since),
		).
		Order(ent.Asc(timelineevent.FieldSequenceNumber)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list timeline events for %s: %w", conversationID, err)
	}
	out := make([]*TimelineEvent, len(rows))
	for i, r := range rows {
		out[i] = &TimelineEvent{
			ID: r.ID, ConversationID: r.ConversationID, SequenceNumber: r.SequenceNumber,
			EventType: string(r.EventType), Payload: r.Payload, CreatedAt: r.CreatedAt,
		}
	}
	return out, nil
}

func conversationFromEnt(r *ent.ConversationSession) *Conversation {
	return &Conversation{
		ID: r.ID, Model: r.Model, Stream: r.Stream, DeepJob: r.DeepJob,
		Status: string(r.Status), JobID: r.JobID, DurationMS: r.DurationMs,
		FinalText: r.FinalText, ContextSources: r.ContextSources,
		ErrorMessage: r.ErrorMessage, CreatedAt: r.CreatedAt, CompletedAt: r.CompletedAt,
	}
}

func workspaceEntriesFromEnt(rows []*ent.WorkspaceEntry) []*WorkspaceEntry {
	out := make([]*WorkspaceEntry, len(rows))
	for i, r := range rows {
		out[i] = &WorkspaceEntry{
			ID: r.ID, ConversationID: r.ConversationID, EntryType: string(r.EntryType),
			SourceLayer: string(r.SourceLayer), Source: string(r.Source),
			Content: r.Content, EventData: r.EventData, CreatedAt: r.CreatedAt,
		}
	}
	return out
}
