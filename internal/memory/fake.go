package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// FakeStore is an in-memory Store used by other packages' tests so they can
// exercise real control flow without a live Postgres connection.
type FakeStore struct {
	mu sync.Mutex

	conversations  map[string]*Conversation
	messages       map[string][]*Message
	entries        map[string][]*WorkspaceEntry // keyed by conversation id
	toolCalls      map[string][]*ToolCallRecord
	timelineEvents map[string][]*TimelineEvent
}

// NewFakeStore builds an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		conversations:  make(map[string]*Conversation),
		messages:       make(map[string][]*Message),
		entries:        make(map[string][]*WorkspaceEntry),
		toolCalls:      make(map[string][]*ToolCallRecord),
		timelineEvents: make(map[string][]*TimelineEvent),
	}
}

// AppendTimelineEvent is a test-only seam — production TimelineEvent rows
// are written by internal/telemetry.Publisher directly against the ent
// client, not through Store, so this exists only so tests can seed
// container_start/container_done rows for the Context Builder.
func (f *FakeStore) AppendTimelineEvent(ev *TimelineEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *ev
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.timelineEvents[ev.ConversationID] = append(f.timelineEvents[ev.ConversationID], &cp)
}

func (f *FakeStore) CreateConversation(_ context.Context, c *Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	cp.CreatedAt = time.Now()
	f.conversations[c.ID] = &cp
	return nil
}

func (f *FakeStore) GetConversation(_ context.Context, id string) (*Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (f *FakeStore) UpdateConversationStatus(_ context.Context, id, status, finalText, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return fmt.Errorf("conversation %s not found", id)
	}
	c.Status = status
	if finalText != "" {
		c.FinalText = finalText
	}
	if errMsg != "" {
		c.ErrorMessage = errMsg
	}
	now := time.Now()
	c.CompletedAt = &now
	return nil
}

func (f *FakeStore) ListRecentConversations(_ context.Context, since time.Time, limit int) ([]*Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Conversation
	for _, c := range f.conversations {
		if c.CreatedAt.After(since) || c.CreatedAt.Equal(since) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeStore) AppendMessage(_ context.Context, m *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	cp.CreatedAt = time.Now()
	f.messages[m.ConversationID] = append(f.messages[m.ConversationID], &cp)
	return nil
}

func (f *FakeStore) ListMessages(_ context.Context, conversationID string, limit int) ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.messages[conversationID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]*Message, len(all))
	copy(out, all)
	return out, nil
}

func (f *FakeStore) AppendWorkspaceEntry(_ context.Context, e *WorkspaceEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	if cp.ID == "" {
		cp.ID = fmt.Sprintf("entry-%d-%d", len(f.entries[e.ConversationID]), time.Now().UnixNano())
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.entries[e.ConversationID] = append(f.entries[e.ConversationID], &cp)
	return nil
}

func (f *FakeStore) GetWorkspaceEntry(_ context.Context, id string) (*WorkspaceEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entries := range f.entries {
		for _, e := range entries {
			if e.ID == id {
				cp := *e
				return &cp, nil
			}
		}
	}
	return nil, fmt.Errorf("workspace entry %s not found", id)
}

func (f *FakeStore) UpdateWorkspaceEntry(_ context.Context, id string, content map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entries := range f.entries {
		for _, e := range entries {
			if e.ID == id {
				e.Content = content
				return nil
			}
		}
	}
	return fmt.Errorf("workspace entry %s not found", id)
}

func (f *FakeStore) DeleteWorkspaceEntry(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conv, entries := range f.entries {
		for i, e := range entries {
			if e.ID == id {
				f.entries[conv] = append(entries[:i], entries[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("workspace entry %s not found", id)
}

func (f *FakeStore) ListWorkspaceEntries(_ context.Context, conversationID string, since time.Time) ([]*WorkspaceEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*WorkspaceEntry
	for _, e := range f.entries[conversationID] {
		if e.CreatedAt.After(since) || e.CreatedAt.Equal(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *FakeStore) ListWorkspaceEntriesByType(_ context.Context, entryType string, since time.Time, limit int) ([]*WorkspaceEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*WorkspaceEntry
	for _, entries := range f.entries {
		for _, e := range entries {
			if e.EntryType == entryType && (e.CreatedAt.After(since) || e.CreatedAt.Equal(since)) {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeStore) CreateToolCallRecord(_ context.Context, r *ToolCallRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *r
	cp.CreatedAt = time.Now()
	f.toolCalls[r.ConversationID] = append(f.toolCalls[r.ConversationID], &cp)
	return nil
}

func (f *FakeStore) UpdateToolCallRecord(_ context.Context, r *ToolCallRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rows := range f.toolCalls {
		for _, row := range rows {
			if row.ID == r.ID {
				row.Status = r.Status
				row.Result = r.Result
				row.ErrorMessage = r.ErrorMessage
				row.ContainerID = r.ContainerID
				now := time.Now()
				row.CompletedAt = &now
				return nil
			}
		}
	}
	return fmt.Errorf("tool call record %s not found", r.ID)
}

func (f *FakeStore) ListToolCallRecords(_ context.Context, conversationID string) ([]*ToolCallRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*ToolCallRecord, len(f.toolCalls[conversationID]))
	copy(out, f.toolCalls[conversationID])
	return out, nil
}

func (f *FakeStore) SearchFacts(_ context.Context, query string, since time.Time, topK int) ([]*WorkspaceEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*WorkspaceEntry
	needle := strings.ToLower(query)
	for _, entries := range f.entries {
		for _, e := range entries {
			if e.EntryType != "note" || e.CreatedAt.Before(since) {
				continue
			}
			if needle == "" || strings.Contains(strings.ToLower(fmt.Sprint(e.Content)), needle) {
				matched = append(matched, e)
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if len(matched) > topK {
		matched = matched[:topK]
	}
	return matched, nil
}

func (f *FakeStore) ListTimelineEventsByTypes(_ context.Context, conversationID string, eventTypes []string, since time.Time) ([]*TimelineEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		wanted[t] = true
	}
	var out []*TimelineEvent
	for _, ev := range f.timelineEvents[conversationID] {
		if wanted[ev.EventType] && (ev.CreatedAt.After(since) || ev.CreatedAt.Equal(since)) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

var _ Store = (*FakeStore)(nil)
