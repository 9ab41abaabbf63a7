package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/localmind/assistant/ent"
	"github.com/localmind/assistant/ent/conversationsession"
)

// notifyPayloadLimit mirrors PostgreSQL's 8000-byte NOTIFY payload limit,
// leaving headroom for JSON escaping the way tarsy's publisher does.
const notifyPayloadLimit = 7900

// Notifier broadcasts a raw string payload on a PostgreSQL NOTIFY channel.
// Implemented by the database package's pgx pool wrapper; kept as a narrow
// interface here so the publisher is testable without a live connection.
type Notifier interface {
	Notify(ctx context.Context, channel, payload string) error
}

// Publisher persists TimelineEvent rows and broadcasts them over NOTIFY in
// the same transaction semantics tarsy's EventPublisher uses — persistence
// and delivery never disagree about whether an event happened.
type Publisher struct {
	client   *ent.Client
	notifier Notifier
}

// NewPublisher builds a Publisher over an ent client and a Notifier.
func NewPublisher(client *ent.Client, notifier Notifier) *Publisher {
	return &Publisher{client: client, notifier: notifier}
}

// PublishPersistent creates a TimelineEvent row and broadcasts it on the
// conversation's channel. Used for every event type except the purely
// transient streaming deltas (EventThinkingStream / EventSeqThinkingStream /
// EventContent chunks), which skip persistence entirely.
func (p *Publisher) PublishPersistent(ctx context.Context, conversationID string, seq int, eventType string, payload map[string]any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	tx, err := p.client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin event transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw map[string]any
	if err := json.Unmarshal(payloadJSON, &raw); err != nil {
		raw = map[string]any{}
	}

	_, err = tx.TimelineEvent.Create().
		SetConversationID(conversationID).
		SetSequenceNumber(seq).
		SetEventType(eventType).
		SetPayload(raw).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("persist timeline event: %w", err)
	}

	notifyPayload, err := buildNotifyPayload(eventType, conversationID, seq, raw)
	if err != nil {
		return err
	}
	if err := p.notifier.Notify(ctx, ConversationChannel(conversationID), notifyPayload); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event transaction: %w", err)
	}
	return nil
}

// PublishTransient broadcasts an event with no DB persistence — used for
// high-frequency streaming deltas that are lost on reconnect by design; the
// terminal "*_done" event carries the full text for clients that missed
// deltas.
func (p *Publisher) PublishTransient(ctx context.Context, conversationID string, eventType string, payload map[string]any) error {
	notifyPayload, err := buildNotifyPayload(eventType, conversationID, 0, payload)
	if err != nil {
		return err
	}
	if err := p.notifier.Notify(ctx, ConversationChannel(conversationID), notifyPayload); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// PublishConversationStatus broadcasts a conversation lifecycle change both
// to the conversation's own channel and, transiently, to the global list
// channel so an open conversation list updates live. Best-effort on the
// global broadcast: a failure there does not fail the call.
func (p *Publisher) PublishConversationStatus(ctx context.Context, conversationID string, status conversationsession.Status) error {
	payload := map[string]any{"status": string(status)}
	err := p.PublishTransient(ctx, conversationID, EventDone, payload)

	notifyPayload, buildErr := buildNotifyPayload(EventDone, conversationID, 0, payload)
	if buildErr == nil {
		if notifyErr := p.notifier.Notify(ctx, GlobalConversationsChannel, notifyPayload); notifyErr != nil {
			slog.Warn("failed to broadcast conversation status to global channel",
				"conversation_id", conversationID, "error", notifyErr)
		}
	}
	return err
}

func buildNotifyPayload(eventType, conversationID string, seq int, payload map[string]any) (string, error) {
	env := Event{Type: eventType, ConversationID: conversationID, SequenceNumber: seq, Payload: payload}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal notify envelope: %w", err)
	}
	if len(raw) <= notifyPayloadLimit {
		return string(raw), nil
	}
	truncated := map[string]any{
		"type":            eventType,
		"conversation_id": conversationID,
		"sequence_number": seq,
		"truncated":       true,
	}
	raw, err = json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("marshal truncated notify envelope: %w", err)
	}
	return string(raw), nil
}
