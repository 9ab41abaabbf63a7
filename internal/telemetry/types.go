// Package telemetry publishes pipeline events for real-time delivery via
// PostgreSQL NOTIFY/LISTEN, the same transport tarsy's pkg/events package
// uses for its WebSocket event bus.
package telemetry

// Persistent event types — stored as TimelineEvent rows and broadcast via
// NOTIFY in the same transaction (spec.md §4.3's stream event catalogue).
const (
	EventThinkingStream    = "thinking_stream"
	EventThinkingDone      = "thinking_done"
	EventSeqThinkingStream = "seq_thinking_stream"
	EventSeqThinkingDone   = "seq_thinking_done"
	EventSequentialStart   = "sequential_start"
	EventSequentialStep    = "sequential_step"
	EventSequentialDone    = "sequential_done"
	EventControl           = "control"
	EventContainerStart    = "container_start"
	EventContainerDone     = "container_done"
	EventPanelCreateTab    = "panel_create_tab"
	EventPanelUpdate       = "panel_update"
	EventContent           = "content"
	EventMemory            = "memory"
	EventDone              = "done"
	EventError             = "error"
)

// GlobalConversationsChannel carries conversation-list-level status events
// (new conversation created, conversation terminal status changed).
const GlobalConversationsChannel = "conversations"

// ConversationChannel returns the NOTIFY channel for one conversation's
// timeline events.
func ConversationChannel(conversationID string) string {
	return "conversation:" + conversationID
}

// Event is the JSON envelope delivered over NOTIFY and stored in
// TimelineEvent.Payload.
type Event struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversation_id"`
	SequenceNumber int            `json:"sequence_number,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
}
