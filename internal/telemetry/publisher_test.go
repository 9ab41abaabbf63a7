package telemetry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNotifyPayloadSmall(t *testing.T) {
	raw, err := buildNotifyPayload(EventContent, "conv-1", 3, map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Contains(t, raw, `"type":"content"`)
	assert.Contains(t, raw, `"conversation_id":"conv-1"`)
	assert.Contains(t, raw, `"hello"`)
}

func TestBuildNotifyPayloadTruncatesOversizedContent(t *testing.T) {
	big := strings.Repeat("x", notifyPayloadLimit+500)
	raw, err := buildNotifyPayload(EventThinkingDone, "conv-2", 1, map[string]any{"text": big})
	require.NoError(t, err)
	assert.Less(t, len(raw), notifyPayloadLimit+100)
	assert.Contains(t, raw, `"truncated":true`)
	assert.Contains(t, raw, `"conversation_id":"conv-2"`)
}

func TestBuildNotifyPayloadWithinLimitNotTruncated(t *testing.T) {
	raw, err := buildNotifyPayload(EventDone, "conv-3", 0, map[string]any{"status": "succeeded"})
	require.NoError(t, err)
	assert.NotContains(t, raw, "truncated")
}
