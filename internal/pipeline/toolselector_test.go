package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmind/assistant/internal/toolhub"
)

func TestToolSelectorRanksByOverlapAndTrimsToMax(t *testing.T) {
	s := NewToolSelector(15, 2)
	catalogue := []toolhub.ToolDescriptor{
		{Name: "files-server.read_file", Description: "reads a file from disk"},
		{Name: "web-server.fetch", Description: "fetches a URL over HTTP"},
		{Name: "files-server.write_file", Description: "writes a file to disk"},
	}

	out, err := s.Select(context.Background(), "please read a file from disk", catalogue)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "files-server.read_file", out[0].Name)
}

func TestToolSelectorDeterministicForIdenticalInput(t *testing.T) {
	s := NewToolSelector(15, 5)
	catalogue := []toolhub.ToolDescriptor{
		{Name: "a.tool", Description: "does a thing"},
		{Name: "b.tool", Description: "does a thing"},
	}

	first, err := s.Select(context.Background(), "do a thing", catalogue)
	require.NoError(t, err)
	second, err := s.Select(context.Background(), "do a thing", catalogue)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	// equal scores tie-break alphabetically by name
	assert.Equal(t, "a.tool", first[0].Name)
}

func TestToolSelectorTopKBoundsBeforeMax(t *testing.T) {
	s := NewToolSelector(1, 5)
	catalogue := []toolhub.ToolDescriptor{
		{Name: "z.tool", Description: "matches query well query query"},
		{Name: "a.tool", Description: "no overlap at all"},
	}
	out, err := s.Select(context.Background(), "query", catalogue)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "z.tool", out[0].Name)
}

func TestToolSelectorEmptyCatalogue(t *testing.T) {
	s := NewToolSelector(15, 5)
	out, err := s.Select(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
