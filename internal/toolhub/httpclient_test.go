package toolhub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPServerClient_ListTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "tools/list", req.Method)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		resp := jsonRPCResponse{Result: json.RawMessage(`{"tools":[{"name":"read_file","description":"reads a file","inputSchema":{"type":"object"}}]}`)}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewHTTPServerClient(HTTPServerClientConfig{
		Endpoints:   map[string]string{"files": srv.URL},
		BearerToken: "secret",
	})

	tools, err := client.ListTools(context.Background(), "files")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "read_file", tools[0].Name)
	assert.Equal(t, "files", tools[0].ServerAddr)
	assert.JSONEq(t, `{"type":"object"}`, tools[0].ArgsSchema)
}

func TestHTTPServerClient_CallTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "tools/call", req.Method)

		resp := jsonRPCResponse{Result: json.RawMessage(`{"content":[{"type":"text","text":"hello"}],"isError":false}`)}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := NewHTTPServerClient(HTTPServerClientConfig{Endpoints: map[string]string{"files": srv.URL}})

	content, isError, err := client.CallTool(context.Background(), "files", "read_file", map[string]any{"path": "a.txt"})
	require.NoError(t, err)
	assert.False(t, isError)
	assert.Equal(t, "hello", content)
}

func TestHTTPServerClient_UnknownServer(t *testing.T) {
	client := NewHTTPServerClient(HTTPServerClientConfig{Endpoints: map[string]string{}})
	_, err := client.ListTools(context.Background(), "missing")
	require.Error(t, err)
}
