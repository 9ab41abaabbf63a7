// Package toolhub implements the tool registry and dispatch hub (C1):
// a flat catalogue of tool descriptors addressed by "server.tool" names,
// with exact-id dispatch to one backing server connection. Semantic
// ranking upstream (the tool-selector pipeline stage) narrows the
// candidate set before a call ever reaches the hub — this package never
// ranks, it only validates and routes.
package toolhub

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// toolNameRegex enforces the "server.tool" format: both parts start with a
// word character and contain only word characters and hyphens.
var toolNameRegex = regexp.MustCompile(`^([\w][\w-]*)\.([\w][\w-]*)$`)

// NormalizeToolName converts the native-function-call form ("server__tool",
// used where the calling model's function-name grammar forbids dots) to the
// canonical "server.tool" form used for routing everywhere else.
func NormalizeToolName(name string) string {
	if strings.Contains(name, "__") && !strings.Contains(name, ".") {
		return strings.Replace(name, "__", ".", 1)
	}
	return name
}

// SplitToolName splits a canonical "server.tool" name into its parts.
func SplitToolName(name string) (serverID, toolName string, err error) {
	m := toolNameRegex.FindStringSubmatch(name)
	if m == nil {
		return "", "", fmt.Errorf(
			"invalid tool name %q: must be in 'server.tool' format (e.g. 'files-server.read_file')", name)
	}
	return m[1], m[2], nil
}

// ToolDescriptor is one registered tool's static metadata.
type ToolDescriptor struct {
	Name        string // canonical "server.tool" form once registered (Refresh prefixes bare names)
	Description string
	ArgsSchema  string // JSON schema, opaque to the hub
	ServerAddr  string // id of the server that listed the tool
}

// ToolCall is a resolved invocation request.
type ToolCall struct {
	ID        string
	Name      string // as received, possibly in "server__tool" form
	Arguments map[string]any
}

// ToolResult is the outcome of a tool invocation.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// ServerClient is the narrow seam to one MCP-style tool server connection.
// Implementations own transport and connection lifecycle.
type ServerClient interface {
	ListTools(ctx context.Context, serverID string) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (content string, isError bool, err error)
}

// Registry holds the flat tool catalogue, refreshed from configured
// servers, and dispatches calls by exact "server.tool" id.
type Registry struct {
	client    ServerClient
	serverIDs []string

	mu    sync.RWMutex
	tools map[string]ToolDescriptor // keyed by canonical name
}

// NewRegistry builds a Registry over the given servers.
func NewRegistry(client ServerClient, serverIDs []string) *Registry {
	return &Registry{client: client, serverIDs: serverIDs, tools: make(map[string]ToolDescriptor)}
}

// Refresh re-lists tools from every configured server. Partial failures are
// tolerated — a server that can't be reached simply contributes no tools,
// the way tarsy's ToolExecutor.ListTools continues past a failing server.
func (r *Registry) Refresh(ctx context.Context) error {
	next := make(map[string]ToolDescriptor)
	var firstErr error
	for _, serverID := range r.serverIDs {
		tools, err := r.client.ListTools(ctx, serverID)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("list tools from %s: %w", serverID, err)
			}
			continue
		}
		for _, t := range tools {
			if !strings.Contains(t.Name, ".") {
				t.Name = serverID + "." + t.Name
			}
			next[t.Name] = t
		}
	}
	r.mu.Lock()
	r.tools = next
	r.mu.Unlock()
	if len(next) == 0 && firstErr != nil {
		return firstErr
	}
	return nil
}

// List returns all currently registered tool descriptors, sorted by name
// for deterministic context-builder rendering.
func (r *Registry) List() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns one tool descriptor by canonical name.
func (r *Registry) Lookup(name string) (ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Execute normalizes, validates, and dispatches a tool call to its exact
// server.tool id. Routing failures are returned as an error ToolResult
// (MCP convention), not a Go error, so the calling pipeline stage can
// always feed the outcome back to the model as an observation.
func (r *Registry) Execute(ctx context.Context, call ToolCall) (*ToolResult, error) {
	name := NormalizeToolName(call.Name)

	serverID, toolName, err := SplitToolName(name)
	if err != nil {
		return &ToolResult{CallID: call.ID, Name: call.Name, Content: err.Error(), IsError: true}, nil
	}

	if _, ok := r.Lookup(name); !ok {
		return &ToolResult{
			CallID: call.ID, Name: call.Name, IsError: true,
			Content: fmt.Sprintf("tool %q is not registered; call toolhub.Registry.Refresh or check the tool name", name),
		}, nil
	}

	content, isError, err := r.client.CallTool(ctx, serverID, toolName, call.Arguments)
	if err != nil {
		return &ToolResult{
			CallID: call.ID, Name: call.Name, IsError: true,
			Content: fmt.Sprintf("tool execution failed: %s", err),
		}, nil
	}
	return &ToolResult{CallID: call.ID, Name: call.Name, Content: content, IsError: isError}, nil
}
