package toolhub

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPServerClient implements ServerClient against MCP servers reachable
// over streamable HTTP, speaking the protocol's JSON-RPC 2.0 envelope
// directly over net/http rather than pulling in the MCP SDK's transport
// and session machinery — the SDK is never imported anywhere reachable
// from this repo's go.mod (see DESIGN.md), so this client talks the wire
// format it defines with the stdlib, grounded on pkg/mcp/transport.go's
// own http.Client construction (cloned default transport, optional
// bearer token, TLS/timeout from config).
type HTTPServerClient struct {
	http      *http.Client
	endpoints map[string]string // serverID -> base URL
	bearer    string
}

// HTTPServerClientConfig configures one HTTPServerClient instance.
type HTTPServerClientConfig struct {
	Endpoints   map[string]string
	BearerToken string
	Timeout     time.Duration
	VerifySSL   bool
}

// NewHTTPServerClient builds a ServerClient that dispatches to the
// configured per-server base URLs.
func NewHTTPServerClient(cfg HTTPServerClientConfig) *HTTPServerClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12} //nolint:gosec
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPServerClient{
		http:      &http.Client{Transport: transport, Timeout: timeout},
		endpoints: cfg.Endpoints,
		bearer:    cfg.BearerToken,
	}
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *jsonRPCError   `json:"error"`
}

func (c *HTTPServerClient) do(ctx context.Context, serverID, method string, params any, out any) error {
	base, ok := c.endpoints[serverID]
	if !ok {
		return fmt.Errorf("toolhub: no endpoint configured for server %q", serverID)
	}

	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("toolhub: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("toolhub: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("toolhub: call %s on %q: %w", method, serverID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("toolhub: server %q returned status %d", serverID, resp.StatusCode)
	}

	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("toolhub: decode response from %q: %w", serverID, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("toolhub: server %q error %d: %s", serverID, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("toolhub: decode result from %q: %w", serverID, err)
		}
	}
	return nil
}

type listToolsResult struct {
	Tools []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		InputSchema any    `json:"inputSchema"`
	} `json:"tools"`
}

// ListTools calls the MCP "tools/list" method against the named server.
func (c *HTTPServerClient) ListTools(ctx context.Context, serverID string) ([]ToolDescriptor, error) {
	var result listToolsResult
	if err := c.do(ctx, serverID, "tools/list", nil, &result); err != nil {
		return nil, err
	}
	descriptors := make([]ToolDescriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("toolhub: encode schema for %s.%s: %w", serverID, t.Name, err)
		}
		descriptors = append(descriptors, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			ArgsSchema:  string(schema),
			ServerAddr:  serverID,
		})
	}
	return descriptors, nil
}

type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// CallTool calls the MCP "tools/call" method and flattens the returned
// content blocks into a single string, matching ServerClient's contract.
func (c *HTTPServerClient) CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (string, bool, error) {
	params := map[string]any{"name": toolName, "arguments": args}
	var result callToolResult
	if err := c.do(ctx, serverID, "tools/call", params, &result); err != nil {
		return "", true, err
	}
	var buf bytes.Buffer
	for _, block := range result.Content {
		buf.WriteString(block.Text)
	}
	return buf.String(), result.IsError, nil
}
