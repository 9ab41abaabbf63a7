// Package llmclient implements pipeline.LLMClient and pipeline.OutputModel
// against an OpenAI-compatible chat-completions backend. LLM inference
// itself is out of scope (spec.md §1); this package is only the thin
// adapter the thinking/tool-selector/output layers call through, the same
// narrow role pkg/agent/llm_grpc.go plays for tarsy's Python LLM sidecar —
// generalized from a gRPC sidecar contract to a plain HTTP one (see
// DESIGN.md for why).
package llmclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/localmind/assistant/internal/pipeline"
	"github.com/localmind/assistant/internal/toolhub"
)

// Config points the client at a single OpenAI-compatible backend. CodeModel
// is swapped in when the output layer's useCodeModel flag is set.
type Config struct {
	BaseURL     string
	Model       string
	CodeModel   string
	APIKeyEnv   string
	Timeout     time.Duration
	InsecureTLS bool
}

// Client implements both pipeline.LLMClient (single-shot generation for
// the thinking layer) and pipeline.OutputModel
// (tool-calling generation for the output layer).
type Client struct {
	cfg    Config
	apiKey string
	http   *http.Client
}

// New builds a Client. Reads the API key from cfg.APIKeyEnv at construction
// time, matching pkg/agent/llm_grpc.go's "env-var name resolved once, not
// sent as a secret over the wire" pattern.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &Client{
		cfg:    cfg,
		apiKey: os.Getenv(cfg.APIKeyEnv),
		http:   &http.Client{Transport: transport, Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type toolSpec struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters,omitempty"`
	} `json:"function"`
}

type chatRequest struct {
	Model       string       `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64      `json:"temperature,omitempty"`
	Tools       []toolSpec   `json:"tools,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate implements pipeline.LLMClient: a single-shot, non-tool-calling
// completion used by the thinking layer's planner.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	req := chatRequest{
		Model:       c.cfg.Model,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	resp, err := c.call(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llmclient: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// ToolModel adapts Client to pipeline.OutputModel. A separate type because
// LLMClient.Generate and OutputModel.Generate have incompatible signatures;
// both share Client's HTTP plumbing and API key.
type ToolModel struct {
	*Client
}

// NewToolModel builds the output layer's model seam from the same
// underlying Client used for single-shot generation.
func NewToolModel(c *Client) *ToolModel {
	return &ToolModel{Client: c}
}

// Generate implements pipeline.OutputModel: tool-calling generation for
// the output layer's loop. useCodeModel routes to cfg.CodeModel when set.
func (m *ToolModel) Generate(ctx context.Context, messages []pipeline.Message, tools []toolhub.ToolDescriptor, useCodeModel bool) (*pipeline.ModelResponse, error) {
	c := m.Client
	model := c.cfg.Model
	if useCodeModel && c.cfg.CodeModel != "" {
		model = c.cfg.CodeModel
	}

	req := chatRequest{Model: model, Messages: toChatMessages(messages), Tools: toToolSpecs(tools)}
	resp, err := c.call(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llmclient: empty choices in response")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("llmclient: decode tool call arguments: %w", err)
			}
		}
		return &pipeline.ModelResponse{ToolCall: &toolhub.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		}}, nil
	}
	return &pipeline.ModelResponse{Text: msg.Content}, nil
}

func (c *Client) call(ctx context.Context, body chatRequest) (*chatResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llmclient: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("llmclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llmclient: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var resp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("llmclient: decode response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("llmclient: backend error: %s", resp.Error.Message)
	}
	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("llmclient: backend returned status %d", httpResp.StatusCode)
	}
	return &resp, nil
}

func toChatMessages(messages []pipeline.Message) []chatMessage {
	out := make([]chatMessage, len(messages))
	for i, m := range messages {
		out[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func toToolSpecs(tools []toolhub.ToolDescriptor) []toolSpec {
	out := make([]toolSpec, len(tools))
	for i, t := range tools {
		spec := toolSpec{Type: "function"}
		spec.Function.Name = t.Name
		spec.Function.Description = t.Description
		if t.ArgsSchema != "" {
			spec.Function.Parameters = json.RawMessage(t.ArgsSchema)
		}
		out[i] = spec
	}
	return out
}
