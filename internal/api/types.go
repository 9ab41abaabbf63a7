package api

import "github.com/localmind/assistant/internal/orchestrator"

// ChatMessage is one entry of a chat request's messages[] array
// (spec.md §6: "POST /api/chat accepts {model, messages[], stream?,
// conversation_id, response_mode?}").
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the HTTP request body for POST /api/chat.
type ChatRequest struct {
	Model          string        `json:"model"`
	Messages       []ChatMessage `json:"messages"`
	Stream         bool          `json:"stream"`
	ConversationID string        `json:"conversation_id"`
	ResponseMode   string        `json:"response_mode"`
	DeepJob        bool          `json:"deep_job"`
	SkillNames     []string      `json:"skill_names,omitempty"`
}

// ChatMessageEnvelope is the assistant message envelope used both by the
// non-stream response and by stream "content"/"done" chunks.
type ChatMessageEnvelope struct {
	Content string `json:"content"`
}

// ChatResponse is the non-stream envelope returned by POST /api/chat
// (spec.md §6: "{message:{content}, model, done:true}").
type ChatResponse struct {
	Message        ChatMessageEnvelope `json:"message"`
	Model          string              `json:"model"`
	Done           bool                `json:"done"`
	ContextSources []string            `json:"context_sources"`

	NeedsPackageInstall   bool     `json:"needs_package_install,omitempty"`
	NeedsPackageApproval  bool     `json:"needs_package_approval,omitempty"`
	EventType             string   `json:"event_type,omitempty"`
	MissingPackages       []string `json:"missing_packages,omitempty"`
	SkillName             string   `json:"skill_name,omitempty"`
}

// ChatChunk is one newline-delimited JSON chunk of a streaming response
// (spec.md §6, chunk types listed in §4.3: sequential_start/step/done,
// control, content, done, error).
type ChatChunk struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversation_id"`
	Sequence       int      `json:"sequence,omitempty"`
	Payload        any      `json:"payload,omitempty"`
	ContextSources []string `json:"context_sources,omitempty"`
}

// DeepJobResponse is returned by POST /api/chat/deep-jobs.
type DeepJobResponse struct {
	JobID string `json:"job_id"`
}

// DeepJobStatusResponse is returned by GET /api/chat/deep-jobs/{id}.
type DeepJobStatusResponse struct {
	Status     orchestrator.JobState `json:"status"`
	DurationMS int64                 `json:"duration_ms"`
	Result     *ChatResponse         `json:"result,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// WorkspaceEntryResponse is one row returned by GET /api/workspace and
// GET /api/workspace-events (spec.md §6: editable rows carry
// _source="entry", read-only _source="event").
type WorkspaceEntryResponse struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	EntryType      string         `json:"entry_type"`
	SourceLayer    string         `json:"source_layer"`
	Source         string         `json:"_source"`
	Content        map[string]any `json:"content"`
	EventData      map[string]any `json:"event_data,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

// UpdateWorkspaceEntryRequest is the HTTP request body for
// PUT /api/workspace/{id}.
type UpdateWorkspaceEntryRequest struct {
	Content map[string]any `json:"content"`
}

// SkillResponse is returned by GET /v1/skills/{name}.
type SkillResponse struct {
	Name              string         `json:"name"`
	Language          string         `json:"language"`
	Status            string         `json:"status"`
	Manifest          map[string]any `json:"manifest,omitempty"`
	RequestedPackages []string       `json:"requested_packages,omitempty"`
	ControlDecision   map[string]any `json:"control_decision,omitempty"`
}

// PackagesResponse is returned by GET /v1/packages.
type PackagesResponse struct {
	Packages []string `json:"packages"`
}

// ClassifyPackagesRequest is the request body for POST /v1/packages.
type ClassifyPackagesRequest struct {
	Packages []string `json:"packages"`
}

// ClassifyPackagesResponse is returned by POST /v1/packages.
type ClassifyPackagesResponse struct {
	Classification map[string]string `json:"classification"`
}

// CreateSkillHTTPRequest is the HTTP request body for POST /v1/skills/create.
type CreateSkillHTTPRequest struct {
	Name              string         `json:"name"`
	Code              string         `json:"code"`
	Language          string         `json:"language"`
	Manifest          map[string]any `json:"manifest,omitempty"`
	RequestedPackages []string       `json:"requested_packages,omitempty"`
}

// CreateSkillHTTPResponse is returned by POST /v1/skills/create.
type CreateSkillHTTPResponse struct {
	Status              string   `json:"status"`
	SkillKey            string   `json:"skill_key,omitempty"`
	NeedsPackageInstall bool     `json:"needs_package_install,omitempty"`
	MissingPackages     []string `json:"missing_packages,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
