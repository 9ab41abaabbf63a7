package api

import (
	"bufio"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/localmind/assistant/internal/config"
	"github.com/localmind/assistant/internal/memory"
	"github.com/localmind/assistant/internal/orchestrator"
)

const maxChatContentChars = 100_000

// handleChat implements POST /api/chat (spec.md §6): sync or streaming,
// deep-job dispatch, or a direct turn through the orchestrator. Mirrors
// the shape of tarsy's sendChatMessageHandler (validate -> resolve state
// -> bind body -> execute -> respond), generalized from tarsy's
// session-chain chat flow to this system's single orchestrator turn.
func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": userFacingError(err.Error())})
		return
	}
	s.handleChatWithRequest(c, req)
}

// handleChatWithRequest runs the shared body of POST /api/chat once req
// has already been bound — factored out so POST /api/chat/deep-jobs can
// reuse it after forcing DeepJob true.
func (s *Server) handleChatWithRequest(c *gin.Context, req ChatRequest) {
	userMessage := lastUserMessage(req.Messages)
	if len(userMessage) > maxChatContentChars {
		c.JSON(http.StatusBadRequest, gin.H{"error": userFacingError("message content exceeds maximum length")})
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	mode := config.ContextMode(req.ResponseMode)
	if mode == "" {
		mode = config.ContextModeFull
	}

	orchReq := orchestrator.Request{
		ConversationID: conversationID,
		UserMessage:    userMessage,
		Mode:           mode,
		Trigger:        detectTrigger(userMessage),
		SkillNames:     req.SkillNames,
	}

	if err := s.ensureConversation(c, conversationID, req.Model, req.Stream, req.DeepJob); err != nil {
		respondError(c, err)
		return
	}

	if req.DeepJob {
		s.submitDeepJob(c, orchReq)
		return
	}
	if req.Stream {
		s.streamChat(c, orchReq, req.Model)
		return
	}
	s.syncChat(c, orchReq, req.Model)
}

func (s *Server) ensureConversation(c *gin.Context, id, model string, stream, deepJob bool) error {
	if _, err := s.store.GetConversation(c.Request.Context(), id); err == nil {
		return nil
	}
	return s.store.CreateConversation(c.Request.Context(), &memory.Conversation{
		ID: id, Model: model, Stream: stream, DeepJob: deepJob, Status: "queued",
	})
}

// syncChat runs one turn through orchestrator.Process and returns the
// single-envelope response (spec.md §6: "{message:{content}, model,
// done:true}") — property P1 requires this text be identical to what
// streamChat assembles, which holds structurally since both call the
// same Orchestrator.Process/ProcessStream pair over runTurn.
func (s *Server) syncChat(c *gin.Context, req orchestrator.Request, model string) {
	resp, err := s.orch.Process(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chatResponseFromFinal(resp, model))
}

// streamChat runs the same turn through ProcessStream and relays each
// telemetry.Event as one NDJSON line (spec.md §6: "streams NDJSON chunks
// when stream=true").
func (s *Server) streamChat(c *gin.Context, req orchestrator.Request, model string) {
	events, err := s.orch.ProcessStream(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)
	writer := bufio.NewWriter(c.Writer)
	defer writer.Flush()

	flusher, canFlush := c.Writer.(http.Flusher)

	for ev := range events {
		chunk := ChatChunk{Type: ev.Type, ConversationID: ev.ConversationID, Sequence: ev.SequenceNumber, Payload: ev.Payload}
		if ev.Type == "done" {
			if sources, ok := ev.Payload["context_sources"].([]string); ok {
				chunk.ContextSources = sources
			}
		}
		line, err := json.Marshal(chunk)
		if err != nil {
			continue
		}
		writer.Write(line)
		writer.WriteByte('\n')
		writer.Flush()
		if canFlush {
			flusher.Flush()
		}
	}
}

func (s *Server) submitDeepJob(c *gin.Context, req orchestrator.Request) {
	jobID, err := s.jobs.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, DeepJobResponse{JobID: jobID})
}

func lastUserMessage(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}

func chatResponseFromFinal(resp *orchestrator.FinalResponse, model string) ChatResponse {
	return ChatResponse{
		Message:        ChatMessageEnvelope{Content: resp.Text},
		Model:          model,
		Done:           true,
		ContextSources: resp.ContextSources,
	}
}

func userFacingError(reason string) string {
	return "❌ Fehler: " + reason
}
