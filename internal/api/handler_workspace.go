package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localmind/assistant/internal/memory"
)

const defaultWorkspaceLimit = 200

// handleListWorkspace implements GET /api/workspace?conversation_id&limit
// (spec.md §6). Every row is annotated with _source — "entry" for rows an
// operator may edit or delete, "event" for read-only derived rows —
// mirroring the distinction memory.WorkspaceEntry.Source already carries.
func (s *Server) handleListWorkspace(c *gin.Context) {
	conversationID := c.Query("conversation_id")
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": userFacingError("conversation_id is required")})
		return
	}

	since := time.Time{}
	entries, err := s.store.ListWorkspaceEntries(c.Request.Context(), conversationID, since)
	if err != nil {
		respondError(c, err)
		return
	}

	limit := defaultWorkspaceLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	out := make([]WorkspaceEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, workspaceEntryResponse(e))
	}
	c.JSON(http.StatusOK, out)
}

// handleListWorkspaceEvents implements GET /api/workspace-events — the
// read-only projection of workspace rows whose Source is "event".
func (s *Server) handleListWorkspaceEvents(c *gin.Context) {
	entryType := c.Query("entry_type")
	limit := defaultWorkspaceLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.store.ListWorkspaceEntriesByType(c.Request.Context(), entryType, time.Time{}, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]WorkspaceEntryResponse, 0, len(entries))
	for _, e := range entries {
		if e.Source != "" && e.Source != "event" {
			continue
		}
		out = append(out, workspaceEntryResponse(e))
	}
	c.JSON(http.StatusOK, out)
}

// handleUpdateWorkspaceEntry implements PUT /api/workspace/{id} (spec.md
// §6: "Editable if source = entry").
func (s *Server) handleUpdateWorkspaceEntry(c *gin.Context) {
	id := c.Param("id")

	entry, err := s.store.GetWorkspaceEntry(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if entry.Source != "entry" {
		c.JSON(http.StatusForbidden, gin.H{"error": userFacingError("only entries with _source=entry are editable")})
		return
	}

	var req UpdateWorkspaceEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": userFacingError(err.Error())})
		return
	}

	if err := s.store.UpdateWorkspaceEntry(c.Request.Context(), id, req.Content); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleDeleteWorkspaceEntry implements DELETE /api/workspace/{id}.
func (s *Server) handleDeleteWorkspaceEntry(c *gin.Context) {
	id := c.Param("id")

	entry, err := s.store.GetWorkspaceEntry(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if entry.Source != "entry" {
		c.JSON(http.StatusForbidden, gin.H{"error": userFacingError("only entries with _source=entry are deletable")})
		return
	}

	if err := s.store.DeleteWorkspaceEntry(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func workspaceEntryResponse(e *memory.WorkspaceEntry) WorkspaceEntryResponse {
	source := e.Source
	if source == "" {
		source = "event"
	}
	return WorkspaceEntryResponse{
		ID:             e.ID,
		ConversationID: e.ConversationID,
		EntryType:      e.EntryType,
		SourceLayer:    e.SourceLayer,
		Source:         source,
		Content:        e.Content,
		EventData:      e.EventData,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
	}
}
