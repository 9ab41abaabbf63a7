package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleGetDeepJob implements GET /api/chat/deep-jobs/{id} (spec.md §6):
// {status, duration_ms, result?, error?}.
func (s *Server) handleGetDeepJob(c *gin.Context) {
	status, err := s.jobs.Status(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := DeepJobStatusResponse{Status: status.State, DurationMS: status.DurationMS, Error: status.Error}
	if status.Result != nil {
		result := chatResponseFromFinal(status.Result, "")
		resp.Result = &result
	}
	c.JSON(http.StatusOK, resp)
}

// handleCreateDeepJob implements POST /api/chat/deep-jobs as a thin alias
// of POST /api/chat with deep_job always true, for clients that prefer a
// dedicated endpoint over the deep_job flag.
func (s *Server) handleCreateDeepJob(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": userFacingError(err.Error())})
		return
	}
	req.DeepJob = true
	s.handleChatWithRequest(c, req)
}
