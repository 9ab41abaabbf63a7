// Package api implements the platform's HTTP surface (spec.md §6):
// chat (sync and streaming), deep jobs, workspace CRUD, the skill/package
// authority endpoints, and the digest runtime status endpoint. It wires
// internal/orchestrator, internal/memory, internal/skillauthority, and
// internal/digest behind gin. NewServer takes every dependency up front and
// setupRoutes registers the routes; there are no Set* setters and no
// separate wiring validation step — tarsy's own
// pkg/api code is split across gin (cmd/tarsy/main.go, handlers.go) and
// echo (everything else); this package standardizes on gin, which is what
// go.mod actually declares as the direct HTTP dependency, while the route
// surface and business rules below are grounded on the richer echo
// handler set (handler_chat.go, handler_session.go, handler_system.go,
// etc).
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localmind/assistant/internal/config"
	"github.com/localmind/assistant/internal/digest"
	"github.com/localmind/assistant/internal/memory"
	"github.com/localmind/assistant/internal/orchestrator"
	"github.com/localmind/assistant/internal/skillauthority"
)

// Server is the assistant platform's HTTP server, wiring every C-module
// the API surface touches. Mirrors tarsy's pkg/api.Server field set,
// narrowed to this system's components.
type Server struct {
	router *gin.Engine
	http   *http.Server

	orch       *orchestrator.Orchestrator
	jobs       *orchestrator.JobManager
	store      memory.Store
	authority  *skillauthority.Authority
	registry   *skillauthority.Registry
	digestStore *digest.Store
	digestLock *digest.Lock
	cfg        *config.Config

	version string
}

// NewServer builds a Server with every dependency wired. Mirrors tarsy's
// pkg/api.NewServer, but takes the full dependency set up front rather
// than via Set* setters — this system has a single deployment shape
// (spec.md Non-goals exclude a multi-tenant control plane), so there is
// no partial-wiring scenario ValidateWiring needs to guard against.
func NewServer(orch *orchestrator.Orchestrator, jobs *orchestrator.JobManager, store memory.Store, authority *skillauthority.Authority, registry *skillauthority.Registry, digestStore *digest.Store, digestLock *digest.Lock, cfg *config.Config, version string) *Server {
	s := &Server{
		orch: orch, jobs: jobs, store: store,
		authority: authority, registry: registry,
		digestStore: digestStore, digestLock: digestLock,
		cfg: cfg, version: version,
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), requestLogger(), securityHeaders())
	s.setupRoutes()
	return s
}

// Router exposes the underlying gin.Engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.POST("/chat", s.handleChat)
	api.POST("/chat/deep-jobs", s.handleCreateDeepJob)
	api.GET("/chat/deep-jobs/:id", s.handleGetDeepJob)
	api.GET("/workspace", s.handleListWorkspace)
	api.PUT("/workspace/:id", s.handleUpdateWorkspaceEntry)
	api.DELETE("/workspace/:id", s.handleDeleteWorkspaceEntry)
	api.GET("/workspace-events", s.handleListWorkspaceEvents)
	api.GET("/runtime/digest-state", s.handleDigestState)

	v1 := s.router.Group("/v1")
	v1.GET("/skills/:name", s.handleGetSkill)
	v1.GET("/packages", s.handleListPackages)
	v1.POST("/packages", s.handleClassifyPackages)
	v1.POST("/skills/create", s.handleCreateSkill)
}

// Start begins serving on addr. Blocks until Shutdown is called or the
// server errors, mirroring tarsy's Server.Start.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.router}
	slog.Info("api server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

// requestLogger mirrors the teacher's structured-logging idiom
// (log/slog throughout pkg/api), translated to a gin middleware.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "duration_ms", time.Since(start).Milliseconds())
	}
}
