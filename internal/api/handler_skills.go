package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/localmind/assistant/internal/skillauthority"
)

// handleGetSkill implements GET /v1/skills/{name}?channel=... (spec.md
// §6). The registry is keyed by SkillKey, not by name alone, so this
// scans List() for the first record whose Name matches — acceptable
// given the registry's size (one operator's installed skill set, not a
// multi-tenant catalogue).
func (s *Server) handleGetSkill(c *gin.Context) {
	name := c.Param("name")

	records, err := s.registry.List()
	if err != nil {
		respondError(c, err)
		return
	}
	for _, rec := range records {
		if rec.Name != name {
			continue
		}
		c.JSON(http.StatusOK, SkillResponse{
			Name: rec.Name, Language: rec.Language, Status: rec.Status,
			Manifest: rec.Manifest, RequestedPackages: rec.RequestedPackages,
			ControlDecision: rec.ControlDecision,
		})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": userFacingError("skill not found: " + name)})
}

// handleListPackages implements GET /v1/packages: every package name any
// installed skill has ever requested, deduplicated.
func (s *Server) handleListPackages(c *gin.Context) {
	records, err := s.registry.List()
	if err != nil {
		respondError(c, err)
		return
	}
	seen := map[string]bool{}
	var packages []string
	for _, rec := range records {
		for _, pkg := range rec.RequestedPackages {
			if !seen[pkg] {
				seen[pkg] = true
				packages = append(packages, pkg)
			}
		}
	}
	c.JSON(http.StatusOK, PackagesResponse{Packages: packages})
}

// handleClassifyPackages implements POST /v1/packages: classify a
// candidate package list against the allowlist without running a full
// skill-create flow (spec.md §4.4's package-policy step, exposed
// standalone for a UI that wants to warn before a create attempt).
func (s *Server) handleClassifyPackages(c *gin.Context) {
	var req ClassifyPackagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": userFacingError(err.Error())})
		return
	}

	classified := s.authority.ClassifyPackages(c.Request.Context(), req.Packages)
	out := make(map[string]string, len(classified))
	for pkg, status := range classified {
		out[pkg] = string(status)
	}
	c.JSON(http.StatusOK, ClassifyPackagesResponse{Classification: out})
}

// handleCreateSkill implements POST /v1/skills/create (spec.md §6): when
// authority=skill_server, a control_decision is required on the request
// only in the sense that the authority computes and returns one — the
// caller never supplies it, preserving the Single Control Authority
// invariant (P3) that nothing outside internal/skillauthority ever
// originates a control decision for a skill-create request.
func (s *Server) handleCreateSkill(c *gin.Context) {
	var req CreateSkillHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": userFacingError(err.Error())})
		return
	}

	result, err := s.authority.CreateSkill(c.Request.Context(), skillauthority.CreateSkillRequest{
		Name: req.Name, Code: req.Code, Language: req.Language,
		Manifest: req.Manifest, RequestedPackages: req.RequestedPackages,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, CreateSkillHTTPResponse{
		Status: result.Status, SkillKey: result.SkillKey,
		NeedsPackageInstall: result.NeedsPackageInstall, MissingPackages: result.MissingPackages,
	})
}
