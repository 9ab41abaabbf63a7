package skillauthority

import (
	"context"
	"fmt"

	"github.com/localmind/assistant/internal/config"
	"github.com/localmind/assistant/internal/pipeline"
)

// ApprovalSink records an escalated skill-create request for later human
// review. Optional — a deployment that never escalates skill creation can
// leave it nil, in which case an escalate decision is still returned to
// the caller but nothing is durably recorded.
type ApprovalSink interface {
	RecordApprovalRequest(ctx context.Context, req CreateSkillRequest, decision *pipeline.ControlDecision) error
}

// Authority is the Single Control Authority (C6, spec.md §4.4): package
// classify, safety validation, executor delegation, and the authoritative
// truth-store write, gated by cfg.Authority exactly as the spec's two
// configurations describe.
type Authority struct {
	cfg        *config.SkillAuthorityConfig
	allowlist  *allowlistCache
	validator  *SafetyValidator
	executor   Executor
	registry   *Registry
	graphIndex GraphIndexEnqueuer
	approvals  ApprovalSink
}

// NewAuthority builds an Authority. allowlistSource, executor, graphIndex,
// and approvals may all be nil — each failure mode (empty allowlist,
// missing executor, best-effort graph sync, unrecorded escalation) is
// handled fail-closed or as a documented no-op rather than a panic.
func NewAuthority(cfg *config.SkillAuthorityConfig, allowlistSource AllowlistSource, executor Executor, registry *Registry, graphIndex GraphIndexEnqueuer, approvals ApprovalSink) *Authority {
	return &Authority{
		cfg:        cfg,
		allowlist:  newAllowlistCache(allowlistSource, cfg.AllowlistCacheTTL),
		validator:  NewSafetyValidator(),
		executor:   executor,
		registry:   registry,
		graphIndex: graphIndex,
		approvals:  approvals,
	}
}

// Decide implements pipeline.SkillAuthority — the narrow pre-check the
// Critic consults for a skill-mutating intent during ordinary
// conversational turns, before any code or manifest exists. It runs the
// safety validator against the plan's reasoning text as a stand-in code
// surface; the full package-policy and registry flow only runs once real
// code is submitted, via CreateSkill.
//
// authority=legacy_dual bypasses entirely, deferring to the executor —
// Decide itself is only ever consulted when authority=skill_server; in
// legacy_dual mode the caller (the Critic) still calls it, so bypass is
// expressed here as a pass-through approve stamped with the legacy_dual
// source, which IsFailClosed("") will not reject, but which any
// executor-side source check for "skill_server" specifically will.
func (a *Authority) Decide(_ context.Context, _ string, plan *pipeline.Plan) (*pipeline.ControlDecision, error) {
	if a.cfg.Authority == config.AuthorityLegacyDual {
		return &pipeline.ControlDecision{
			Action: pipeline.ControlActionApprove, Passed: true,
			Source: "legacy_dual", PolicyVersion: "v1",
		}, nil
	}
	return a.validator.Validate(plan.Reasoning, nil, "skill_server"), nil
}

// CreateSkill runs the full C6 flow (spec.md §4.4 steps 1-7) for a
// concrete skill-create request.
func (a *Authority) CreateSkill(ctx context.Context, req CreateSkillRequest) (*CreateSkillResult, error) {
	if a.cfg.Authority == config.AuthorityLegacyDual {
		// authority bypasses; the executor validates and owns the decision.
		return a.delegateToExecutor(ctx, req, nil)
	}

	// Step 2: package classify.
	if missing := a.missingPackages(ctx, req.RequestedPackages); len(missing) > 0 {
		return &CreateSkillResult{
			Status: "pending_package_approval", MissingPackages: missing, NeedsPackageInstall: true,
		}, nil
	}

	// Step 4: safety validator.
	decision := a.validator.Validate(req.Code, manifestImports(req.Manifest), "skill_server")

	// Step 5.
	switch decision.Action {
	case pipeline.ControlActionBlock:
		return &CreateSkillResult{Status: "blocked", Decision: decision}, nil
	case pipeline.ControlActionEscalate:
		if a.approvals != nil {
			if err := a.approvals.RecordApprovalRequest(ctx, req, decision); err != nil {
				return nil, fmt.Errorf("record approval request: %w", err)
			}
		}
		return &CreateSkillResult{Status: "pending_approval", Decision: decision}, nil
	}

	// Steps 6-7.
	return a.delegateToExecutor(ctx, req, decision)
}

func (a *Authority) delegateToExecutor(ctx context.Context, req CreateSkillRequest, decision *pipeline.ControlDecision) (*CreateSkillResult, error) {
	key := SkillKey(req.Name, req.Code, req.Language)

	if a.executor == nil {
		return nil, fmt.Errorf("skillauthority: no executor configured")
	}

	result, err := a.executor.Create(ctx, ExecutorCreateRequest{
		Name: req.Name, Code: req.Code, Language: req.Language, Manifest: req.Manifest, Decision: decision,
	})
	if err != nil {
		return nil, fmt.Errorf("executor create: %w", err)
	}
	if result == nil || !result.Accepted {
		reason := "rejected_by_authority"
		if result != nil && result.RejectReason != "" {
			reason = result.RejectReason
		}
		return &CreateSkillResult{Status: "blocked", SkillKey: key, Decision: decision}, fmt.Errorf("%s", reason)
	}

	decisionMap := map[string]any{}
	if decision != nil {
		decisionMap = map[string]any{
			"action": string(decision.Action), "passed": decision.Passed,
			"source": decision.Source, "policy_version": decision.PolicyVersion, "reasons": decision.Reasons,
		}
	}
	if a.registry != nil {
		if err := a.registry.Put(SkillRecord{
			Key: key, Name: req.Name, Language: req.Language, Code: req.Code,
			Manifest: req.Manifest, RequestedPackages: req.RequestedPackages,
			Status: "active", ControlDecision: decisionMap,
		}); err != nil {
			return nil, fmt.Errorf("persist skill record: %w", err)
		}
	}

	if a.graphIndex != nil {
		// weak: best-effort, failure here never undoes the registry write.
		_ = a.graphIndex.EnqueueSync(ctx, key)
	}

	return &CreateSkillResult{Status: "created", SkillKey: key, Decision: decision}, nil
}

// manifestImports extracts a best-effort []string of declared imports
// from a skill manifest's "imports" key, tolerating absence or an
// unexpected shape rather than panicking.
func manifestImports(manifest map[string]any) []string {
	raw, ok := manifest["imports"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ClassifyPackages exposes the allowlist classification used internally by
// missingPackages, for callers (the package-listing API endpoint) that need
// per-package status without running a full CreateSkill flow.
func (a *Authority) ClassifyPackages(ctx context.Context, requested []string) map[string]PackageStatus {
	return a.allowlist.classify(ctx, requested)
}

// missingPackages classifies req's requested packages against the
// allowlist and cfg.PackageInstallMode. manual_only never auto-installs,
// so any non-empty package list is treated as needing approval regardless
// of allowlist status.
func (a *Authority) missingPackages(ctx context.Context, requested []string) []string {
	if len(requested) == 0 {
		return nil
	}
	if a.cfg.PackageInstallMode == config.PackageModeManualOnly {
		return requested
	}
	classified := a.allowlist.classify(ctx, requested)
	var missing []string
	for _, pkg := range requested {
		if classified[pkg] != PackageAllowlisted {
			missing = append(missing, pkg)
		}
	}
	return missing
}
