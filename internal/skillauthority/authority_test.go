package skillauthority

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmind/assistant/internal/config"
	"github.com/localmind/assistant/internal/pipeline"
)

type fakeExecutor struct {
	accepted     bool
	rejectReason string
	calls        int
	lastReq      ExecutorCreateRequest
}

func (f *fakeExecutor) Create(_ context.Context, req ExecutorCreateRequest) (*ExecutorResult, error) {
	f.calls++
	f.lastReq = req
	return &ExecutorResult{Accepted: f.accepted, RejectReason: f.rejectReason, Version: "1"}, nil
}

type fakeGraphIndex struct{ synced []string }

func (f *fakeGraphIndex) EnqueueSync(_ context.Context, skillKey string) error {
	f.synced = append(f.synced, skillKey)
	return nil
}

type fakeApprovals struct{ recorded int }

func (f *fakeApprovals) RecordApprovalRequest(_ context.Context, _ CreateSkillRequest, _ *pipeline.ControlDecision) error {
	f.recorded++
	return nil
}

func newTestAuthority(t *testing.T, cfg *config.SkillAuthorityConfig, allowlist []string, exec *fakeExecutor, graphIndex *fakeGraphIndex, approvals *fakeApprovals) *Authority {
	t.Helper()
	registry := NewRegistry(filepath.Join(t.TempDir(), "installed.json"))
	var src AllowlistSource
	if allowlist != nil {
		src = &fakeAllowlistSource{packages: allowlist}
	}
	var execIface Executor
	if exec != nil {
		execIface = exec
	}
	var gi GraphIndexEnqueuer
	if graphIndex != nil {
		gi = graphIndex
	}
	var ap ApprovalSink
	if approvals != nil {
		ap = approvals
	}
	return NewAuthority(cfg, src, execIface, registry, gi, ap)
}

func skillServerConfig() *config.SkillAuthorityConfig {
	return &config.SkillAuthorityConfig{
		Authority:          config.AuthoritySkillServer,
		PackageInstallMode: config.PackageModeAllowlistAuto,
		AllowlistCacheTTL:  0,
	}
}

func TestClassifyPackagesReflectsAllowlist(t *testing.T) {
	auth := newTestAuthority(t, skillServerConfig(), []string{"requests"}, nil, nil, nil)
	result := auth.ClassifyPackages(context.Background(), []string{"requests", "evil-pkg"})
	assert.Equal(t, PackageAllowlisted, result["requests"])
	assert.Equal(t, PackageNonAllowlisted, result["evil-pkg"])
}

func TestCreateSkillHappyPathPersistsAndEnqueuesSync(t *testing.T) {
	exec := &fakeExecutor{accepted: true}
	graphIndex := &fakeGraphIndex{}
	auth := newTestAuthority(t, skillServerConfig(), []string{"requests"}, exec, graphIndex, nil)

	result, err := auth.CreateSkill(context.Background(), CreateSkillRequest{
		Name: "greeter", Code: `fmt.Println("hi")`, Language: "go", RequestedPackages: []string{"requests"},
	})
	require.NoError(t, err)
	assert.Equal(t, "created", result.Status)
	assert.NotEmpty(t, result.SkillKey)
	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, []string{result.SkillKey}, graphIndex.synced)
	assert.Equal(t, pipeline.ControlActionApprove, result.Decision.Action)
	assert.Equal(t, "skill_server", exec.lastReq.Decision.Source)
}

func TestCreateSkillNonAllowlistedPackageBlocksBeforeValidator(t *testing.T) {
	exec := &fakeExecutor{accepted: true}
	auth := newTestAuthority(t, skillServerConfig(), []string{"requests"}, exec, nil, nil)

	result, err := auth.CreateSkill(context.Background(), CreateSkillRequest{
		Name: "greeter", Code: `fmt.Println("hi")`, Language: "go", RequestedPackages: []string{"exotic-pkg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pending_package_approval", result.Status)
	assert.Equal(t, []string{"exotic-pkg"}, result.MissingPackages)
	assert.True(t, result.NeedsPackageInstall)
	assert.Equal(t, 0, exec.calls, "executor must never run before package policy clears")
}

func TestCreateSkillManualOnlyAlwaysFlagsPackages(t *testing.T) {
	cfg := skillServerConfig()
	cfg.PackageInstallMode = config.PackageModeManualOnly
	exec := &fakeExecutor{accepted: true}
	auth := newTestAuthority(t, cfg, []string{"requests"}, exec, nil, nil)

	result, err := auth.CreateSkill(context.Background(), CreateSkillRequest{
		Name: "greeter", Code: "ok", Language: "go", RequestedPackages: []string{"requests"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pending_package_approval", result.Status)
	assert.True(t, result.NeedsPackageInstall)
}

func TestCreateSkillFailClosedWhenAllowlistFetchFails(t *testing.T) {
	cfg := skillServerConfig()
	exec := &fakeExecutor{accepted: true}
	auth := NewAuthority(cfg, &fakeAllowlistSource{err: assert.AnError}, exec, NewRegistry(filepath.Join(t.TempDir(), "installed.json")), nil, nil)

	result, err := auth.CreateSkill(context.Background(), CreateSkillRequest{
		Name: "greeter", Code: "ok", Language: "go", RequestedPackages: []string{"requests"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pending_package_approval", result.Status)
}

func TestCreateSkillBlocksOnUnsafeCode(t *testing.T) {
	exec := &fakeExecutor{accepted: true}
	auth := newTestAuthority(t, skillServerConfig(), nil, exec, nil, nil)

	result, err := auth.CreateSkill(context.Background(), CreateSkillRequest{
		Name: "danger", Code: `exec.Command("rm", "-rf", "/")`, Language: "go",
	})
	require.NoError(t, err)
	assert.Equal(t, "blocked", result.Status)
	assert.Equal(t, 0, exec.calls)
}

func TestCreateSkillEscalatesOnFlaggedImportAndRecordsApproval(t *testing.T) {
	exec := &fakeExecutor{accepted: true}
	approvals := &fakeApprovals{}
	auth := newTestAuthority(t, skillServerConfig(), nil, exec, nil, approvals)

	result, err := auth.CreateSkill(context.Background(), CreateSkillRequest{
		Name: "net-tool", Code: "ok", Language: "go", Manifest: map[string]any{"imports": []string{"socket"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "pending_approval", result.Status)
	assert.Equal(t, 1, approvals.recorded)
	assert.Equal(t, 0, exec.calls)
}

func TestCreateSkillExecutorRejectionPropagatesAsError(t *testing.T) {
	exec := &fakeExecutor{accepted: false, rejectReason: "rejected_by_authority"}
	auth := newTestAuthority(t, skillServerConfig(), nil, exec, nil, nil)

	_, err := auth.CreateSkill(context.Background(), CreateSkillRequest{Name: "greeter", Code: "ok", Language: "go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected_by_authority")
}

func TestCreateSkillLegacyDualBypassesPolicyAndValidator(t *testing.T) {
	cfg := &config.SkillAuthorityConfig{Authority: config.AuthorityLegacyDual}
	exec := &fakeExecutor{accepted: true}
	auth := newTestAuthority(t, cfg, nil, exec, nil, nil)

	result, err := auth.CreateSkill(context.Background(), CreateSkillRequest{
		Name: "greeter", Code: `exec.Command("rm", "-rf", "/")`, Language: "go", RequestedPackages: []string{"exotic-pkg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "created", result.Status, "legacy_dual defers entirely to the executor, never blocking here")
	assert.Nil(t, exec.lastReq.Decision)
}

func TestDecideSkillServerModeValidatesReasoningText(t *testing.T) {
	auth := newTestAuthority(t, skillServerConfig(), nil, nil, nil, nil)

	decision, err := auth.Decide(context.Background(), "create_skill", &pipeline.Plan{Reasoning: "a normal safe plan"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.ControlActionApprove, decision.Action)
	assert.Equal(t, "skill_server", decision.Source)
}

func TestDecideLegacyDualBypassesWithLegacySource(t *testing.T) {
	cfg := &config.SkillAuthorityConfig{Authority: config.AuthorityLegacyDual}
	auth := newTestAuthority(t, cfg, nil, nil, nil, nil)

	decision, err := auth.Decide(context.Background(), "create_skill", &pipeline.Plan{Reasoning: "anything"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.ControlActionApprove, decision.Action)
	assert.Equal(t, "legacy_dual", decision.Source)
}

func TestAuthorityImplementsPipelineSkillAuthorityInterface(t *testing.T) {
	var _ pipeline.SkillAuthority = (*Authority)(nil)
}
