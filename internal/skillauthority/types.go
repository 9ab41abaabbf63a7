// Package skillauthority implements the Single Control Authority and
// package policy (C6, spec.md §4.4): exactly one component validates a
// skill-create request. There is no teacher equivalent for this domain —
// tarsy has no notion of a skill or a package allowlist — so this package
// is built from scratch in the teacher's idiom: the fail-closed
// validate-then-decide pass mirrors pkg/config/validator.go's
// ValidateAll ordering, and the authoritative truth-store write mirrors
// the teacher's own temp-file-then-rename durability pattern (as seen in
// the retrieval pack's document_store.go), extended with an explicit
// fsync per spec.md §4.4's atomic-write requirement.
package skillauthority

import (
	"context"

	"github.com/localmind/assistant/internal/pipeline"
)

// PackageStatus classifies one requested package against the allowlist.
type PackageStatus string

const (
	PackageAllowlisted    PackageStatus = "allowlisted"
	PackageNonAllowlisted PackageStatus = "non_allowlisted"
)

// CreateSkillRequest is the full skill-create request (spec.md §4.4 flow
// step 1) — richer than pipeline.Plan, which only carries an intent and a
// reasoning string: this is the payload the executor eventually persists.
type CreateSkillRequest struct {
	Name              string
	Code              string
	Language           string
	Manifest          map[string]any
	RequestedPackages []string
}

// CreateSkillResult is the outcome of one CreateSkill call.
type CreateSkillResult struct {
	Status              string // created | pending_package_approval | blocked | pending_approval
	SkillKey            string
	MissingPackages     []string
	NeedsPackageInstall bool
	Decision            *pipeline.ControlDecision
}

// ExecutorCreateRequest is what the authority delegates to the executor
// once package policy and the safety validator have both cleared the
// request (spec.md §4.4 flow step 6). The executor is a pure side-effect
// owner when authority=skill_server: it must not re-derive its own
// decision, only honor or reject the one it's handed.
type ExecutorCreateRequest struct {
	Name     string
	Code     string
	Language string
	Manifest map[string]any
	Decision *pipeline.ControlDecision
}

// ExecutorResult is the executor's side-effect outcome (skill deployed to
// the running skill set, container image built, etc. — out of this
// package's scope, hence the narrow interface below).
type ExecutorResult struct {
	Accepted     bool
	RejectReason string
	Version      string
}

// Executor performs the actual side effect of making a skill live, once
// authorized. A production deployment would implement this against a
// skill-runtime process; tests use a fake.
type Executor interface {
	Create(ctx context.Context, req ExecutorCreateRequest) (*ExecutorResult, error)
}

// AllowlistSource fetches the current set of allowlisted package names.
// Implementations may call out to a registry service; errors are treated
// fail-closed by the caller (spec.md §4.4: "if the allowlist cannot be
// fetched, treat as empty").
type AllowlistSource interface {
	FetchAllowlist(ctx context.Context) ([]string, error)
}

// GraphIndexEnqueuer enqueues a weak (best-effort) graph-index sync after
// a skill is durably registered (spec.md §4.4 flow step 7).
type GraphIndexEnqueuer interface {
	EnqueueSync(ctx context.Context, skillKey string) error
}
