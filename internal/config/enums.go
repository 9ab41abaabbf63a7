package config

// AuthorityMode selects which component validates skill-create requests
// (spec.md §4.4). Exactly one of these is active at a time — the Single
// Control Authority invariant.
type AuthorityMode string

const (
	AuthoritySkillServer AuthorityMode = "skill_server"
	AuthorityLegacyDual  AuthorityMode = "legacy_dual"
)

// PackageInstallMode selects how the Skill Authority treats
// non-allowlisted packages.
type PackageInstallMode string

const (
	PackageModeAllowlistAuto PackageInstallMode = "allowlist_auto"
	PackageModeManualOnly    PackageInstallMode = "manual_only"
)

// DigestRunMode selects how the Digest Pipeline is scheduled.
type DigestRunMode string

const (
	DigestRunOff     DigestRunMode = "off"
	DigestRunSidecar DigestRunMode = "sidecar"
	DigestRunInline  DigestRunMode = "inline"
)

// DigestKeyVersion selects the idempotent-key scheme (spec.md §4.6).
type DigestKeyVersion string

const (
	DigestKeyV1 DigestKeyVersion = "v1"
	DigestKeyV2 DigestKeyVersion = "v2"
)

// TypedStateMode controls whether the typed-state NOW/RULES/NEXT renderer
// is live ("active") or only logged for comparison ("shadow").
type TypedStateMode string

const (
	TypedStateShadow TypedStateMode = "shadow"
	TypedStateActive TypedStateMode = "active"
)

// EmbeddingPolicy selects the Embedding Router's routing preference
// (spec.md §4.7).
type EmbeddingPolicy string

const (
	EmbeddingPolicyAuto      EmbeddingPolicy = "auto"
	EmbeddingPolicyPreferGPU EmbeddingPolicy = "prefer_gpu"
	EmbeddingPolicyCPUOnly   EmbeddingPolicy = "cpu_only"
)

// SignatureVerifyMode controls skill-code signature verification strictness.
type SignatureVerifyMode string

const (
	SignatureVerifyOff    SignatureVerifyMode = "off"
	SignatureVerifyOptIn  SignatureVerifyMode = "opt_in"
	SignatureVerifyStrict SignatureVerifyMode = "strict"
)

// ContextMode selects the Context Builder's rendering mode (spec.md §4.1).
type ContextMode string

const (
	ContextModeFull           ContextMode = "full"
	ContextModeSmallModel     ContextMode = "small_model"
	ContextModeFailureCompact ContextMode = "failure_compact"
)

// Trigger is the fixed set of JIT-loading triggers (spec.md §4.1).
type Trigger string

const (
	TriggerTimeReference Trigger = "time_reference"
	TriggerRemember      Trigger = "remember"
	TriggerFactRecall    Trigger = "fact_recall"
	TriggerNone          Trigger = "none"
)
