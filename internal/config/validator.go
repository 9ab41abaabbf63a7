package config

import (
	"fmt"
	"os"
	"strconv"
)

// Validate runs the single fail-closed validation pass over a fully merged
// Config. Any ambiguous or out-of-range value is a hard error — there is no
// silent fallback to a "probably fine" default once user input is present.
func Validate(c *Config) error {
	if err := validateContextBuilder(c.ContextBuilder); err != nil {
		return err
	}
	if err := validatePipeline(c.Pipeline); err != nil {
		return err
	}
	if err := validateSkillAuthority(c.SkillAuthority); err != nil {
		return err
	}
	if err := validateDigest(c.Digest); err != nil {
		return err
	}
	if err := validateEmbedding(c.Embedding); err != nil {
		return err
	}
	if err := validateQueue(c.Queue); err != nil {
		return err
	}
	return nil
}

func validateContextBuilder(c *ContextBuilderConfig) error {
	if c.FinalCapChars < 256 {
		return NewValidationError("context_builder", "final_cap_chars", fmt.Errorf("%w: must be >= 256, got %d", ErrInvalidValue, c.FinalCapChars))
	}
	switch c.TypedState.Mode {
	case TypedStateShadow, TypedStateActive:
	default:
		return NewValidationError("context_builder", "typed_state.mode", fmt.Errorf("%w: %q", ErrInvalidValue, c.TypedState.Mode))
	}
	if c.TopKFacts < 0 {
		return NewValidationError("context_builder", "top_k_facts", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
	}
	if c.MaxChatTurns < 0 {
		return NewValidationError("context_builder", "max_chat_turns", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
	}
	return nil
}

func validatePipeline(c *PipelineConfig) error {
	if c.MaxToolLoops < 1 {
		return NewValidationError("pipeline", "max_tool_loops", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if c.LLMStageTimeout <= 0 {
		return NewValidationError("pipeline", "llm_stage_timeout", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if c.ToolSelectorTopK < 1 {
		return NewValidationError("pipeline", "tool_selector_top_k", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if c.ToolSelectorMax < 1 || c.ToolSelectorMax > c.ToolSelectorTopK {
		return NewValidationError("pipeline", "tool_selector_max", fmt.Errorf("%w: must be between 1 and tool_selector_top_k", ErrInvalidValue))
	}
	if c.PlanParseRetries < 0 {
		return NewValidationError("pipeline", "plan_parse_retries", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
	}
	return nil
}

func validateSkillAuthority(c *SkillAuthorityConfig) error {
	switch c.Authority {
	case AuthoritySkillServer, AuthorityLegacyDual:
	default:
		return NewValidationError("skill_authority", "authority", fmt.Errorf("%w: %q", ErrInvalidValue, c.Authority))
	}
	switch c.PackageInstallMode {
	case PackageModeAllowlistAuto, PackageModeManualOnly:
	default:
		return NewValidationError("skill_authority", "package_install_mode", fmt.Errorf("%w: %q", ErrInvalidValue, c.PackageInstallMode))
	}
	if c.PackageInstallMode == PackageModeAllowlistAuto && c.AllowlistURL == "" {
		return NewValidationError("skill_authority", "allowlist_url", fmt.Errorf("%w: required when package_install_mode=allowlist_auto", ErrInvalidValue))
	}
	switch c.SignatureVerify {
	case SignatureVerifyOff, SignatureVerifyOptIn, SignatureVerifyStrict:
	default:
		return NewValidationError("skill_authority", "signature_verify_mode", fmt.Errorf("%w: %q", ErrInvalidValue, c.SignatureVerify))
	}
	if c.InstalledRegistryPath == "" {
		return NewValidationError("skill_authority", "installed_registry_path", fmt.Errorf("%w: must not be empty", ErrInvalidValue))
	}
	return nil
}

func validateDigest(c *DigestConfig) error {
	switch c.RunMode {
	case DigestRunOff, DigestRunSidecar, DigestRunInline:
	default:
		return NewValidationError("digest", "run_mode", fmt.Errorf("%w: %q", ErrInvalidValue, c.RunMode))
	}
	if c.Enable && c.RunMode == DigestRunOff {
		return NewValidationError("digest", "run_mode", fmt.Errorf("%w: digest.enable=true requires run_mode != off", ErrInvalidValue))
	}
	switch c.KeyVersion {
	case DigestKeyV1, DigestKeyV2:
	default:
		return NewValidationError("digest", "key_version", fmt.Errorf("%w: %q", ErrInvalidValue, c.KeyVersion))
	}
	if c.CatchupMaxDays < 0 {
		return NewValidationError("digest", "catchup_max_days", fmt.Errorf("%w: must be >= 0", ErrInvalidValue))
	}
	if c.ScheduleHour < 0 || c.ScheduleHour > 23 {
		return NewValidationError("digest", "schedule_hour", fmt.Errorf("%w: must be 0-23", ErrInvalidValue))
	}
	if c.LockTimeout <= 0 {
		return NewValidationError("digest", "lock_timeout", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if c.StateDir == "" {
		return NewValidationError("digest", "state_dir", fmt.Errorf("%w: must not be empty", ErrInvalidValue))
	}
	return nil
}

func validateEmbedding(c *EmbeddingConfig) error {
	switch c.RuntimePolicy {
	case EmbeddingPolicyAuto, EmbeddingPolicyPreferGPU, EmbeddingPolicyCPUOnly:
	default:
		return NewValidationError("embedding", "runtime_policy", fmt.Errorf("%w: %q", ErrInvalidValue, c.RuntimePolicy))
	}
	if c.RuntimePolicy != EmbeddingPolicyCPUOnly && c.GPUTargetURL == "" {
		return NewValidationError("embedding", "gpu_target_url", fmt.Errorf("%w: required unless runtime_policy=cpu_only", ErrInvalidValue))
	}
	if c.CPUTargetURL == "" {
		return NewValidationError("embedding", "cpu_target_url", fmt.Errorf("%w: must not be empty", ErrInvalidValue))
	}
	if c.AvailabilityCacheTTL <= 0 {
		return NewValidationError("embedding", "availability_cache_ttl", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if c.AvailabilityTimeout <= 0 {
		return NewValidationError("embedding", "availability_timeout", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}

func validateQueue(c *QueueConfig) error {
	if c.WorkerCount < 1 {
		return NewValidationError("queue", "worker_count", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if c.MaxConcurrentSessions < 1 {
		return NewValidationError("queue", "max_concurrent_sessions", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if c.PollInterval <= 0 {
		return NewValidationError("queue", "poll_interval", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if c.SessionTimeout <= 0 {
		return NewValidationError("queue", "session_timeout", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}

// applyEnvOverrides lets deployment-time environment variables win over
// both defaults and the YAML file, for the handful of settings operators
// commonly flip per-environment without touching the checked-in config.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("ASSISTANT_DIGEST_RUN_MODE"); v != "" {
		c.Digest.RunMode = DigestRunMode(v)
	}
	if v := os.Getenv("ASSISTANT_SKILL_AUTHORITY"); v != "" {
		c.SkillAuthority.Authority = AuthorityMode(v)
	}
	if v := os.Getenv("ASSISTANT_EMBEDDING_POLICY"); v != "" {
		c.Embedding.RuntimePolicy = EmbeddingPolicy(v)
	}
	if v := os.Getenv("ASSISTANT_EMBEDDING_CPU_URL"); v != "" {
		c.Embedding.CPUTargetURL = v
	}
	if v := os.Getenv("ASSISTANT_EMBEDDING_GPU_URL"); v != "" {
		c.Embedding.GPUTargetURL = v
	}
	if v := os.Getenv("ASSISTANT_QUEUE_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Queue.WorkerCount = n
		}
	}
}
