package config

import "time"

// ContextBuilderConfig configures the Context Builder (C3, spec.md §4.1).
type ContextBuilderConfig struct {
	FinalCapChars int `yaml:"final_cap_chars" validate:"min=256"`

	TypedState struct {
		Mode       TypedStateMode `yaml:"mode"`
		CSVJITOnly bool           `yaml:"csv_jit_only"`
	} `yaml:"typed_state"`

	JITWindows struct {
		TimeReferenceHours time.Duration `yaml:"time_reference_hours"`
		FactRecallHours    time.Duration `yaml:"fact_recall_hours"`
		RememberHours      time.Duration `yaml:"remember_hours"`
	} `yaml:"jit_windows"`

	CrossConvDedupe bool `yaml:"cross_conv_dedupe"`
	DedupeWindow    time.Duration `yaml:"dedupe_window"`
	TopKFacts       int  `yaml:"top_k_facts" validate:"min=0"`
	MaxChatTurns    int  `yaml:"max_chat_turns" validate:"min=0"`
}

// PipelineConfig configures the Layered Pipeline (C4, spec.md §4.2).
type PipelineConfig struct {
	MaxToolLoops     int           `yaml:"max_tool_loops" validate:"min=1"`
	LLMStageTimeout  time.Duration `yaml:"llm_stage_timeout"`
	ToolSelectorTopK int           `yaml:"tool_selector_top_k" validate:"min=1"`
	ToolSelectorMax  int           `yaml:"tool_selector_max" validate:"min=1"`
	PlanParseRetries int           `yaml:"plan_parse_retries" validate:"min=0"`
}

// SkillAuthorityConfig configures the Single Control Authority (C6,
// spec.md §4.4).
type SkillAuthorityConfig struct {
	Authority            AuthorityMode      `yaml:"authority"`
	PackageInstallMode    PackageInstallMode `yaml:"package_install_mode"`
	AllowlistCacheTTL     time.Duration      `yaml:"allowlist_cache_ttl"`
	AllowlistURL          string             `yaml:"allowlist_url,omitempty"`
	InstalledRegistryPath string             `yaml:"installed_registry_path"`
	SignatureVerify       SignatureVerifyMode `yaml:"signature_verify_mode"`
}

// DigestConfig configures the Digest Pipeline (C8, spec.md §4.6).
type DigestConfig struct {
	Enable            bool             `yaml:"enable"`
	DailyEnable       bool             `yaml:"daily_enable"`
	WeeklyEnable      bool             `yaml:"weekly_enable"`
	ArchiveEnable     bool             `yaml:"archive_enable"`
	RunMode           DigestRunMode    `yaml:"run_mode"`
	CatchupMaxDays    int              `yaml:"catchup_max_days" validate:"min=0"`
	MinEventsDaily    int              `yaml:"min_events_daily" validate:"min=0"`
	MinDailyPerWeek   int              `yaml:"min_daily_per_week" validate:"min=0"`
	DedupeIncludeConv bool             `yaml:"dedupe_include_conv"`
	KeyVersion        DigestKeyVersion `yaml:"key_version"`
	RuntimeAPIV2      bool             `yaml:"runtime_api_v2"`
	LockTimeout       time.Duration    `yaml:"lock_timeout"`
	StateDir          string           `yaml:"state_dir"`
	ScheduleHour      int              `yaml:"schedule_hour" validate:"min=0,max=23"`
	TimeZone          string           `yaml:"timezone"`
}

// EmbeddingConfig configures the Embedding Router (C9, spec.md §4.7).
type EmbeddingConfig struct {
	RuntimePolicy       EmbeddingPolicy `yaml:"runtime_policy"`
	AvailabilityCacheTTL time.Duration  `yaml:"availability_cache_ttl"`
	CPUTargetURL        string          `yaml:"cpu_target_url,omitempty"`
	GPUTargetURL        string          `yaml:"gpu_target_url,omitempty"`
	AvailabilityTimeout time.Duration   `yaml:"availability_timeout"`
}

// SlackConfig mirrors tarsy's pkg/slack settings, reused for digest-ready
// and skill-authority escalation notifications.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

// QueueConfig mirrors tarsy's pkg/config/queue.go. It is loaded and
// validated, but orchestrator.JobManager does not read it: each submitted
// deep job runs in its own goroutine with no worker-pool limit.
type QueueConfig struct {
	WorkerCount             int           `yaml:"worker_count"`
	MaxConcurrentSessions   int           `yaml:"max_concurrent_sessions"`
	PollInterval            time.Duration `yaml:"poll_interval"`
	PollIntervalJitter      time.Duration `yaml:"poll_interval_jitter"`
	SessionTimeout          time.Duration `yaml:"session_timeout"`
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}
