package config

import "time"

// DefaultContextBuilderConfig returns the built-in Context Builder defaults.
func DefaultContextBuilderConfig() *ContextBuilderConfig {
	c := &ContextBuilderConfig{
		FinalCapChars:   16000,
		CrossConvDedupe: false,
		DedupeWindow:    1 * time.Hour,
		TopKFacts:       20,
		MaxChatTurns:    20,
	}
	c.TypedState.Mode = TypedStateActive
	c.TypedState.CSVJITOnly = true
	c.JITWindows.TimeReferenceHours = 48 * time.Hour
	c.JITWindows.FactRecallHours = 168 * time.Hour
	c.JITWindows.RememberHours = 336 * time.Hour
	return c
}

// DefaultPipelineConfig returns the built-in Layered Pipeline defaults.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		MaxToolLoops:     6,
		LLMStageTimeout:  120 * time.Second,
		ToolSelectorTopK: 15,
		ToolSelectorMax:  5,
		PlanParseRetries: 1,
	}
}

// DefaultSkillAuthorityConfig returns the built-in Skill Authority defaults.
func DefaultSkillAuthorityConfig() *SkillAuthorityConfig {
	return &SkillAuthorityConfig{
		Authority:             AuthoritySkillServer,
		PackageInstallMode:    PackageModeAllowlistAuto,
		AllowlistCacheTTL:     60 * time.Second,
		AllowlistURL:          "https://registry.internal/allowlist.json",
		InstalledRegistryPath: "memory_speicher/installed.json",
		SignatureVerify:       SignatureVerifyOff,
	}
}

// DefaultDigestConfig returns the built-in Digest Pipeline defaults.
func DefaultDigestConfig() *DigestConfig {
	return &DigestConfig{
		Enable:            false,
		DailyEnable:       true,
		WeeklyEnable:      true,
		ArchiveEnable:     true,
		RunMode:           DigestRunOff,
		CatchupMaxDays:    7,
		MinEventsDaily:    0,
		MinDailyPerWeek:   0,
		DedupeIncludeConv: true,
		KeyVersion:        DigestKeyV2,
		RuntimeAPIV2:      true,
		LockTimeout:       300 * time.Second,
		StateDir:          "memory_speicher",
		ScheduleHour:      4,
		TimeZone:          "Local",
	}
}

// DefaultEmbeddingConfig returns the built-in Embedding Router defaults.
func DefaultEmbeddingConfig() *EmbeddingConfig {
	return &EmbeddingConfig{
		RuntimePolicy:        EmbeddingPolicyAuto,
		AvailabilityCacheTTL: 30 * time.Second,
		AvailabilityTimeout:  2 * time.Second,
		CPUTargetURL:         "http://localhost:8081",
		GPUTargetURL:         "http://localhost:8082",
	}
}

// DefaultQueueConfig returns the built-in worker pool defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		MaxConcurrentSessions:   5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		SessionTimeout:          15 * time.Minute,
		GracefulShutdownTimeout: 15 * time.Minute,
	}
}
