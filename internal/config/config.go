// Package config loads and validates the assistant platform's
// configuration envelope (spec.md §6): YAML files merged with built-in
// defaults, environment variable expansion, and a single validation pass
// that turns ambiguous input into a fatal_config error rather than a
// silent default.
package config

// Config is the umbrella configuration object returned by Initialize and
// threaded through every component.
type Config struct {
	configDir string

	ContextBuilder *ContextBuilderConfig
	Pipeline       *PipelineConfig
	SkillAuthority *SkillAuthorityConfig
	Digest         *DigestConfig
	Embedding      *EmbeddingConfig
	Queue          *QueueConfig
	Slack          *SlackConfig
}

// Stats summarizes loaded configuration, mirroring tarsy's Config.Stats().
// Nothing in this repository calls it; GET /health does not report it.
type Stats struct {
	DigestEnabled  bool
	DigestRunMode  DigestRunMode
	SkillAuthority AuthorityMode
	EmbeddingMode  EmbeddingPolicy
}

// Stats returns a snapshot of the configuration for logging/monitoring.
func (c *Config) Stats() Stats {
	return Stats{
		DigestEnabled:  c.Digest.Enable,
		DigestRunMode:  c.Digest.RunMode,
		SkillAuthority: c.SkillAuthority.Authority,
		EmbeddingMode:  c.Embedding.RuntimePolicy,
	}
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }
