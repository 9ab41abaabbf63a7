package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors the on-disk assistant.yaml file structure.
type yamlConfig struct {
	ContextBuilder *ContextBuilderConfig `yaml:"context_builder"`
	Pipeline       *PipelineConfig       `yaml:"pipeline"`
	SkillAuthority *SkillAuthorityConfig `yaml:"skill_authority"`
	Digest         *DigestConfig         `yaml:"digest"`
	Embedding      *EmbeddingConfig      `yaml:"embedding"`
	Queue          *QueueConfig          `yaml:"queue"`
	Slack          *SlackConfig          `yaml:"slack"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Read assistant.yaml from configDir (missing file is not fatal — the
//     built-in defaults alone are a valid configuration).
//  2. Expand environment variables in the raw YAML bytes.
//  3. Parse YAML into structs.
//  4. Merge user-defined values over built-in defaults (mergo.WithOverride).
//  5. Apply the configuration envelope's environment overrides (spec §6).
//  6. Validate all configuration.
//  7. Return Config ready for use.
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	raw, err := readYAMLFile(filepath.Join(configDir, "assistant.yaml"))
	if err != nil {
		return nil, NewLoadError("assistant.yaml", err)
	}

	var parsed yamlConfig
	if len(raw) > 0 {
		if err := yaml.Unmarshal(ExpandEnv(raw), &parsed); err != nil {
			return nil, NewLoadError("assistant.yaml", fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
	}

	cfg := &Config{
		configDir:      configDir,
		ContextBuilder: DefaultContextBuilderConfig(),
		Pipeline:       DefaultPipelineConfig(),
		SkillAuthority: DefaultSkillAuthorityConfig(),
		Digest:         DefaultDigestConfig(),
		Embedding:      DefaultEmbeddingConfig(),
		Queue:          DefaultQueueConfig(),
		Slack:          &SlackConfig{},
	}

	if err := mergeOverride(cfg.ContextBuilder, parsed.ContextBuilder); err != nil {
		return nil, NewLoadError("assistant.yaml", err)
	}
	if err := mergeOverride(cfg.Pipeline, parsed.Pipeline); err != nil {
		return nil, NewLoadError("assistant.yaml", err)
	}
	if err := mergeOverride(cfg.SkillAuthority, parsed.SkillAuthority); err != nil {
		return nil, NewLoadError("assistant.yaml", err)
	}
	if err := mergeOverride(cfg.Digest, parsed.Digest); err != nil {
		return nil, NewLoadError("assistant.yaml", err)
	}
	if err := mergeOverride(cfg.Embedding, parsed.Embedding); err != nil {
		return nil, NewLoadError("assistant.yaml", err)
	}
	if err := mergeOverride(cfg.Queue, parsed.Queue); err != nil {
		return nil, NewLoadError("assistant.yaml", err)
	}
	if err := mergeOverride(cfg.Slack, parsed.Slack); err != nil {
		return nil, NewLoadError("assistant.yaml", err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized",
		"digest_run_mode", cfg.Digest.RunMode,
		"skill_authority", cfg.SkillAuthority.Authority,
		"embedding_policy", cfg.Embedding.RuntimePolicy,
	)
	return cfg, nil
}

// mergeOverride merges src (may be nil) over dst in place using mergo with
// override semantics, matching tarsy's queue-config merge idiom.
func mergeOverride[T any](dst *T, src *T) error {
	if src == nil {
		return nil
	}
	return mergo.Merge(dst, src, mergo.WithOverride)
}

func readYAMLFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
