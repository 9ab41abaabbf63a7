package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ContextBuilder: DefaultContextBuilderConfig(),
		Pipeline:       DefaultPipelineConfig(),
		SkillAuthority: DefaultSkillAuthorityConfig(),
		Digest:         DefaultDigestConfig(),
		Embedding:      DefaultEmbeddingConfig(),
		Queue:          DefaultQueueConfig(),
		Slack:          &SlackConfig{},
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRejectsLowFinalCap(t *testing.T) {
	c := validConfig()
	c.ContextBuilder.FinalCapChars = 10
	err := Validate(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestValidateRejectsToolSelectorMaxAboveTopK(t *testing.T) {
	c := validConfig()
	c.Pipeline.ToolSelectorMax = 50
	require.Error(t, Validate(c))
}

func TestValidateRejectsAllowlistAutoWithoutURL(t *testing.T) {
	c := validConfig()
	c.SkillAuthority.PackageInstallMode = PackageModeAllowlistAuto
	c.SkillAuthority.AllowlistURL = ""
	require.Error(t, Validate(c))
}

func TestValidateAllowsManualOnlyWithoutURL(t *testing.T) {
	c := validConfig()
	c.SkillAuthority.PackageInstallMode = PackageModeManualOnly
	c.SkillAuthority.AllowlistURL = ""
	require.NoError(t, Validate(c))
}

func TestValidateRejectsDigestEnabledWithRunModeOff(t *testing.T) {
	c := validConfig()
	c.Digest.Enable = true
	c.Digest.RunMode = DigestRunOff
	require.Error(t, Validate(c))
}

func TestValidateRejectsBadScheduleHour(t *testing.T) {
	c := validConfig()
	c.Digest.ScheduleHour = 24
	require.Error(t, Validate(c))
}

func TestValidateRejectsGPUTargetMissingWhenNotCPUOnly(t *testing.T) {
	c := validConfig()
	c.Embedding.RuntimePolicy = EmbeddingPolicyPreferGPU
	c.Embedding.GPUTargetURL = ""
	require.Error(t, Validate(c))
}

func TestValidateAllowsMissingGPUTargetWhenCPUOnly(t *testing.T) {
	c := validConfig()
	c.Embedding.RuntimePolicy = EmbeddingPolicyCPUOnly
	c.Embedding.GPUTargetURL = ""
	require.NoError(t, Validate(c))
}

func TestValidateRejectsZeroWorkerCount(t *testing.T) {
	c := validConfig()
	c.Queue.WorkerCount = 0
	require.Error(t, Validate(c))
}

func TestValidateRejectsUnknownEnumValues(t *testing.T) {
	c := validConfig()
	c.SkillAuthority.Authority = AuthorityMode("bogus")
	require.Error(t, Validate(c))
}

func TestValidatePassesWithTightTimeouts(t *testing.T) {
	c := validConfig()
	c.Pipeline.LLMStageTimeout = time.Millisecond
	require.NoError(t, Validate(c))
}
