package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReasoningStepsExtractsOrderedSteps(t *testing.T) {
	text := "## Step 1: Gather facts\nLook at the logs.\n## Step 2: Decide\nPick an action.\n"
	steps := ParseReasoningSteps(text)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].Number)
	assert.Equal(t, "Gather facts", steps[0].Title)
	assert.Equal(t, "Look at the logs.", steps[0].Content)
	assert.Equal(t, 2, steps[1].Number)
	assert.Equal(t, "Pick an action.", steps[1].Content)
}

func TestParseReasoningStepsNoMarkersReturnsNil(t *testing.T) {
	assert.Nil(t, ParseReasoningSteps("just plain text, no steps here"))
}

func TestCriticShortCircuitsLowRiskNonSkillPlan(t *testing.T) {
	c := NewCritic(nil)
	plan := &Plan{Intent: "answer_question", HallucinationRisk: HallucinationRiskLow}

	decision, steps, err := c.Decide(context.Background(), plan, "")
	require.NoError(t, err)
	assert.Nil(t, steps)
	assert.Equal(t, ControlActionApprove, decision.Action)
	assert.True(t, decision.Passed)
}

func TestCriticBlocksOnPatternMatch(t *testing.T) {
	c := NewCritic(nil)
	plan := &Plan{Intent: "run_shell", HallucinationRisk: HallucinationRiskHigh, Reasoning: "I will run rm -rf / to clean up"}

	decision, _, err := c.Decide(context.Background(), plan, "")
	require.NoError(t, err)
	assert.Equal(t, ControlActionBlock, decision.Action)
	assert.False(t, decision.Passed)
}

func TestCriticApprovesHighRiskNonSkillPlanWithoutBlockedPattern(t *testing.T) {
	c := NewCritic(nil)
	plan := &Plan{Intent: "answer_question", HallucinationRisk: HallucinationRiskHigh, Reasoning: "just thinking it through"}

	decision, _, err := c.Decide(context.Background(), plan, "## Step 1: Think\nreasoning")
	require.NoError(t, err)
	assert.Equal(t, ControlActionApprove, decision.Action)
}

func TestCriticBlocksSkillIntentWithoutAuthority(t *testing.T) {
	c := NewCritic(nil)
	plan := &Plan{Intent: "create_skill", HallucinationRisk: HallucinationRiskHigh}

	decision, _, err := c.Decide(context.Background(), plan, "")
	require.NoError(t, err)
	assert.Equal(t, ControlActionBlock, decision.Action)
	assert.Contains(t, decision.Reasons, "missing_authority_decision")
}

type fakeAuthority struct {
	decision *ControlDecision
	err      error
}

func (f *fakeAuthority) Decide(_ context.Context, _ string, _ *Plan) (*ControlDecision, error) {
	return f.decision, f.err
}

func TestCriticDefersToAuthorityForSkillIntent(t *testing.T) {
	auth := &fakeAuthority{decision: &ControlDecision{Action: ControlActionApprove, Passed: true, Source: "skill_server"}}
	c := NewCritic(auth)
	plan := &Plan{Intent: "create_skill", HallucinationRisk: HallucinationRiskHigh}

	decision, _, err := c.Decide(context.Background(), plan, "")
	require.NoError(t, err)
	assert.Equal(t, ControlActionApprove, decision.Action)
	assert.Equal(t, "skill_server", decision.Source)
}

func TestCriticTreatsFailClosedAuthorityAnswerAsBlock(t *testing.T) {
	auth := &fakeAuthority{decision: &ControlDecision{}}
	c := NewCritic(auth)
	plan := &Plan{Intent: "delete_skill", HallucinationRisk: HallucinationRiskHigh}

	decision, _, err := c.Decide(context.Background(), plan, "")
	require.NoError(t, err)
	assert.Equal(t, ControlActionBlock, decision.Action)
}

func TestCriticPropagatesAuthorityError(t *testing.T) {
	auth := &fakeAuthority{err: errors.New("authority unreachable")}
	c := NewCritic(auth)
	plan := &Plan{Intent: "install_skill", HallucinationRisk: HallucinationRiskHigh}

	_, _, err := c.Decide(context.Background(), plan, "")
	assert.Error(t, err)
}

func TestCriticPatternCheckPrecedesAuthorityDecision(t *testing.T) {
	auth := &fakeAuthority{decision: &ControlDecision{Action: ControlActionApprove, Passed: true, Source: "skill_server"}}
	c := NewCritic(auth)
	plan := &Plan{Intent: "create_skill", HallucinationRisk: HallucinationRiskHigh, Reasoning: "drop table skills;"}

	decision, _, err := c.Decide(context.Background(), plan, "")
	require.NoError(t, err)
	// pattern_check blocks before authority is ever consulted
	assert.Equal(t, ControlActionBlock, decision.Action)
}
