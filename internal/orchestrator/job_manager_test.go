package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmind/assistant/internal/config"
)

func TestJobManagerSubmitAndPollToSuccess(t *testing.T) {
	orch, _ := newTestOrchestrator(t,
		`{"intent":"answer_question","complexity":1,"hallucination_risk":"low"}`,
		"deep job answer")
	jm := NewJobManager(orch)

	jobID, err := jm.Submit(context.Background(), Request{ConversationID: "job1", UserMessage: "long task", Mode: config.ContextModeFull})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	var status *JobStatus
	for i := 0; i < 50; i++ {
		status, err = jm.Status(jobID)
		require.NoError(t, err)
		if status.State == JobSucceeded || status.State == JobFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Equal(t, JobSucceeded, status.State)
	require.NotNil(t, status.Result)
	assert.Equal(t, "deep job answer", status.Result.Text)
	assert.GreaterOrEqual(t, status.DurationMS, int64(0))
}

func TestJobManagerStatusUnknownJobErrors(t *testing.T) {
	orch, _ := newTestOrchestrator(t, `{}`, "")
	jm := NewJobManager(orch)

	_, err := jm.Status("does-not-exist")
	assert.Error(t, err)
}
