package skillauthority

import (
	"context"
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/localmind/assistant/internal/pipeline"
	"github.com/localmind/assistant/pkg/slack"
)

// SlackApprovalSink posts a skill-create escalation to Slack — a decision
// worth a human glance is exactly the terminal-notification shape
// pkg/slack/client.go was built for, generalized here from a session's
// final status to a pending_approval control decision (spec.md §4.4).
// Grounded on internal/digest.SlackNotifier's identical nil-client,
// no-op-when-disabled shape.
type SlackApprovalSink struct {
	client  *slack.Client
	timeout time.Duration
}

// NewSlackApprovalSink builds a sink. client may be nil, in which case
// RecordApprovalRequest is a no-op (Slack escalation disabled).
func NewSlackApprovalSink(client *slack.Client, timeout time.Duration) *SlackApprovalSink {
	return &SlackApprovalSink{client: client, timeout: timeout}
}

// RecordApprovalRequest posts one message naming the skill and the
// reasons the control layer flagged it.
func (s *SlackApprovalSink) RecordApprovalRequest(ctx context.Context, req CreateSkillRequest, decision *pipeline.ControlDecision) error {
	if s == nil || s.client == nil {
		return nil
	}

	text := fmt.Sprintf(":rotating_light: *Skill pending approval*\nname: %s\nreasons: %v", req.Name, decision.Reasons)
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}

	if err := s.client.PostMessage(ctx, blocks, "", s.timeout); err != nil {
		return fmt.Errorf("skillauthority: post approval escalation: %w", err)
	}
	return nil
}
