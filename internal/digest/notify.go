package digest

import (
	"context"
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/localmind/assistant/pkg/slack"
)

// SlackNotifier posts a digest-ready notification once a cycle writes at
// least one digest. Grounded on pkg/slack/client.go's Client.PostMessage
// and pkg/slack/message.go's Block Kit builders, generalized from a
// session-terminal notification to a digest-cycle-complete one.
type SlackNotifier struct {
	client  *slack.Client
	timeout time.Duration
}

// NewSlackNotifier builds a SlackNotifier. client may be nil, in which
// case NotifyCycle is a no-op (Slack notifications disabled).
func NewSlackNotifier(client *slack.Client, timeout time.Duration) *SlackNotifier {
	return &SlackNotifier{client: client, timeout: timeout}
}

// NotifyCycle posts one message summarizing what the cycle wrote. It
// stays silent when nothing was written, so routine no-op cycles (most
// days, once daily/weekly/archive are all idempotently skipped) don't
// spam the channel.
func (n *SlackNotifier) NotifyCycle(ctx context.Context, summary CycleSummary) error {
	if n == nil || n.client == nil {
		return nil
	}
	if summary.Daily.Written == 0 && summary.Weekly.Written == 0 && summary.Archive.Written == 0 {
		return nil
	}

	blocks := buildDigestMessage(summary)
	if err := n.client.PostMessage(ctx, blocks, "", n.timeout); err != nil {
		return fmt.Errorf("post digest notification: %w", err)
	}
	return nil
}

func buildDigestMessage(summary CycleSummary) []goslack.Block {
	text := fmt.Sprintf(
		":bar_chart: *Digest cycle complete*\ndaily: %d written, %d input events\nweekly: %d written\narchive: %d written",
		summary.Daily.Written, summary.Daily.InputEvents, summary.Weekly.Written, summary.Archive.Written,
	)
	if summary.Daily.CatchUp.MissedRuns > 0 {
		text += fmt.Sprintf("\ncatch-up: %d missed, %d recovered (%s)",
			summary.Daily.CatchUp.MissedRuns, summary.Daily.CatchUp.Recovered, summary.Daily.CatchUp.Mode)
	}

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}
