package digest

import (
	"context"
	"testing"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmind/assistant/pkg/slack"
)

func TestSlackNotifierNilClientIsNoOp(t *testing.T) {
	notifier := NewSlackNotifier(nil, 0)
	err := notifier.NotifyCycle(context.Background(), CycleSummary{Daily: DailySummary{Written: 1}})
	require.NoError(t, err)
}

func TestSlackNotifierSkipsWhenNothingWritten(t *testing.T) {
	notifier := NewSlackNotifier(slack.NewClient("test-token", "C123"), 0)
	err := notifier.NotifyCycle(context.Background(), CycleSummary{})
	assert.NoError(t, err)
}

func TestBuildDigestMessageIncludesCatchUpInfo(t *testing.T) {
	blocks := buildDigestMessage(CycleSummary{
		Daily: DailySummary{
			Written:     2,
			InputEvents: 10,
			CatchUp:     CatchUp{MissedRuns: 3, Recovered: 2, Mode: "cap"},
		},
		Weekly:  WeeklySummary{Written: 1},
		Archive: ArchiveSummary{Written: 0},
	})
	require.Len(t, blocks, 1)
	section, ok := blocks[0].(*goslack.SectionBlock)
	require.True(t, ok)
	assert.Contains(t, section.Text.Text, "catch-up: 3 missed, 2 recovered (cap)")
}
