package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsoWeekBounds(t *testing.T) {
	monday, sunday, err := isoWeekBounds("2026-W01")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, monday.Weekday())
	assert.Equal(t, time.Sunday, sunday.Weekday())
	assert.Equal(t, 6, int(sunday.Sub(monday).Hours()/24))
}

func TestIsoWeekBoundsRejectsMalformed(t *testing.T) {
	_, _, err := isoWeekBounds("not-a-week")
	assert.Error(t, err)
}

func TestDailyDigestKeyV1IsThirtyTwoChars(t *testing.T) {
	key := DailyDigestKey(KeyV1, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), []string{"c1", "c2"}, "hash1")
	assert.Len(t, key, 32)
}

func TestDailyDigestKeyIsOrderIndependentOnConversationIDs(t *testing.T) {
	day := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	a := DailyDigestKey(KeyV2, day, []string{"c1", "c2"}, "hash1")
	b := DailyDigestKey(KeyV2, day, []string{"c2", "c1"}, "hash1")
	assert.Equal(t, a, b)
}

func TestDailyDigestKeyV2DiffersFromV1(t *testing.T) {
	day := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	v1 := DailyDigestKey(KeyV1, day, []string{"c1"}, "hash1")
	v2 := DailyDigestKey(KeyV2, day, []string{"c1"}, "hash1")
	assert.NotEqual(t, v1, v2)
}

func TestWeeklyDigestKeyBindsWindowInV2(t *testing.T) {
	keyW1, err := WeeklyDigestKey(KeyV2, "2026-W01", []string{"c1"}, "hash1")
	require.NoError(t, err)
	keyW2, err := WeeklyDigestKey(KeyV2, "2026-W02", []string{"c1"}, "hash1")
	require.NoError(t, err)
	assert.NotEqual(t, keyW1, keyW2)
}

func TestWeeklyDigestKeyRejectsMalformedWeek(t *testing.T) {
	_, err := WeeklyDigestKey(KeyV2, "bogus", []string{"c1"}, "hash1")
	assert.Error(t, err)
}

func TestArchiveDigestKeyBindsWindowBounds(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	k1 := ArchiveDigestKey(KeyV2, "2026-01", nil, "hash1", start, end)
	k2 := ArchiveDigestKey(KeyV2, "2026-01", nil, "hash1", start, end.AddDate(0, 0, 1))
	assert.NotEqual(t, k1, k2)
}
