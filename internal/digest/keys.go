package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// KeyVersion selects the idempotent-key scheme (spec.md §4.6).
type KeyVersion string

const (
	KeyV1 KeyVersion = "v1"
	KeyV2 KeyVersion = "v2"
)

// isoWeekBounds computes the Monday/Sunday bounds of an ISO week string
// like "2026-W05".
func isoWeekBounds(isoWeek string) (monday, sunday time.Time, err error) {
	var year, week int
	if _, scanErr := fmt.Sscanf(isoWeek, "%d-W%d", &year, &week); scanErr != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid iso week %q: %w", isoWeek, scanErr)
	}

	// Jan 4th is always in week 1 of its year (ISO 8601).
	jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, time.UTC)
	jan4Weekday := int(jan4.Weekday())
	if jan4Weekday == 0 {
		jan4Weekday = 7
	}
	week1Monday := jan4.AddDate(0, 0, -(jan4Weekday - 1))
	monday = week1Monday.AddDate(0, 0, (week-1)*7)
	sunday = monday.AddDate(0, 0, 6)
	return monday, sunday, nil
}

// makeDigestKeyV1 reproduces the legacy 32-char key scheme (spec.md
// §4.6): action, date-or-iso-week, conversation ids, and a source hash,
// all folded into one hex digest truncated to 32 characters.
func makeDigestKeyV1(action, datePart string, conversationIDs []string, sourceHash string) string {
	sorted := append([]string(nil), conversationIDs...)
	sort.Strings(sorted)
	raw := strings.Join([]string{action, datePart, strings.Join(sorted, ","), sourceHash}, "|")
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])[:32]
}

// makeDigestKeyV2 additionally binds the window bounds, so two calls for
// the same action/date but with different effective windows (e.g. a
// later catch-up recompute with a wider window) never collide.
func makeDigestKeyV2(action, datePart string, conversationIDs []string, sourceHash string, windowStart, windowEnd time.Time) string {
	sorted := append([]string(nil), conversationIDs...)
	sort.Strings(sorted)
	raw := strings.Join([]string{
		action, datePart, strings.Join(sorted, ","), sourceHash,
		windowStart.UTC().Format(time.RFC3339), windowEnd.UTC().Format(time.RFC3339),
	}, "|")
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// DailyDigestKey returns the idempotent key for one day's digest.
func DailyDigestKey(version KeyVersion, date time.Time, conversationIDs []string, sourceHash string) string {
	datePart := date.Format("2006-01-02")
	if version == KeyV1 {
		return makeDigestKeyV1("daily", datePart, conversationIDs, sourceHash)
	}
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return makeDigestKeyV2("daily", datePart, conversationIDs, sourceHash, dayStart, dayStart.AddDate(0, 0, 1))
}

// WeeklyDigestKey returns the idempotent key for one ISO week's digest.
func WeeklyDigestKey(version KeyVersion, isoWeek string, conversationIDs []string, sourceHash string) (string, error) {
	if version == KeyV1 {
		return makeDigestKeyV1("weekly", isoWeek, conversationIDs, sourceHash), nil
	}
	monday, sunday, err := isoWeekBounds(isoWeek)
	if err != nil {
		return "", err
	}
	return makeDigestKeyV2("weekly", isoWeek, conversationIDs, sourceHash, monday, sunday.AddDate(0, 0, 1)), nil
}

// ArchiveDigestKey returns the idempotent key for an archive window.
// Archive writes must stamp parameters.digest_key = this value so a
// later Exists() check recognizes the write (spec.md §4.6).
func ArchiveDigestKey(version KeyVersion, windowLabel string, conversationIDs []string, sourceHash string, windowStart, windowEnd time.Time) string {
	if version == KeyV1 {
		return makeDigestKeyV1("archive", windowLabel, conversationIDs, sourceHash)
	}
	return makeDigestKeyV2("archive", windowLabel, conversationIDs, sourceHash, windowStart, windowEnd)
}
