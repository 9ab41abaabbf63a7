package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/localmind/assistant/internal/config"
)

// EventRecord is one compacted-event-log row, the digest pipeline's unit
// of input. ConversationID/Type/Hash feed both the idempotent digest key
// and the {conv_id}:{event_type}:{event_hash} dedupe key (spec.md §4.6).
type EventRecord struct {
	ConversationID string
	Type           string
	Hash           string
	Timestamp      time.Time
}

// EventSource is the digest pipeline's event log seam (the CSV/event-log
// source spec.md §4.6 refers to when it says "auto-derive conversation
// ids from the CSV source").
type EventSource interface {
	EventsForWindow(ctx context.Context, start, end time.Time) ([]EventRecord, error)
}

// DigestWriter persists written digests and answers idempotency checks by
// digest key. Archive writes must stamp Parameters["digest_key"] with the
// archive key so a later Exists() recognizes it (spec.md §4.6).
type DigestWriter interface {
	Exists(ctx context.Context, digestKey string) (bool, error)
	WriteDaily(ctx context.Context, rec DailyDigestRecord) error
	WriteWeekly(ctx context.Context, rec WeeklyDigestRecord) error
	WriteArchive(ctx context.Context, rec ArchiveDigestRecord) error
}

// DailyDigestRecord is one day's compacted digest.
type DailyDigestRecord struct {
	DigestKey       string
	Day             time.Time
	ConversationIDs []string
	Events          []EventRecord
	Parameters      map[string]any
}

// WeeklyDigestRecord is one ISO week's compacted digest.
type WeeklyDigestRecord struct {
	DigestKey       string
	ISOWeek         string
	ConversationIDs []string
	Parameters      map[string]any
}

// ArchiveDigestRecord is one archival-window compacted digest.
type ArchiveDigestRecord struct {
	DigestKey   string
	WindowStart time.Time
	WindowEnd   time.Time
	Parameters  map[string]any
}

// DailySummary is the daily cycle's return shape (spec.md §4.6).
type DailySummary struct {
	Written         int      `json:"written"`
	InputEvents     int      `json:"input_events"`
	Skipped         int      `json:"skipped"`
	Reason          string   `json:"reason,omitempty"`
	ConversationIDs []string `json:"conversation_ids"`
	CatchUp         CatchUp  `json:"catch_up"`
}

// WeeklySummary is the weekly cycle's return shape.
type WeeklySummary struct {
	Written int    `json:"written"`
	Skipped int    `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

// ArchiveSummary is the archive cycle's return shape.
type ArchiveSummary struct {
	Written int `json:"written"`
	Skipped int `json:"skipped"`
}

// CycleSummary is one invocation's {daily, weekly, archive} result.
type CycleSummary struct {
	Daily   DailySummary
	Weekly  WeeklySummary
	Archive ArchiveSummary
}

// Runner executes one daily->weekly->archive cycle against an event
// source and a digest writer, tracking progress in a Store so restarts
// resume rather than replay (spec.md §4.6).
type Runner struct {
	cfg    *config.DigestConfig
	source EventSource
	writer DigestWriter
	store  *Store
	clock  func() time.Time
}

// NewRunner builds a Runner. clock defaults to time.Now if nil (tests may
// override it for deterministic "now").
func NewRunner(cfg *config.DigestConfig, source EventSource, writer DigestWriter, store *Store, clock func() time.Time) *Runner {
	if clock == nil {
		clock = time.Now
	}
	return &Runner{cfg: cfg, source: source, writer: writer, store: store, clock: clock}
}

func (r *Runner) location() *time.Location {
	if r.cfg.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(r.cfg.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (r *Runner) keyVersion() KeyVersion {
	if r.cfg.KeyVersion == config.DigestKeyV1 {
		return KeyV1
	}
	return KeyV2
}

func truncateDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// RunCycle runs daily, then weekly, then archive, against the current
// persisted state, and saves the updated state before returning. Callers
// are expected to hold the digest lock for the duration of this call.
func (r *Runner) RunCycle(ctx context.Context) (CycleSummary, error) {
	state, err := r.store.Load()
	if err != nil {
		return CycleSummary{}, fmt.Errorf("load digest state: %w", err)
	}

	now := r.clock()

	daily, dailyState := r.runDaily(ctx, state, now)
	state.Cycles.Daily = dailyState
	state.CatchUpInfo = daily.CatchUp

	weekly, weeklyState := r.runWeekly(ctx, state, now)
	state.Cycles.Weekly = weeklyState

	archive, archiveState := r.runArchive(ctx, state, now)
	state.Cycles.Archive = archiveState

	if err := r.store.Save(state); err != nil {
		return CycleSummary{}, fmt.Errorf("save digest state: %w", err)
	}

	return CycleSummary{Daily: daily, Weekly: weekly, Archive: archive}, nil
}

// pendingDays returns the days to (re)process, oldest first, given the
// last successfully processed day (zero if never run) and today.
func pendingDays(lastRun, today time.Time) []time.Time {
	if lastRun.IsZero() {
		return []time.Time{today}
	}
	start := lastRun.AddDate(0, 0, 1)
	if start.After(today) {
		return nil
	}
	var days []time.Time
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (r *Runner) runDaily(ctx context.Context, state *State, now time.Time) (DailySummary, CycleState) {
	loc := r.location()
	today := truncateDay(now, loc)
	prior := state.Cycles.Daily

	if !r.cfg.DailyEnable {
		return DailySummary{Skipped: 1, Reason: "daily_disabled"}, prior
	}

	days := pendingDays(prior.Timestamp, today)
	if len(days) == 0 {
		return DailySummary{Skipped: 1, Reason: "already_run_today"}, prior
	}

	missedRuns := len(days) - 1
	mode := "full"
	if r.cfg.CatchupMaxDays == 0 {
		days = []time.Time{today}
		missedRuns = 0
	} else if len(days) > r.cfg.CatchupMaxDays {
		days = days[len(days)-r.cfg.CatchupMaxDays:]
		mode = "cap"
	}

	summary := DailySummary{CatchUp: CatchUp{MissedRuns: missedRuns, Mode: mode}}
	var lastReason string
	var processed time.Time

	for _, day := range days {
		events, err := r.source.EventsForWindow(ctx, day, day.AddDate(0, 0, 1))
		if err != nil {
			lastReason = fmt.Sprintf("event_source_error: %v", err)
			summary.Skipped++
			continue
		}

		if len(events) < r.cfg.MinEventsDaily {
			summary.Skipped++
			lastReason = "below_min_events_daily"
			processed = day
			continue
		}

		ids := conversationIDs(events)
		key := DailyDigestKey(r.keyVersion(), day, ids, sourceHash(events))

		exists, err := r.writer.Exists(ctx, key)
		if err != nil {
			lastReason = fmt.Sprintf("exists_check_error: %v", err)
			summary.Skipped++
			continue
		}
		if !exists {
			if err := r.writer.WriteDaily(ctx, DailyDigestRecord{
				DigestKey:       key,
				Day:             day,
				ConversationIDs: ids,
				Events:          events,
				Parameters:      map[string]any{"digest_key": key},
			}); err != nil {
				lastReason = fmt.Sprintf("write_error: %v", err)
				summary.Skipped++
				continue
			}
			summary.Written++
			summary.CatchUp.Generated++
		}
		if day.Before(today) {
			summary.CatchUp.Recovered++
		}
		summary.InputEvents += len(events)
		summary.ConversationIDs = append(summary.ConversationIDs, ids...)
		processed = day
	}

	summary.Reason = lastReason
	dedupeStrings(&summary.ConversationIDs)

	newState := prior
	if !processed.IsZero() {
		newState = CycleState{Status: "ok", Timestamp: processed}
		if summary.Skipped > 0 {
			newState.RetryPolicy = RetryRetry
			newState.Reason = lastReason
		}
	}
	return summary, newState
}

func (r *Runner) runWeekly(ctx context.Context, state *State, now time.Time) (WeeklySummary, CycleState) {
	prior := state.Cycles.Weekly
	if !r.cfg.WeeklyEnable {
		return WeeklySummary{Skipped: 1, Reason: "weekly_disabled"}, prior
	}

	loc := r.location()
	today := truncateDay(now, loc)
	weekday := int(today.Weekday())
	if weekday == 0 {
		weekday = 7 // Monday=1 ... Sunday=7, ISO style
	}
	thisWeekMonday := today.AddDate(0, 0, -(weekday - 1))
	// Compact the most recently completed ISO week, not the in-progress one.
	monday := thisWeekMonday.AddDate(0, 0, -7)
	weekEnd := thisWeekMonday
	year, week := monday.ISOWeek()
	isoWeek := fmt.Sprintf("%04d-W%02d", year, week)

	if !prior.Timestamp.IsZero() && !prior.Timestamp.Before(monday) && prior.Timestamp.Before(weekEnd) {
		return WeeklySummary{Skipped: 1, Reason: "already_run_this_week"}, prior
	}

	events, err := r.source.EventsForWindow(ctx, monday, weekEnd)
	if err != nil {
		return WeeklySummary{Skipped: 1, Reason: fmt.Sprintf("event_source_error: %v", err)}, prior
	}

	dailyKeyCount := countDistinctDays(events, loc)
	if dailyKeyCount < r.cfg.MinDailyPerWeek {
		return WeeklySummary{Skipped: 1, Reason: "below_min_daily_per_week"}, prior
	}

	ids := conversationIDs(events)
	key, err := WeeklyDigestKey(r.keyVersion(), isoWeek, ids, sourceHash(events))
	if err != nil {
		return WeeklySummary{Skipped: 1, Reason: err.Error()}, prior
	}

	exists, err := r.writer.Exists(ctx, key)
	if err != nil {
		return WeeklySummary{Skipped: 1, Reason: fmt.Sprintf("exists_check_error: %v", err)}, prior
	}
	if exists {
		return WeeklySummary{Skipped: 1, Reason: "already_written"}, CycleState{Status: "ok", Timestamp: now}
	}

	if err := r.writer.WriteWeekly(ctx, WeeklyDigestRecord{
		DigestKey:       key,
		ISOWeek:         isoWeek,
		ConversationIDs: ids,
		Parameters:      map[string]any{"digest_key": key},
	}); err != nil {
		return WeeklySummary{Skipped: 1, Reason: fmt.Sprintf("write_error: %v", err)}, prior
	}

	return WeeklySummary{Written: 1}, CycleState{Status: "ok", Timestamp: now}
}

// runArchive compacts the previous calendar month once it has fully
// elapsed, idempotent on the archive window's digest key.
func (r *Runner) runArchive(ctx context.Context, state *State, now time.Time) (ArchiveSummary, CycleState) {
	prior := state.Cycles.Archive
	if !r.cfg.ArchiveEnable {
		return ArchiveSummary{Skipped: 1}, prior
	}

	loc := r.location()
	nowLocal := now.In(loc)
	firstOfThisMonth := time.Date(nowLocal.Year(), nowLocal.Month(), 1, 0, 0, 0, 0, loc)
	windowEnd := firstOfThisMonth
	windowStart := windowEnd.AddDate(0, -1, 0)
	label := windowStart.Format("2006-01")

	if !prior.Timestamp.IsZero() && !prior.Timestamp.Before(windowStart) && prior.Timestamp.Before(windowEnd) {
		return ArchiveSummary{Skipped: 1}, prior
	}

	events, err := r.source.EventsForWindow(ctx, windowStart, windowEnd)
	if err != nil {
		return ArchiveSummary{Skipped: 1}, prior
	}
	ids := conversationIDs(events)
	key := ArchiveDigestKey(r.keyVersion(), label, ids, sourceHash(events), windowStart, windowEnd)

	exists, err := r.writer.Exists(ctx, key)
	if err != nil {
		return ArchiveSummary{Skipped: 1}, prior
	}
	if exists {
		return ArchiveSummary{Skipped: 1}, CycleState{Status: "ok", Timestamp: now}
	}

	if err := r.writer.WriteArchive(ctx, ArchiveDigestRecord{
		DigestKey:   key,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Parameters:  map[string]any{"digest_key": key},
	}); err != nil {
		return ArchiveSummary{Skipped: 1}, prior
	}

	return ArchiveSummary{Written: 1}, CycleState{Status: "ok", Timestamp: now}
}

func conversationIDs(events []EventRecord) []string {
	seen := make(map[string]bool, len(events))
	var ids []string
	for _, e := range events {
		if e.ConversationID == "" || seen[e.ConversationID] {
			continue
		}
		seen[e.ConversationID] = true
		ids = append(ids, e.ConversationID)
	}
	sort.Strings(ids)
	return ids
}

func countDistinctDays(events []EventRecord, loc *time.Location) int {
	days := make(map[string]bool)
	for _, e := range events {
		days[truncateDay(e.Timestamp, loc).Format("2006-01-02")] = true
	}
	return len(days)
}

func sourceHash(events []EventRecord) string {
	hashes := make([]string, 0, len(events))
	for _, e := range events {
		hashes = append(hashes, e.Hash)
	}
	sort.Strings(hashes)
	h := sha256.Sum256([]byte(fmt.Sprintf("%v", hashes)))
	return hex.EncodeToString(h[:])
}

func dedupeStrings(ss *[]string) {
	if len(*ss) == 0 {
		return
	}
	seen := make(map[string]bool, len(*ss))
	out := (*ss)[:0]
	for _, s := range *ss {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	*ss = out
}

// DedupeKey returns the cross-conversation-safe dedupe key for an event,
// honoring DedupeIncludeConv (spec.md §4.6: "default includes conv_id").
func (r *Runner) DedupeKey(e EventRecord) string {
	if r.cfg.DedupeIncludeConv {
		return fmt.Sprintf("%s:%s:%s", e.ConversationID, e.Type, e.Hash)
	}
	return fmt.Sprintf("%s:%s", e.Type, e.Hash)
}
