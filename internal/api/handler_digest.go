package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localmind/assistant/internal/digest"
)

// formatTime renders t as RFC3339, or "" for the zero value — callers use
// an empty string to mean "no timestamp recorded yet" rather than the
// year-1 sentinel.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// digestCycleJSON is the {status, reason?, ts} shape both the v1 and v2
// envelopes use for one cycle.
type digestCycleJSON struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	TS     string `json:"ts"`
}

type digestCatchUpJSON struct {
	MissedRuns int    `json:"missed_runs"`
	Recovered  int    `json:"recovered"`
	Generated  int    `json:"generated"`
	Mode       string `json:"mode,omitempty"`
}

type digestJITJSON struct {
	Trigger string `json:"trigger,omitempty"`
	Rows    int    `json:"rows"`
	TS      string `json:"ts"`
}

type digestLockingJSON struct {
	Status    string  `json:"status"`
	Owner     string  `json:"owner,omitempty"`
	Since     string  `json:"since,omitempty"`
	TimeoutS  float64 `json:"timeout_s"`
	Stale     bool    `json:"stale"`
}

// digestStateV2Response is GET /api/runtime/digest-state's v2 shape
// (spec.md §6).
type digestStateV2Response struct {
	JITOnly       bool               `json:"jit_only"`
	DailyDigest   digestCycleJSON    `json:"daily_digest"`
	WeeklyDigest  digestCycleJSON    `json:"weekly_digest"`
	ArchiveDigest digestCycleJSON    `json:"archive_digest"`
	CatchUp       digestCatchUpJSON  `json:"catch_up"`
	JIT           digestJITJSON      `json:"jit"`
	Locking       digestLockingJSON  `json:"locking"`
	Flags         map[string]any     `json:"flags"`
}

// digestStateV1Response is the legacy shape returned when
// DIGEST_RUNTIME_API_V2=false (config.DigestConfig.RuntimeAPIV2).
type digestStateV1Response struct {
	State map[string]any `json:"state"`
	Flags map[string]any `json:"flags"`
	Lock  map[string]any `json:"lock"`
}

// handleDigestState implements GET /api/runtime/digest-state (spec.md
// §6), switching shape on cfg.Digest.RuntimeAPIV2.
func (s *Server) handleDigestState(c *gin.Context) {
	state, err := s.digestStore.Load()
	if err != nil {
		respondError(c, err)
		return
	}

	held, owner, since, stale, err := s.digestLock.Status()
	if err != nil {
		respondError(c, err)
		return
	}

	flags := map[string]any{
		"daily_enable":   s.cfg.Digest.DailyEnable,
		"weekly_enable":  s.cfg.Digest.WeeklyEnable,
		"archive_enable": s.cfg.Digest.ArchiveEnable,
		"run_mode":       string(s.cfg.Digest.RunMode),
		"key_version":    string(s.cfg.Digest.KeyVersion),
	}

	if !s.cfg.Digest.RuntimeAPIV2 {
		c.JSON(http.StatusOK, digestStateV1Response{
			State: map[string]any{
				"daily":   cycleJSON(state.Cycles.Daily),
				"weekly":  cycleJSON(state.Cycles.Weekly),
				"archive": cycleJSON(state.Cycles.Archive),
			},
			Flags: flags,
			Lock:  lockJSON(held, owner, since, stale, s.cfg.Digest.LockTimeout.Seconds()),
		})
		return
	}

	lockStatus := "FREE"
	if held && !stale {
		lockStatus = "LOCKED"
	}

	c.JSON(http.StatusOK, digestStateV2Response{
		JITOnly:       s.cfg.ContextBuilder.TypedState.CSVJITOnly,
		DailyDigest:   digestCycleJSON{Status: state.Cycles.Daily.Status, Reason: state.Cycles.Daily.Reason, TS: formatTime(state.Cycles.Daily.Timestamp)},
		WeeklyDigest:  digestCycleJSON{Status: state.Cycles.Weekly.Status, Reason: state.Cycles.Weekly.Reason, TS: formatTime(state.Cycles.Weekly.Timestamp)},
		ArchiveDigest: digestCycleJSON{Status: state.Cycles.Archive.Status, Reason: state.Cycles.Archive.Reason, TS: formatTime(state.Cycles.Archive.Timestamp)},
		CatchUp: digestCatchUpJSON{
			MissedRuns: state.CatchUpInfo.MissedRuns, Recovered: state.CatchUpInfo.Recovered,
			Generated: state.CatchUpInfo.Generated, Mode: state.CatchUpInfo.Mode,
		},
		JIT: digestJITJSON{Trigger: state.JIT.Trigger, Rows: state.JIT.Rows, TS: formatTime(state.JIT.Ts)},
		Locking: digestLockingJSON{
			Status: lockStatus, Owner: owner, Since: formatTime(since),
			TimeoutS: s.cfg.Digest.LockTimeout.Seconds(), Stale: stale,
		},
		Flags: flags,
	})
}

func cycleJSON(cs digest.CycleState) map[string]any {
	return map[string]any{"status": cs.Status, "reason": cs.Reason, "ts": formatTime(cs.Timestamp)}
}

func lockJSON(held bool, owner string, since time.Time, stale bool, timeoutS float64) map[string]any {
	status := "FREE"
	if held && !stale {
		status = "LOCKED"
	}
	return map[string]any{"status": status, "owner": owner, "since": formatTime(since), "stale": stale, "timeout_s": timeoutS}
}
