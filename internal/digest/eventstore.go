package digest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SQLEventSource implements EventSource by reading timeline_events rows
// directly via the pooled *sql.DB (internal/database.Client.DB()),
// resolving the deferral noted in this package's DESIGN.md entry: the
// actual event-log wiring behind the abstract EventSource seam.
type SQLEventSource struct {
	db *sql.DB
}

// NewSQLEventSource wraps the connection pool returned by
// internal/database.Client.DB().
func NewSQLEventSource(db *sql.DB) *SQLEventSource {
	return &SQLEventSource{db: db}
}

// EventsForWindow reads timeline_events in [start, end), hashing each
// row's JSON payload into EventRecord.Hash so the digest key derivation
// (keys.go) sees the same content-addressed hash regardless of how the
// event was produced.
func (s *SQLEventSource) EventsForWindow(ctx context.Context, start, end time.Time) ([]EventRecord, error) {
	r, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, event_type, payload, created_at
		 FROM timeline_events
		 WHERE created_at >= $1 AND created_at < $2
		 ORDER BY conversation_id, sequence_number`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query timeline_events: %w", err)
	}
	defer r.Close()

	var out []EventRecord
	for r.Next() {
		var convID, eventType string
		var payload []byte
		var createdAt time.Time
		if err := r.Scan(&convID, &eventType, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan timeline_event row: %w", err)
		}
		sum := sha256.Sum256(payload)
		out = append(out, EventRecord{
			ConversationID: convID,
			Type:           eventType,
			Hash:           hex.EncodeToString(sum[:]),
			Timestamp:      createdAt,
		})
	}
	return out, r.Err()
}

// FileDigestWriter persists digest records as JSON files under a
// directory, one file per digest key. Each write goes to a temp file that
// is then renamed over the target; unlike Store's write (state.go) there
// is no fsync before the rename. A file store is used rather than
// introducing a new ent-backed table for what is, structurally, the same
// append-once write-ahead record this package already keeps on disk.
type FileDigestWriter struct {
	dir string
}

// NewFileDigestWriter builds a writer rooted at dir, creating it if
// necessary.
func NewFileDigestWriter(dir string) (*FileDigestWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create digest writer dir: %w", err)
	}
	return &FileDigestWriter{dir: dir}, nil
}

func (w *FileDigestWriter) path(digestKey string) string {
	return filepath.Join(w.dir, digestKey+".json")
}

// Exists reports whether a digest with this key was already written,
// making every write idempotent per spec.md §4.6.
func (w *FileDigestWriter) Exists(ctx context.Context, digestKey string) (bool, error) {
	_, err := os.Stat(w.path(digestKey))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat digest file: %w", err)
	}
	return true, nil
}

func (w *FileDigestWriter) writeJSON(digestKey string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal digest record: %w", err)
	}
	tmp := w.path(digestKey) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp digest file: %w", err)
	}
	if err := os.Rename(tmp, w.path(digestKey)); err != nil {
		return fmt.Errorf("rename digest file: %w", err)
	}
	return nil
}

func (w *FileDigestWriter) WriteDaily(ctx context.Context, rec DailyDigestRecord) error {
	return w.writeJSON(rec.DigestKey, rec)
}

func (w *FileDigestWriter) WriteWeekly(ctx context.Context, rec WeeklyDigestRecord) error {
	return w.writeJSON(rec.DigestKey, rec)
}

func (w *FileDigestWriter) WriteArchive(ctx context.Context, rec ArchiveDigestRecord) error {
	return w.writeJSON(rec.DigestKey, rec)
}
