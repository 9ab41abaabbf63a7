package skillauthority

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// SkillRecord is one entry of the authoritative installed.json truth
// store (spec.md §4.4) — mirrors ent/schema/skillrecord.go's field set;
// nothing in this repository copies these records into that table.
type SkillRecord struct {
	Key               string         `json:"key"`
	Name              string         `json:"name"`
	Language          string         `json:"language"`
	Code              string         `json:"code"`
	Manifest          map[string]any `json:"manifest,omitempty"`
	RequestedPackages []string       `json:"requested_packages,omitempty"`
	Status            string         `json:"status"`
	ControlDecision   map[string]any `json:"control_decision,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type registryFile struct {
	Version int                    `json:"version"`
	Records map[string]SkillRecord `json:"records"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// SkillKey computes the deterministic skill key (spec.md §4.4:
// "hash(name, normalized_code, language)"). Normalization collapses
// whitespace runs and trims, so formatting-only edits to a skill's source
// don't mint a new key.
func SkillKey(name, code, language string) string {
	normalized := strings.TrimSpace(whitespaceRun.ReplaceAllString(code, " "))
	h := sha256.Sum256([]byte(name + "\x00" + normalized + "\x00" + language))
	return hex.EncodeToString(h[:])
}

// Registry is the file-backed installed.json truth store. Every write is
// atomic: marshal -> write to a sibling temp file -> fsync -> rename over
// the live path, so a reader never observes a partially written file and
// at worst sees the previous version mid-rename.
type Registry struct {
	path string
	mu   sync.Mutex
}

// NewRegistry builds a Registry rooted at path.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

func (r *Registry) load() (*registryFile, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &registryFile{Version: 1, Records: map[string]SkillRecord{}}, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var rf registryFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if rf.Records == nil {
		rf.Records = map[string]SkillRecord{}
	}
	return &rf, nil
}

func (r *Registry) save(rf *registryFile) error {
	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp registry file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp registry file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsync temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp registry file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename registry file: %w", err)
	}
	return nil
}

// Put dedupes strictly by key, keeping one latest record — a second Put
// for the same key overwrites rather than appending (spec.md §4.4:
// "dedupe strictly keeps one latest record per key").
func (r *Registry) Put(rec SkillRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rf, err := r.load()
	if err != nil {
		return err
	}
	now := time.Now()
	if existing, ok := rf.Records[rec.Key]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rf.Records[rec.Key] = rec
	return r.save(rf)
}

// Get returns the record for key, or false if absent.
func (r *Registry) Get(key string) (SkillRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rf, err := r.load()
	if err != nil {
		return SkillRecord{}, false, err
	}
	rec, ok := rf.Records[key]
	return rec, ok, nil
}

// List returns every record, in no particular order.
func (r *Registry) List() ([]SkillRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rf, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]SkillRecord, 0, len(rf.Records))
	for _, rec := range rf.Records {
		out = append(out, rec)
	}
	return out, nil
}
