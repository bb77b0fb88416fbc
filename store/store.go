// Package store persists a Pruner's per-agent state (TurnState plus the
// token ledger) to disk between process restarts, the way the teacher
// persists conversation sessions (forge-core/runtime/memory_store.go). The
// pruning pipeline's own closure state is in-memory only (spec §9); this
// package is the opt-in durability layer callers use to restore a Pruner
// across restarts instead of starting cold.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/initializ/contextprune/message"
	"github.com/initializ/contextprune/pruning"
)

// PruneRecord is the persisted snapshot for a single agent's Pruner: enough
// to reconstruct IndexTokenCountMap and the TurnState fields on the next
// process start (spec §9 "closure state across turns"), plus the turn's
// surviving Context and degradation counters so cmd/contextprune inspect can
// render what happened without re-running the pipeline.
type PruneRecord struct {
	AgentID               string                `json:"agent_id"`
	TurnIndex             int                   `json:"turn_index"`
	Context               []message.Message     `json:"context,omitempty"`
	IndexTokenCountMap    pruning.IndexTokenMap `json:"index_token_count_map"`
	LastCutOffIndex       int                   `json:"last_cut_off_index"`
	LastTurnStartIndex    int                   `json:"last_turn_start_index"`
	RunThinkingStartIndex int                   `json:"run_thinking_start_index"`
	SoftTrimmedCount      int                   `json:"soft_trimmed_count"`
	HardClearedCount      int                   `json:"hard_cleared_count"`
	DroppedOrphanCount    int                   `json:"dropped_orphan_count"`
	MessagesToRefineCount int                   `json:"messages_to_refine_count"`
	Summary               string               `json:"summary,omitempty"`
	CreatedAt             time.Time            `json:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
}

// Store provides file-backed PruneRecord persistence, one JSON file per
// agent ID, written atomically (temp+fsync+rename).
type Store struct {
	dir string
	mu  sync.RWMutex
}

var sanitizeRe = regexp.MustCompile(`[^a-zA-Z0-9_\-.]`)

// New creates a Store backed by the given directory, creating it if absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating pruner state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save persists a PruneRecord using an atomic write. CreatedAt is preserved
// from any existing record for the same agent.
func (s *Store) Save(rec *PruneRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fname := s.filename(rec.AgentID)

	if rec.CreatedAt.IsZero() {
		existing, _ := s.loadLocked(rec.AgentID)
		if existing != nil && !existing.CreatedAt.IsZero() {
			rec.CreatedAt = existing.CreatedAt
		} else {
			rec.CreatedAt = time.Now().UTC()
		}
	}
	rec.UpdatedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling prune record: %w", err)
	}

	tmpFile := fname + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpFile, fname); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Load reads a PruneRecord from disk. Returns (nil, nil) if absent.
func (s *Store) Load(agentID string) (*PruneRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadLocked(agentID)
}

func (s *Store) loadLocked(agentID string) (*PruneRecord, error) {
	fname := s.filename(agentID)
	raw, err := os.ReadFile(fname)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading prune record: %w", err)
	}
	var rec PruneRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling prune record: %w", err)
	}
	return &rec, nil
}

// List returns every agent ID with a persisted record.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing prune records: %w", err)
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, strings.TrimSuffix(filepath.Base(m), ".json"))
	}
	return ids, nil
}

// Delete removes an agent's persisted record.
func (s *Store) Delete(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.filename(agentID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting prune record: %w", err)
	}
	return nil
}

// Cleanup removes records whose UpdatedAt is older than maxAge, returning
// the number deleted.
func (s *Store) Cleanup(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("listing prune records for cleanup: %w", err)
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	deleted := 0
	for _, m := range matches {
		raw, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		var rec PruneRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if !rec.UpdatedAt.IsZero() && rec.UpdatedAt.Before(cutoff) {
			if err := os.Remove(m); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}

func (s *Store) filename(agentID string) string {
	return filepath.Join(s.dir, sanitizeRe.ReplaceAllString(agentID, "_")+".json")
}

// SaveTurn appends a PruneRecord to a session's turn-by-turn history,
// independent of Save's single-latest-snapshot file. turnIndex orders the
// history; callers (cmd/contextprune prune, run repeatedly over successive
// turns of the same session) are expected to pass a monotonically
// increasing value starting at 0. Each turn gets its own atomically-written
// file under a per-session subdirectory so History can replay the full
// sequence rather than only ever seeing the most recent turn.
func (s *Store) SaveTurn(sessionID string, turnIndex int, rec *PruneRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.historyDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating session history dir: %w", err)
	}

	rec.TurnIndex = turnIndex
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling turn record: %w", err)
	}

	fname := filepath.Join(dir, fmt.Sprintf("turn-%06d.json", turnIndex))
	tmpFile := fname + ".tmp"
	if err := os.WriteFile(tmpFile, raw, 0o644); err != nil {
		return fmt.Errorf("writing temp turn file: %w", err)
	}
	if err := os.Rename(tmpFile, fname); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("renaming temp turn file: %w", err)
	}
	return nil
}

// History returns every persisted turn for a session, ordered by turn
// index ascending, for cmd/contextprune inspect to step through.
func (s *Store) History(sessionID string) ([]*PruneRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.historyDir(sessionID), "turn-*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing session history: %w", err)
	}
	sort.Strings(matches)

	records := make([]*PruneRecord, 0, len(matches))
	for _, m := range matches {
		raw, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("reading turn record %s: %w", filepath.Base(m), err)
		}
		var rec PruneRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("unmarshaling turn record %s: %w", filepath.Base(m), err)
		}
		records = append(records, &rec)
	}
	return records, nil
}

func (s *Store) historyDir(sessionID string) string {
	return filepath.Join(s.dir, "history", sanitizeRe.ReplaceAllString(sessionID, "_"))
}
