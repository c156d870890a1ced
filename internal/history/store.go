// Package history persists analysis report snapshots to a JSON file so a
// subject's prior runs can be reviewed and re-opened. Entries are keyed on
// (subject address, effective date): re-running the same report replaces
// the earlier snapshot instead of accumulating duplicates.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketadjust/internal/marketindex"
)

// MaxEntries caps the stored history; the oldest entries are evicted first.
const MaxEntries = 50

// Entry is one saved analysis snapshot.
type Entry struct {
	ID             string    `json:"id"`
	SubjectAddress string    `json:"subject_address"`
	EffectiveDate  time.Time `json:"effective_date"`
	CreatedAt      time.Time `json:"created_at"`

	IndexColumn     string  `json:"index_column"`
	EffectiveIndex  float64 `json:"effective_index,omitempty"`
	Resolution      string  `json:"resolution"`
	TrendLabel      string  `json:"trend_label"`
	TrendChange     float64 `json:"trend_change_percent"`
	RecordCount     int     `json:"record_count"`
	ComparableCount int     `json:"comparable_count"`
	FlaggedCount    int     `json:"flagged_count"`

	Adjustments []marketindex.ComparableAdjustment `json:"adjustments,omitempty"`
}

// Store is a JSON-file backed history of analysis reports.
type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates a history store persisting to the given file path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With(slog.String("component", "history_store")),
	}
}

// Load reads all entries, newest first. A missing or unreadable file yields
// an empty history rather than an error: losing the history file must never
// block new reports.
func (s *Store) Load() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("history file unreadable, starting empty",
				slog.String("path", s.path),
				slog.String("error", err.Error()))
		}
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("history file corrupt, starting empty",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return nil
	}

	sortNewestFirst(entries)
	return entries
}

// Save upserts an entry. An existing entry for the same subject address and
// effective date is replaced at its current list position; a new key is
// prepended. The stored list is truncated to MaxEntries. A new entry gets a
// fresh ID and CreatedAt here; a replaced entry keeps both so it does not
// jump to the top of the history.
func (s *Store) Save(entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now().UTC()
	entry.EffectiveDate = entry.EffectiveDate.UTC().Truncate(24 * time.Hour)

	entries := s.loadLocked()

	// Upsert on the (address, effective date) key
	replaced := false
	for i := range entries {
		if sameKey(entries[i], entry) {
			entry.ID = entries[i].ID
			entry.CreatedAt = entries[i].CreatedAt
			entries[i] = entry
			replaced = true
			break
		}
	}

	if !replaced {
		entries = append([]Entry{entry}, entries...)
	}
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}

	if err := s.writeLocked(entries); err != nil {
		return Entry{}, err
	}

	s.logger.Info("history entry saved",
		slog.String("id", entry.ID),
		slog.String("subject", entry.SubjectAddress),
		slog.Time("effective_date", entry.EffectiveDate),
		slog.Int("total_entries", len(entries)))

	return entry, nil
}

// Get returns the entry with the given ID.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.loadLocked() {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Delete removes the entry with the given ID. It reports whether an entry
// was removed.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadLocked()
	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}

	if !found {
		return false, nil
	}

	if err := s.writeLocked(kept); err != nil {
		return false, err
	}

	s.logger.Info("history entry deleted", slog.String("id", id))
	return true, nil
}

func (s *Store) writeLocked(entries []Entry) error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	// Write through a temp file so a crash cannot truncate the history
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}

	return nil
}

func sameKey(a, b Entry) bool {
	return strings.EqualFold(strings.TrimSpace(a.SubjectAddress), strings.TrimSpace(b.SubjectAddress)) &&
		a.EffectiveDate.Equal(b.EffectiveDate)
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}
