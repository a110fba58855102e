// Package gatestate persists the secondary-destination gate record as a
// small JSON document, read and written wholesale once per run. Persistence
// is best-effort: loads degrade to the zero state and saves report their
// failure for logging instead of swallowing it.
package gatestate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bullionwatch/pmalert/models"
)

// retentionMonths bounds the month-usage map: entries older than this are
// pruned on save so the file does not grow forever.
const retentionMonths = 12

// Store reads and writes one gate-state file.
type Store struct {
	Path string
}

// Load returns the persisted state. A missing or corrupt file yields the
// zero state together with the underlying error so the caller can log it;
// the returned state is always usable.
func (s *Store) Load() (*models.GateState, error) {
	state := models.NewGateState()

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, fmt.Errorf("failed to read gate state: %w", err)
	}
	if err := json.Unmarshal(data, state); err != nil {
		return models.NewGateState(), fmt.Errorf("failed to parse gate state: %w", err)
	}
	if state.MonthUsage == nil {
		state.MonthUsage = make(map[string]int)
	}
	return state, nil
}

// Save writes the state atomically (temp file + rename). The caller logs a
// failure and continues; durability is best-effort by contract.
func (s *Store) Save(state *models.GateState, now time.Time) error {
	prune(state, now)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode gate state: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".gate-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write gate state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close gate state: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace gate state: %w", err)
	}
	return nil
}

// prune drops month-usage entries older than the retention window. Keys that
// do not parse as months are left alone.
func prune(state *models.GateState, now time.Time) {
	cutoff := now.AddDate(0, -retentionMonths, 0)
	for key := range state.MonthUsage {
		t, err := time.Parse("2006-01", key)
		if err != nil {
			continue
		}
		if t.Before(cutoff.AddDate(0, 0, -cutoff.Day()+1)) {
			delete(state.MonthUsage, key)
		}
	}
}
