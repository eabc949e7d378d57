// Package checkpoint persists and restores the evaluation loop's durable
// snapshot: position, memory, and records so far. One checkpoint file exists
// per run; every save fully replaces it, so there is never a stale sibling to
// disambiguate.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"crambench/internal/logging"
	"crambench/internal/scoring"
)

// ErrNotFound means no checkpoint exists for the run: a fresh start.
var ErrNotFound = errors.New("no checkpoint found")

// ErrCorrupt means a checkpoint exists but cannot be trusted. This is fatal
// at load time: silently restarting from zero would corrupt the memory
// trajectory and invalidate cold/warm comparisons.
var ErrCorrupt = errors.New("checkpoint corrupt")

// Checkpoint is the durable loop snapshot. MemorySnapshot is exactly the
// memory content that existed immediately after processing item
// LastCompletedIndex; it never reflects a partially processed item.
type Checkpoint struct {
	RunID              string           `json:"run_id"`
	LastCompletedIndex int              `json:"last_completed_index"`
	MemorySnapshot     string           `json:"memory_snapshot"`
	MemoryVersion      uint64           `json:"memory_version"`
	Records            []scoring.Record `json:"records"`
	SavedAt            time.Time        `json:"saved_at"`
}

// Manager owns the checkpoint file for one run.
type Manager struct {
	dir   string
	runID string
}

// NewManager creates a manager rooted at dir for the given run.
func NewManager(dir, runID string) (*Manager, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	return &Manager{dir: dir, runID: runID}, nil
}

func (m *Manager) path() string {
	return filepath.Join(m.dir, m.runID+".checkpoint.json")
}

// Save atomically persists the checkpoint: write to a temp file in the same
// directory, fsync, then rename over the old checkpoint. A crash mid-write
// leaves either the old checkpoint or the new one, never a torn file.
func (m *Manager) Save(cp *Checkpoint) error {
	if err := m.validate(cp); err != nil {
		return fmt.Errorf("refusing to save invalid checkpoint: %w", err)
	}
	cp.SavedAt = time.Now().UTC()

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(m.dir, m.runID+".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}

	if err := os.Rename(tmpPath, m.path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}

	logging.For(logging.CategoryCheckpoint).Infow("checkpoint saved",
		"run_id", m.runID, "last_completed_index", cp.LastCompletedIndex, "records", len(cp.Records))
	return nil
}

// Load returns the run's checkpoint, ErrNotFound if none exists, or
// ErrCorrupt if one exists but fails structural validation.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := m.validate(&cp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &cp, nil
}

// Clear removes the checkpoint after successful completion, so a finished run
// is never mistaken for a resumable one. Clearing an absent checkpoint is
// fine.
func (m *Manager) Clear() error {
	if err := os.Remove(m.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}

// validate enforces the structural invariants shared by Save and Load.
func (m *Manager) validate(cp *Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("nil checkpoint")
	}
	if cp.RunID != m.runID {
		return fmt.Errorf("run id %q does not match %q", cp.RunID, m.runID)
	}
	if cp.LastCompletedIndex < 0 {
		return fmt.Errorf("negative last_completed_index %d", cp.LastCompletedIndex)
	}
	if len(cp.Records) != cp.LastCompletedIndex+1 {
		return fmt.Errorf("records length %d inconsistent with last_completed_index %d",
			len(cp.Records), cp.LastCompletedIndex)
	}
	for i, rec := range cp.Records {
		if rec.QuestionID == "" {
			return fmt.Errorf("record %d has no question id", i)
		}
	}
	return nil
}
