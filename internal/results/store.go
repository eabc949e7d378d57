// Package results persists completed run results, addressable by run ID.
// This is also where warm and bootstrap starts find a prior run's final
// memory. Exactly one row exists per completed run; checkpoints (partial
// state) live elsewhere and never land here.
package results

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"crambench/internal/dataset"
	"crambench/internal/logging"
	"crambench/internal/scoring"
)

// RunRecord is one persisted completed run.
type RunRecord struct {
	RunID       string
	Mode        string // cold, warm, bootstrap, stateless
	CompletedAt time.Time
	FinalMemory string
	Result      scoring.Result
}

// Store is the SQLite-backed result archive.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id              TEXT PRIMARY KEY,
	mode                TEXT NOT NULL,
	completed_at        TEXT NOT NULL,
	retrieval_accuracy  REAL NOT NULL,
	answer_accuracy     REAL NOT NULL,
	end_to_end_accuracy REAL NOT NULL,
	final_memory        TEXT NOT NULL,
	records             TEXT NOT NULL,
	per_format          TEXT NOT NULL
);`

// Open opens (creating if needed) the results database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize results schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists a completed run. Saving an existing run ID is an error: a
// run's result is final.
func (s *Store) Save(rec RunRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	recordsJSON, err := json.Marshal(rec.Result.Records)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	perFormatJSON, err := json.Marshal(rec.Result.PerFormat)
	if err != nil {
		return fmt.Errorf("failed to marshal per-format breakdown: %w", err)
	}

	completedAt := rec.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO runs (run_id, mode, completed_at, retrieval_accuracy, answer_accuracy,
			end_to_end_accuracy, final_memory, records, per_format)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Mode, completedAt.Format(time.RFC3339Nano),
		rec.Result.RetrievalAccuracy, rec.Result.AnswerAccuracy, rec.Result.EndToEndAccuracy,
		rec.FinalMemory, string(recordsJSON), string(perFormatJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.RunID, err)
	}

	logging.For(logging.CategoryStore).Infow("run result saved",
		"run_id", rec.RunID, "mode", rec.Mode, "records", len(rec.Result.Records))
	return nil
}

// Load returns a completed run by ID.
func (s *Store) Load(runID string) (RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec RunRecord
	var completedAt, recordsJSON, perFormatJSON string

	err := s.db.QueryRow(
		`SELECT run_id, mode, completed_at, retrieval_accuracy, answer_accuracy,
			end_to_end_accuracy, final_memory, records, per_format
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&rec.RunID, &rec.Mode, &completedAt,
		&rec.Result.RetrievalAccuracy, &rec.Result.AnswerAccuracy, &rec.Result.EndToEndAccuracy,
		&rec.FinalMemory, &recordsJSON, &perFormatJSON)
	if err == sql.ErrNoRows {
		return rec, fmt.Errorf("no result for run %q", runID)
	}
	if err != nil {
		return rec, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	if rec.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
		return rec, fmt.Errorf("run %s has bad completed_at: %w", runID, err)
	}
	if err := json.Unmarshal([]byte(recordsJSON), &rec.Result.Records); err != nil {
		return rec, fmt.Errorf("run %s has bad records: %w", runID, err)
	}
	rec.Result.PerFormat = make(map[dataset.Format]scoring.FormatAccuracy)
	if err := json.Unmarshal([]byte(perFormatJSON), &rec.Result.PerFormat); err != nil {
		return rec, fmt.Errorf("run %s has bad per-format breakdown: %w", runID, err)
	}
	return rec, nil
}

// FinalMemory returns the final memory content of a completed run, for warm
// and bootstrap starts.
func (s *Store) FinalMemory(runID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var memory string
	err := s.db.QueryRow("SELECT final_memory FROM runs WHERE run_id = ?", runID).Scan(&memory)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no result for run %q", runID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load final memory for run %s: %w", runID, err)
	}
	return memory, nil
}
