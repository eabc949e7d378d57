// Package retrieval provides the vector index the harness queries for
// evidence passages. Passages are embedded at index time; queries are
// embedded at lookup time and ranked by cosine similarity.
package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"crambench/internal/embedding"
	"crambench/internal/logging"
)

// Passage is one retrieved evidence candidate.
type Passage struct {
	ID    string  `json:"passage_id"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// Retriever is the lookup contract the harness consumes.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Passage, error)
}

// Store is a SQLite-backed vector index.
type Store struct {
	db     *sql.DB
	engine embedding.Engine
	mu     sync.RWMutex
}

const schema = `
CREATE TABLE IF NOT EXISTS passages (
	id        TEXT PRIMARY KEY,
	text      TEXT NOT NULL,
	embedding TEXT NOT NULL
);`

// Open opens (creating if needed) the index at path. Use ":memory:" in tests.
func Open(path string, engine embedding.Engine) (*Store, error) {
	if engine == nil {
		return nil, fmt.Errorf("embedding engine is required")
	}

	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}

	logging.For(logging.CategoryRetrieval).Debugw("index opened", "path", path)
	return &Store{db: db, engine: engine}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Index embeds and stores a batch of passages. Re-indexing an existing ID
// replaces it.
func (s *Store) Index(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		if p.ID == "" {
			return fmt.Errorf("passage at index %d has no id", i)
		}
		texts[i] = p.Text
	}

	vectors, err := s.engine.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed passages: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, p := range passages {
		embeddingJSON, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("failed to serialize embedding for %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO passages (id, text, embedding) VALUES (?, ?, ?)",
			p.ID, p.Text, string(embeddingJSON),
		); err != nil {
			return fmt.Errorf("failed to store passage %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logging.For(logging.CategoryRetrieval).Infow("passages indexed", "count", len(passages))
	return nil
}

// Retrieve embeds the query and returns the k most similar passages, best
// first.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		k = 5
	}

	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, text, embedding FROM passages")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Passage
	for rows.Next() {
		var p Passage
		var embeddingJSON string
		if err := rows.Scan(&p.ID, &p.Text, &embeddingJSON); err != nil {
			return nil, err
		}

		var vec []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &vec); err != nil {
			// A single corrupt row shouldn't sink the query.
			continue
		}
		score, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}
		p.Score = score
		candidates = append(candidates, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// Count returns the number of indexed passages.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM passages").Scan(&n)
	return n, err
}
