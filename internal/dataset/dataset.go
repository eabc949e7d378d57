// Package dataset loads the benchmark questions the harness evaluates against.
// The benchmark is a static JSON file; the harness never mutates it.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
)

// Format declares how a question's answer should be parsed and compared.
type Format string

const (
	FormatInt    Format = "int"
	FormatFloat  Format = "float"
	FormatString Format = "string"
	FormatList   Format = "list"
	FormatNull   Format = "null"
)

// ParseFormat validates a raw format string from the benchmark file.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatInt, FormatFloat, FormatString, FormatList, FormatNull:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown answer format %q", s)
}

// Question is one benchmark item. Immutable after load.
type Question struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	GroundTruth     string   `json:"ground_truth"`
	AnswerFormat    Format   `json:"answer_format"`
	GoldEvidenceIDs []string `json:"gold_evidence_ids"`
	Subset          string   `json:"subset,omitempty"`
}

type benchmarkFile struct {
	Questions []Question `json:"questions"`
}

// Load reads the benchmark file and returns the questions in file order.
// If subset is non-empty only questions tagged with that subset are returned.
// A missing or malformed file is a run-level failure for the caller.
func Load(path, subset string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read benchmark %s: %w", path, err)
	}

	var file benchmarkFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse benchmark %s: %w", path, err)
	}
	if len(file.Questions) == 0 {
		return nil, fmt.Errorf("benchmark %s contains no questions", path)
	}

	seen := make(map[string]bool, len(file.Questions))
	questions := make([]Question, 0, len(file.Questions))
	for i, q := range file.Questions {
		if q.ID == "" {
			return nil, fmt.Errorf("question at index %d has no id", i)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		seen[q.ID] = true
		if _, err := ParseFormat(string(q.AnswerFormat)); err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		if subset != "" && q.Subset != subset {
			continue
		}
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("benchmark %s has no questions in subset %q", path, subset)
	}
	return questions, nil
}
