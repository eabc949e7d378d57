package scoring

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"crambench/internal/dataset"
)

func question(id, truth string, format dataset.Format, gold ...string) dataset.Question {
	return dataset.Question{
		ID:              id,
		Text:            "q",
		GroundTruth:     truth,
		AnswerFormat:    format,
		GoldEvidenceIDs: gold,
	}
}

// Three-item fixture: generation returns "42", "null", "0.26" with retrieval
// always correct. Under the numeric tolerance (|0.26-0.25| = 0.01 <= 0.02) all
// three answers are correct.
func TestToleranceFixture(t *testing.T) {
	questions := []dataset.Question{
		question("q1", "42", dataset.FormatInt, "p1"),
		question("q2", "Not answerable", dataset.FormatNull),
		question("q3", "0.25", dataset.FormatFloat, "p3"),
	}
	answers := []string{"42", "null", "0.26"}
	retrieved := [][]string{{"p1"}, nil, {"p3"}}

	records := make([]Record, len(questions))
	for i, q := range questions {
		records[i] = Score(q, retrieved[i], answers[i], "")
	}

	result := Aggregate(records)
	if result.AnswerAccuracy != 1.0 {
		t.Errorf("answer accuracy = %v, want 1.0", result.AnswerAccuracy)
	}
	if result.RetrievalAccuracy != 1.0 {
		t.Errorf("retrieval accuracy = %v, want 1.0", result.RetrievalAccuracy)
	}
	if result.EndToEndAccuracy != 1.0 {
		t.Errorf("end-to-end accuracy = %v, want 1.0", result.EndToEndAccuracy)
	}
}

func TestScoreFailureStaysInDenominator(t *testing.T) {
	q := question("q1", "42", dataset.FormatInt, "p1")
	rec := Score(q, []string{"p1"}, "", "generation: retries exhausted")

	if rec.AnswerCorrect {
		t.Error("failed item must score incorrect")
	}
	if !rec.RetrievalCorrect {
		t.Error("retrieval correctness is independent of the call failure")
	}
	if rec.EndToEndCorrect {
		t.Error("failed item cannot be end-to-end correct")
	}
	if rec.Failure == "" {
		t.Error("failure tag must be recorded")
	}

	result := Aggregate([]Record{rec})
	if result.AnswerAccuracy != 0 {
		t.Errorf("answer accuracy = %v, want 0 (item kept in denominator)", result.AnswerAccuracy)
	}
}

func TestMetricBound(t *testing.T) {
	// Mixed outcomes: every combination of retrieval/answer correctness.
	records := []Record{
		{QuestionID: "a", AnswerFormat: dataset.FormatInt, RetrievalCorrect: true, AnswerCorrect: true, EndToEndCorrect: true},
		{QuestionID: "b", AnswerFormat: dataset.FormatInt, RetrievalCorrect: true, AnswerCorrect: false},
		{QuestionID: "c", AnswerFormat: dataset.FormatString, RetrievalCorrect: false, AnswerCorrect: true},
		{QuestionID: "d", AnswerFormat: dataset.FormatString, RetrievalCorrect: false, AnswerCorrect: false},
	}

	result := Aggregate(records)
	if result.EndToEndAccuracy > result.AnswerAccuracy {
		t.Errorf("e2e %v > answer %v", result.EndToEndAccuracy, result.AnswerAccuracy)
	}
	if result.EndToEndAccuracy > result.RetrievalAccuracy {
		t.Errorf("e2e %v > retrieval %v", result.EndToEndAccuracy, result.RetrievalAccuracy)
	}
	for format, fa := range result.PerFormat {
		if fa.EndToEndAccuracy > fa.AnswerAccuracy || fa.EndToEndAccuracy > fa.RetrievalAccuracy {
			t.Errorf("format %s violates metric bound: %+v", format, fa)
		}
	}
}

func TestAggregateIdempotent(t *testing.T) {
	records := []Record{
		{QuestionID: "a", AnswerFormat: dataset.FormatInt, RetrievalCorrect: true, AnswerCorrect: true, EndToEndCorrect: true},
		{QuestionID: "b", AnswerFormat: dataset.FormatList, RetrievalCorrect: true},
		{QuestionID: "c", AnswerFormat: dataset.FormatNull, AnswerCorrect: true},
	}

	first := Aggregate(records)
	second := Aggregate(records)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Aggregate is not idempotent (-first +second):\n%s", diff)
	}
}

func TestAggregatePerFormat(t *testing.T) {
	records := []Record{
		{QuestionID: "a", AnswerFormat: dataset.FormatInt, RetrievalCorrect: true, AnswerCorrect: true, EndToEndCorrect: true},
		{QuestionID: "b", AnswerFormat: dataset.FormatInt, RetrievalCorrect: true},
		{QuestionID: "c", AnswerFormat: dataset.FormatString, RetrievalCorrect: true, AnswerCorrect: true, EndToEndCorrect: true},
	}

	result := Aggregate(records)
	ints := result.PerFormat[dataset.FormatInt]
	if ints.Count != 2 || ints.AnswerAccuracy != 0.5 {
		t.Errorf("int bucket = %+v, want count 2 answer 0.5", ints)
	}
	strs := result.PerFormat[dataset.FormatString]
	if strs.Count != 1 || strs.AnswerAccuracy != 1.0 {
		t.Errorf("string bucket = %+v, want count 1 answer 1.0", strs)
	}
}

func TestEvidenceOverlap(t *testing.T) {
	tests := []struct {
		name            string
		retrieved, gold []string
		want            bool
	}{
		{"hit", []string{"p1", "p2"}, []string{"p2", "p9"}, true},
		{"miss", []string{"p1", "p2"}, []string{"p3"}, false},
		{"no gold required", []string{"p1"}, nil, true},
		{"nothing retrieved", nil, []string{"p1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvidenceOverlap(tt.retrieved, tt.gold); got != tt.want {
				t.Errorf("EvidenceOverlap(%v, %v) = %v, want %v", tt.retrieved, tt.gold, got, tt.want)
			}
		})
	}
}

func TestAggregateEmpty(t *testing.T) {
	result := Aggregate(nil)
	if result.AnswerAccuracy != 0 || result.RetrievalAccuracy != 0 || result.EndToEndAccuracy != 0 {
		t.Errorf("empty aggregate should be all zeros: %+v", result)
	}
}
