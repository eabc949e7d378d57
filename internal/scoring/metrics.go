package scoring

import "crambench/internal/dataset"

// Record is the frozen outcome for one question. Created once per item,
// appended in dataset order, never mutated afterwards.
type Record struct {
	QuestionID           string         `json:"question_id"`
	AnswerFormat         dataset.Format `json:"answer_format"`
	RetrievedEvidenceIDs []string       `json:"retrieved_evidence_ids"`
	RawAnswer            string         `json:"raw_answer"`
	NormalizedAnswer     string         `json:"normalized_answer"`
	RetrievalCorrect     bool           `json:"retrieval_correct"`
	AnswerCorrect        bool           `json:"answer_correct"`
	EndToEndCorrect      bool           `json:"end_to_end_correct"`
	Failure              string         `json:"failure,omitempty"`
}

// FormatAccuracy is the per-format metric breakdown.
type FormatAccuracy struct {
	Count             int     `json:"count"`
	RetrievalAccuracy float64 `json:"retrieval_accuracy"`
	AnswerAccuracy    float64 `json:"answer_accuracy"`
	EndToEndAccuracy  float64 `json:"end_to_end_accuracy"`
}

// Result is the final run summary. Computed once at completion; never
// persisted before the run finishes.
type Result struct {
	Records           []Record                          `json:"records"`
	RetrievalAccuracy float64                           `json:"retrieval_accuracy"`
	AnswerAccuracy    float64                           `json:"answer_accuracy"`
	EndToEndAccuracy  float64                           `json:"end_to_end_accuracy"`
	PerFormat         map[dataset.Format]FormatAccuracy `json:"per_format"`
}

// EvidenceOverlap reports retrieval correctness: the retrieved evidence set
// intersects the gold evidence set. Questions with no gold evidence (e.g.
// unanswerable ones) count as retrieval-correct, since nothing was required.
func EvidenceOverlap(retrieved, gold []string) bool {
	if len(gold) == 0 {
		return true
	}
	retrievedSet := make(map[string]bool, len(retrieved))
	for _, id := range retrieved {
		retrievedSet[id] = true
	}
	for _, id := range gold {
		if retrievedSet[id] {
			return true
		}
	}
	return false
}

// Score builds the record for one question. A non-empty failure tag marks the
// item as a recorded failure: the answer scores incorrect but the item stays
// in the denominator.
func Score(q dataset.Question, retrievedIDs []string, rawAnswer, failure string) Record {
	rec := Record{
		QuestionID:           q.ID,
		AnswerFormat:         q.AnswerFormat,
		RetrievedEvidenceIDs: retrievedIDs,
		RawAnswer:            rawAnswer,
		NormalizedAnswer:     Normalize(rawAnswer, q.AnswerFormat),
		RetrievalCorrect:     EvidenceOverlap(retrievedIDs, q.GoldEvidenceIDs),
		Failure:              failure,
	}
	if failure == "" {
		rec.AnswerCorrect = Match(rawAnswer, q.GroundTruth, q.AnswerFormat)
	}
	rec.EndToEndCorrect = rec.RetrievalCorrect && rec.AnswerCorrect
	return rec
}

// Aggregate computes the run summary from the final record list. Pure and
// idempotent: safe to recompute from any persisted record list.
func Aggregate(records []Record) Result {
	result := Result{
		Records:   records,
		PerFormat: make(map[dataset.Format]FormatAccuracy),
	}
	if len(records) == 0 {
		return result
	}

	type bucket struct {
		count, retrieval, answer, endToEnd int
	}
	total := bucket{}
	perFormat := make(map[dataset.Format]*bucket)

	for _, rec := range records {
		fb := perFormat[rec.AnswerFormat]
		if fb == nil {
			fb = &bucket{}
			perFormat[rec.AnswerFormat] = fb
		}
		for _, b := range []*bucket{&total, fb} {
			b.count++
			if rec.RetrievalCorrect {
				b.retrieval++
			}
			if rec.AnswerCorrect {
				b.answer++
			}
			if rec.EndToEndCorrect {
				b.endToEnd++
			}
		}
	}

	result.RetrievalAccuracy = float64(total.retrieval) / float64(total.count)
	result.AnswerAccuracy = float64(total.answer) / float64(total.count)
	result.EndToEndAccuracy = float64(total.endToEnd) / float64(total.count)
	for format, b := range perFormat {
		result.PerFormat[format] = FormatAccuracy{
			Count:             b.count,
			RetrievalAccuracy: float64(b.retrieval) / float64(b.count),
			AnswerAccuracy:    float64(b.answer) / float64(b.count),
			EndToEndAccuracy:  float64(b.endToEnd) / float64(b.count),
		}
	}
	return result
}
