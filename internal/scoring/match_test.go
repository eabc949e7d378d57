package scoring

import (
	"testing"

	"crambench/internal/dataset"
)

func TestMatchSynonymEquivalence(t *testing.T) {
	// Every refusal phrasing must match every other, regardless of format.
	if !Match("Not answerable", "n/a", dataset.FormatNull) {
		t.Error(`Match("Not answerable", "n/a") = false`)
	}
	if !Match("null", "cannot answer", dataset.FormatNull) {
		t.Error(`Match("null", "cannot answer") = false`)
	}
	if !Match("fail to answer", "NULL", dataset.FormatString) {
		t.Error("refusal phrasings must match under string format too")
	}

	// A refusal never matches a real answer.
	if Match("null", "42", dataset.FormatInt) {
		t.Error("refusal matched a numeric ground truth")
	}
	if Match("42", "n/a", dataset.FormatInt) {
		t.Error("numeric answer matched a refusal ground truth")
	}
}

func TestMatchNumeric(t *testing.T) {
	tests := []struct {
		pred, truth string
		format      dataset.Format
		want        bool
	}{
		{"42", "42", dataset.FormatInt, true},
		{"42 km", "42", dataset.FormatInt, true},
		{"$1,234", "1234", dataset.FormatInt, true},
		{"43", "42", dataset.FormatInt, false},
		{"0.26", "0.25", dataset.FormatFloat, true},  // within absolute tolerance 0.02
		{"0.30", "0.25", dataset.FormatFloat, false}, // outside both tolerances
		{"101.0", "100", dataset.FormatFloat, true},  // within relative tolerance 1%
		{"103", "100", dataset.FormatFloat, false},
		{"roughly a dozen", "12", dataset.FormatInt, false}, // unparsable scores wrong
	}

	for _, tt := range tests {
		if got := Match(tt.pred, tt.truth, tt.format); got != tt.want {
			t.Errorf("Match(%q, %q, %s) = %v, want %v", tt.pred, tt.truth, tt.format, got, tt.want)
		}
	}
}

func TestMatchList(t *testing.T) {
	tests := []struct {
		pred, truth string
		want        bool
	}{
		{"apple, banana", "banana, apple", true}, // set equality, order-free
		{"Apple; banana, cherry, date", "apple, banana, cherry, date, elderberry", true},  // jaccard 4/5
		{"apple, banana, cherry", "apple, banana, cherry, date, elderberry", false},       // jaccard 3/5
		{"apple", "banana", false},
	}

	for _, tt := range tests {
		if got := Match(tt.pred, tt.truth, dataset.FormatList); got != tt.want {
			t.Errorf("Match(%q, %q, list) = %v, want %v", tt.pred, tt.truth, got, tt.want)
		}
	}
}

func TestMatchString(t *testing.T) {
	tests := []struct {
		pred, truth string
		want        bool
	}{
		{"Paris", "paris", true},
		{"The Eiffel Tower", "Eiffel Tower!", true},
		{"completely different", "paris", false},
	}

	for _, tt := range tests {
		if got := Match(tt.pred, tt.truth, dataset.FormatString); got != tt.want {
			t.Errorf("Match(%q, %q, string) = %v, want %v", tt.pred, tt.truth, got, tt.want)
		}
	}
}

func TestAnlsSimilarity(t *testing.T) {
	if got := anlsSimilarity("abc", "abc"); got != 1 {
		t.Errorf("identical similarity = %v, want 1", got)
	}
	if got := anlsSimilarity("abcd", "abce"); got != 0.75 {
		t.Errorf("one-edit similarity = %v, want 0.75", got)
	}
	if got := anlsSimilarity("", ""); got != 1 {
		t.Errorf("empty similarity = %v, want 1", got)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
