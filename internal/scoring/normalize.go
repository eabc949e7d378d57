// Package scoring implements format-aware answer normalization, fuzzy
// matching, and the three run-level accuracy metrics. Scoring is pure: no
// I/O, no state, so the same records always produce the same result.
package scoring

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"crambench/internal/dataset"
)

// Unanswerable is the sentinel every "cannot answer" phrasing canonicalizes
// to. Both prediction and ground truth go through this canonicalization before
// comparison; without it a correct refusal is scored wrong whenever the two
// sides phrase it differently.
const Unanswerable = "<unanswerable>"

var unanswerableSynonyms = map[string]bool{
	"null":           true,
	"not answerable": true,
	"n/a":            true,
	"cannot answer":  true,
	"fail to answer": true,
}

// IsUnanswerable reports whether an answer is one of the fixed refusal
// phrasings, case-insensitively.
func IsUnanswerable(raw string) bool {
	return unanswerableSynonyms[strings.ToLower(strings.TrimSpace(raw))]
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?`)

var unitStripper = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", "%", "")

// parseNumeric extracts the first numeric value from an answer, tolerating
// currency symbols, thousands separators, percent signs, and trailing units.
func parseNumeric(raw string) (float64, bool) {
	cleaned := unitStripper.Replace(raw)
	match := numberPattern.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// normalizeText lowercases, strips punctuation, and collapses whitespace.
func normalizeText(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var listSeparators = regexp.MustCompile(`[,;\n]`)

// parseList splits a list answer on commas, semicolons, and newlines, and
// normalizes each element. Duplicate elements collapse.
func parseList(raw string) map[string]bool {
	items := make(map[string]bool)
	for _, part := range listSeparators.Split(raw, -1) {
		if item := normalizeText(part); item != "" {
			items[item] = true
		}
	}
	return items
}

// Normalize canonicalizes a raw answer for its declared format. The result is
// what gets recorded alongside the raw answer; an answer that does not parse
// for its format falls back to plain text normalization and will simply fail
// to match, it is never dropped.
func Normalize(raw string, format dataset.Format) string {
	if IsUnanswerable(raw) {
		return Unanswerable
	}

	switch format {
	case dataset.FormatInt, dataset.FormatFloat:
		if v, ok := parseNumeric(raw); ok {
			return strconv.FormatFloat(v, 'g', -1, 64)
		}
		return normalizeText(raw)
	case dataset.FormatList:
		items := parseList(raw)
		sorted := make([]string, 0, len(items))
		for item := range items {
			sorted = append(sorted, item)
		}
		sort.Strings(sorted)
		return strings.Join(sorted, "; ")
	default:
		return normalizeText(raw)
	}
}
