package scoring

import (
	"math"

	"crambench/internal/dataset"
)

// Matching thresholds. These constants are load-bearing for published numbers;
// change them and every historical run stops being comparable.
const (
	// Numeric answers match within max(AbsTolerance, RelTolerance*|truth|).
	AbsTolerance = 0.02
	RelTolerance = 0.01

	// List answers match at Jaccard overlap >= ListOverlapThreshold.
	ListOverlapThreshold = 0.8

	// String answers match at normalized-edit-distance similarity >=
	// StringSimilarityThreshold (ANLS-style).
	StringSimilarityThreshold = 0.5
)

// Match reports whether a predicted answer is correct against the ground
// truth under the question's declared format. Unanswerable sentinels match
// only each other, for any format.
func Match(predicted, groundTruth string, format dataset.Format) bool {
	predRefused := IsUnanswerable(predicted)
	truthRefused := IsUnanswerable(groundTruth)
	if predRefused || truthRefused {
		return predRefused && truthRefused
	}

	switch format {
	case dataset.FormatInt, dataset.FormatFloat:
		truth, ok := parseNumeric(groundTruth)
		if !ok {
			// Ground truth that doesn't parse numerically degrades to text
			// comparison rather than poisoning the whole run.
			return anlsSimilarity(normalizeText(predicted), normalizeText(groundTruth)) >= StringSimilarityThreshold
		}
		pred, ok := parseNumeric(predicted)
		if !ok {
			return false
		}
		return math.Abs(pred-truth) <= math.Max(AbsTolerance, RelTolerance*math.Abs(truth))
	case dataset.FormatList:
		return jaccard(parseList(predicted), parseList(groundTruth)) >= ListOverlapThreshold
	default:
		return anlsSimilarity(normalizeText(predicted), normalizeText(groundTruth)) >= StringSimilarityThreshold
	}
}

// jaccard computes |a∩b| / |a∪b| over normalized item sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for item := range a {
		if b[item] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// anlsSimilarity is 1 - levenshtein/maxLen over normalized strings.
func anlsSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes edit distance over runes with a two-row DP.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
