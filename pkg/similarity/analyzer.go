// Package similarity implements the Similarity Analyzer: given a window of
// recent candidate texts, it reports their pairwise average similarity and
// any substrings repeated across a majority of them.
//
// Tokenization choice: similarity is 1 minus the normalized Levenshtein
// distance between whitespace-normalized texts, computed via go-diff's
// diff_match_patch character-level diff. This is symmetric, bounded [0,1],
// and exactly 1.0 iff the two normalized texts are identical.
package similarity

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultStagnationThreshold is the average-similarity value at or above
// which a window is considered stagnant.
const DefaultStagnationThreshold = 0.95

// minPatternLength is the minimum substring length considered for
// repeated-pattern detection.
const minPatternLength = 16

// Result is the Similarity Analyzer's output.
type Result struct {
	AverageSimilarity float64  `json:"averageSimilarity"`
	IsStagnant        bool     `json:"isStagnant"`
	RepeatedPatterns  []string `json:"repeatedPatterns"`
}

// Analyzer computes pairwise similarity over a window of candidate texts.
type Analyzer struct {
	// StagnationThreshold overrides DefaultStagnationThreshold when non-zero.
	StagnationThreshold float64
}

// New returns an Analyzer using the default stagnation threshold.
func New() *Analyzer {
	return &Analyzer{StagnationThreshold: DefaultStagnationThreshold}
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// pairwiseSimilarity returns a value in [0,1]: 1.0 iff a and b are
// identical after whitespace normalization.
func pairwiseSimilarity(a, b string) float64 {
	na, nb := normalizeWhitespace(a), normalizeWhitespace(b)
	if na == nb {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(na, nb, false)
	distance := dmp.DiffLevenshtein(diffs)

	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	if maxLen == 0 {
		return 1.0
	}

	sim := 1.0 - float64(distance)/float64(maxLen)
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim
}

// Analyze computes the pairwise average similarity across texts and
// detects repeated patterns, handling two edge cases:
//   - fewer than 2 texts ⇒ {0, false, nil}
//   - all texts identical (after normalization) ⇒ {1.0, true, [text]}
func (a *Analyzer) Analyze(texts []string) Result {
	if len(texts) < 2 {
		return Result{}
	}

	threshold := a.StagnationThreshold
	if threshold <= 0 {
		threshold = DefaultStagnationThreshold
	}

	var sum float64
	var pairs int
	for i := 0; i < len(texts); i++ {
		for j := i + 1; j < len(texts); j++ {
			sum += pairwiseSimilarity(texts[i], texts[j])
			pairs++
		}
	}
	avg := 0.0
	if pairs > 0 {
		avg = sum / float64(pairs)
	}

	isStagnant := avg >= threshold
	patterns := repeatedPatterns(texts)

	return Result{
		AverageSimilarity: avg,
		IsStagnant:        isStagnant,
		RepeatedPatterns:  patterns,
	}
}

// repeatedPatterns finds substrings of at least minPatternLength characters
// that appear verbatim (trailing "\r" aside) in at least ceil(N/2) of the
// inputs. Candidate substrings are raw lines of each text, a cheap and
// usually-meaningful unit for source code and prose alike.
func repeatedPatterns(texts []string) []string {
	n := len(texts)

	// Identical-only-input edge case: report the whole text as the single
	// repeated pattern rather than a line-by-line breakdown.
	first := normalizeWhitespace(texts[0])
	allEqual := first != ""
	for _, t := range texts[1:] {
		if normalizeWhitespace(t) != first {
			allEqual = false
			break
		}
	}
	if allEqual {
		return []string{texts[0]}
	}

	threshold := (n + 1) / 2 // ceil(n/2)

	// Split each text into lines before any whitespace normalization: the
	// analyzer's own normalizeWhitespace collapses every newline in a
	// document down to single spaces, which would make a post-normalize
	// split on "\n" a no-op and leave each "line" as the whole document.
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, t := range texts {
		seenInThisText := make(map[string]bool)
		for _, rawLine := range strings.Split(t, "\n") {
			line := strings.TrimRight(rawLine, "\r")
			if len(line) < minPatternLength || seenInThisText[line] {
				continue
			}
			seenInThisText[line] = true
			if counts[line] == 0 {
				order = append(order, line)
			}
			counts[line]++
		}
	}

	var out []string
	for _, line := range order {
		if counts[line] >= threshold {
			out = append(out, line)
		}
	}

	return out
}
