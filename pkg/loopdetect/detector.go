// Package loopdetect wraps the Similarity Analyzer with a gating policy:
// similarity is computed only once a session's currentLoop reaches 10, and
// a detected stagnation is written once per session, with later
// detections only refreshing the similarity score.
package loopdetect

import (
	"fmt"

	"github.com/codeready-toolchain/ganaudit/pkg/session"
	"github.com/codeready-toolchain/ganaudit/pkg/similarity"
)

// GateLoop is the minimum currentLoop at which similarity analysis runs.
const GateLoop = 10

// WindowSize is the number of most recent candidates fed to the analyzer.
const WindowSize = 10

// Detector gates a similarity.Analyzer behind the loop-10 policy.
type Detector struct {
	analyzer *similarity.Analyzer
}

// New builds a Detector using the default Similarity Analyzer.
func New() *Detector {
	return &Detector{analyzer: similarity.New()}
}

// Evaluate inspects a session snapshot and returns an updated stagnation
// record, or nil if the gate hasn't opened yet (currentLoop < GateLoop) or
// no stagnation is present. existing is the session's current stagnation
// record (nil if none yet); its DetectedAtLoop is preserved across repeat
// detections.
func (d *Detector) Evaluate(st *session.State, existing *session.StagnationRecord) *session.StagnationRecord {
	if st.CurrentLoop < GateLoop {
		return nil
	}

	texts := candidateWindow(st, WindowSize)
	result := d.analyzer.Analyze(texts)
	if !result.IsStagnant {
		return nil
	}

	detectedAt := st.CurrentLoop
	if existing != nil && existing.IsStagnant {
		detectedAt = existing.DetectedAtLoop
	}

	recommendation := recommendationFor(result, detectedAt)

	return &session.StagnationRecord{
		IsStagnant:      true,
		DetectedAtLoop:  detectedAt,
		SimilarityScore: result.AverageSimilarity,
		Recommendation:  recommendation,
	}
}

func candidateWindow(st *session.State, n int) []string {
	start := len(st.Iterations) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, len(st.Iterations)-start)
	for _, it := range st.Iterations[start:] {
		out = append(out, it.Candidate)
	}
	return out
}

func recommendationFor(result similarity.Result, loop int) string {
	pattern := "the repeated candidate text"
	if len(result.RepeatedPatterns) > 0 {
		pattern = truncate(result.RepeatedPatterns[0], 80)
	}
	return fmt.Sprintf(
		"Consider changing approach: stagnation detected at loop %d with similarity %.2f. Repeated pattern: %q",
		loop, result.AverageSimilarity, pattern,
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
