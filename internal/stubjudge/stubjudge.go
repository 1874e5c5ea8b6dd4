// Package stubjudge implements the built-in development-fallback judge: a
// deterministic, keyword-driven reviewer that speaks the same wire
// protocol as a real external judge so the orchestrator is runnable
// end-to-end without a configured reviewer process. It is invoked as a
// subprocess via "ganaudit judge stub", never imported directly by
// pkg/engine or pkg/judge — from their perspective it's just another judge
// executable.
//
// The heuristic is intentionally shallow: it never substitutes for a real
// adversarial judge, and callers should treat its verdicts as placeholders
// for development and CI, not as the thing pkg/engine is measuring.
package stubjudge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/codeready-toolchain/ganaudit/pkg/judge"
)

// dimensionHeuristic scores one rubric dimension from keyword signals
// present (or absent) in the candidate text, mirroring the keyword-rule
// shape pkg/feedback uses to classify review comments.
type dimensionHeuristic struct {
	name     string
	positive []string // presence raises the score
	negative []string // presence lowers the score
	base     int
}

var heuristics = []dimensionHeuristic{
	{
		name:     "Correctness",
		positive: []string{"return", "err != nil", "if ", "switch "},
		negative: []string{"panic(", "todo", "fixme", "not implemented"},
		base:     75,
	},
	{
		name:     "Tests",
		positive: []string{"func test", "assert", "require", "expect(", "_test.go", "describe(", "it("},
		negative: []string{},
		base:     60,
	},
	{
		name:     "Style",
		positive: []string{"// ", "/* ", "#"},
		negative: []string{"\t\t\t\t\t", "goto "},
		base:     78,
	},
	{
		name:     "Security",
		positive: []string{"validate", "sanitize", "escape", "parameterized"},
		negative: []string{"eval(", "exec(", "os.system", "sql injection", "md5", "sha1("},
		base:     80,
	},
	{
		name:     "Performance",
		positive: []string{"cache", "index", "batch"},
		negative: []string{"o(n^2)", "nested loop", "sleep("},
		base:     78,
	},
	{
		name:     "Docs",
		positive: []string{"// ", "/**", "\"\"\"", "godoc", "@param", "@return"},
		negative: []string{},
		base:     65,
	},
}

func (h dimensionHeuristic) score(lower string) int {
	score := h.base
	for _, kw := range h.positive {
		if strings.Contains(lower, kw) {
			score += 4
		}
	}
	for _, kw := range h.negative {
		if strings.Contains(lower, kw) {
			score -= 15
		}
	}
	switch {
	case score < 0:
		score = 0
	case score > 100:
		score = 100
	}
	return score
}

// Evaluate produces a deterministic Verdict for req, computed purely from
// req.Candidate's text against the configured rubric (or the standard
// rubric if req.Rubric carries no dimensions).
func Evaluate(req judge.Request) judge.Verdict {
	rubric := req.Rubric
	if len(rubric.Dimensions) == 0 {
		rubric = judge.StandardRubric()
	}
	lower := strings.ToLower(req.Candidate)

	byName := make(map[string]dimensionHeuristic, len(heuristics))
	for _, h := range heuristics {
		byName[h.name] = h
	}

	dims := make([]judge.Dimension, 0, len(rubric.Dimensions))
	var weighted float64
	for _, rd := range rubric.Dimensions {
		h, ok := byName[rd.Name]
		if !ok {
			h = dimensionHeuristic{name: rd.Name, base: 70}
		}
		s := h.score(lower)
		dims = append(dims, judge.Dimension{Name: rd.Name, Score: s})
		weighted += float64(s) * rd.Weight
	}

	overall := int(weighted + 0.5)

	verdict := judge.VerdictRevise
	switch {
	case overall >= req.Budget.Threshold && overall >= 85:
		verdict = judge.VerdictPass
	case overall < 40:
		verdict = judge.VerdictReject
	}

	summary := fmt.Sprintf("stub judge: heuristic overall score %d/100 across %d dimensions", overall, len(dims))

	return judge.Verdict{
		Overall:    overall,
		Dimensions: dims,
		Verdict:    verdict,
		Review: judge.Review{
			Summary:   summary,
			Inline:    inlineComments(req.Candidate, lower),
			Citations: nil,
		},
		Iterations: req.Budget.MaxCycles,
		JudgeCards: []judge.JudgeCard{{Model: "stub", Score: overall, Notes: "heuristic development fallback, not an adversarial reviewer"}},
	}
}

// inlineComments emits a small number of keyword-triggered review comments
// so downstream feedback classification (pkg/feedback) has something to
// classify even against the stub.
func inlineComments(candidate, lower string) []judge.InlineComment {
	var comments []judge.InlineComment
	line := func(substr string) int {
		idx := strings.Index(lower, substr)
		if idx < 0 {
			return 1
		}
		return strings.Count(candidate[:idx], "\n") + 1
	}

	if strings.Contains(lower, "todo") || strings.Contains(lower, "fixme") {
		comments = append(comments, judge.InlineComment{
			Path: "candidate", Line: line("todo"),
			Comment: "unresolved TODO/FIXME left in the candidate",
		})
	}
	if strings.Contains(lower, "panic(") {
		comments = append(comments, judge.InlineComment{
			Path: "candidate", Line: line("panic("),
			Comment: "panic() used for control flow; consider returning an error instead",
		})
	}
	if !strings.Contains(lower, "test") {
		comments = append(comments, judge.InlineComment{
			Path: "candidate", Line: 1,
			Comment: "no test coverage detected for this candidate",
		})
	}
	return comments
}

// Run implements the judge wire protocol over the given reader/writer:
// read one JSON Request, evaluate, write one JSON Verdict.
func Run(stdin io.Reader, stdout io.Writer) error {
	data, err := io.ReadAll(bufio.NewReader(stdin))
	if err != nil {
		return fmt.Errorf("stubjudge: read request: %w", err)
	}

	var req judge.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("stubjudge: parse request: %w", err)
	}

	verdict := Evaluate(req)

	enc := json.NewEncoder(stdout)
	if err := enc.Encode(verdict); err != nil {
		return fmt.Errorf("stubjudge: write verdict: %w", err)
	}
	return nil
}
