// Package judge invokes the external adversarial reviewer process, parses
// its structured verdict, and classifies failures for the retry policy
// above it. The wire shapes here are the on-the-wire JSON contract; nothing
// in this package understands sessions or scoring policy.
package judge

// Verdict enum values for Verdict.Verdict.
const (
	VerdictPass   = "pass"
	VerdictRevise = "revise"
	VerdictReject = "reject"
)

// Dimension is one weighted axis of the scoring rubric.
type Dimension struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// RubricDimension describes a dimension sent to the judge, before scoring.
type RubricDimension struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description,omitempty"`
}

// Rubric is the weighted scoring dimensions sent to the judge.
type Rubric struct {
	Dimensions []RubricDimension `json:"dimensions"`
}

// StandardRubric is the six-dimension rubric named in the data model, with
// its fixed weights.
func StandardRubric() Rubric {
	return Rubric{Dimensions: []RubricDimension{
		{Name: "Correctness", Weight: 0.30},
		{Name: "Tests", Weight: 0.20},
		{Name: "Style", Weight: 0.15},
		{Name: "Security", Weight: 0.15},
		{Name: "Performance", Weight: 0.10},
		{Name: "Docs", Weight: 0.10},
	}}
}

// Budget bundles the per-request knobs the judge may use to scale its own work.
type Budget struct {
	MaxCycles  int `json:"maxCycles"`
	Candidates int `json:"candidates"`
	Threshold  int `json:"threshold"`
}

// Request is the JSON object sent to the judge subprocess on stdin.
type Request struct {
	Task        string `json:"task"`
	Candidate   string `json:"candidate"`
	ContextPack string `json:"contextPack"`
	Rubric      Rubric `json:"rubric"`
	Budget      Budget `json:"budget"`
}

// InlineComment is one review comment anchored to a file location.
type InlineComment struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Comment string `json:"comment"`
}

// Review is the judge's narrative assessment.
type Review struct {
	Summary   string          `json:"summary"`
	Inline    []InlineComment `json:"inline"`
	Citations []string        `json:"citations"`
}

// JudgeCard is one participating judge's individual score, when multiple
// candidates/judges are configured.
type JudgeCard struct {
	Model string `json:"model"`
	Score int    `json:"score"`
	Notes string `json:"notes,omitempty"`
}

// Verdict is the judge's structured scoring and recommendations for one
// candidate, as received over the wire (plus orchestration-added fields).
type Verdict struct {
	Overall      int         `json:"overall"`
	Dimensions   []Dimension `json:"dimensions"`
	Verdict      string      `json:"verdict"`
	Review       Review      `json:"review"`
	ProposedDiff *string     `json:"proposed_diff,omitempty"`
	Iterations   int         `json:"iterations"`
	JudgeCards   []JudgeCard `json:"judge_cards,omitempty"`

	// Cached reports whether this verdict was served from the Audit Cache
	// rather than a fresh judge invocation.
	Cached bool `json:"cached,omitempty"`
	// UsedFallback reports whether the greedy-fallback JSON extraction was
	// needed to parse the judge's raw output.
	UsedFallback bool `json:"usedFallback,omitempty"`
	// TimedOut reports whether this verdict represents a partial result
	// recovered after the per-call deadline expired.
	TimedOut bool `json:"timedOut,omitempty"`
	// CompletionPercentage is the fraction of expected dimensions scored,
	// meaningful only when TimedOut is true.
	CompletionPercentage float64 `json:"completionPercentage,omitempty"`
}

// clampScore bounds a raw judge score into [0,100].
func clampScore(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Normalize clamps all scores into range and maps unrecognized verdict
// strings to "revise".
func (v *Verdict) Normalize() {
	v.Overall = clampScore(v.Overall)
	for i := range v.Dimensions {
		v.Dimensions[i].Score = clampScore(v.Dimensions[i].Score)
	}
	switch v.Verdict {
	case VerdictPass, VerdictRevise, VerdictReject:
	default:
		v.Verdict = VerdictRevise
	}
}
