// Package session implements the durable per-session iteration history the
// spec calls the Session Store: config, ordered append-only iterations,
// progress metrics, stagnation info, and termination cause, persisted one
// JSON file per session under a configured state directory.
package session

import (
	"sync"
	"time"

	"github.com/codeready-toolchain/ganaudit/pkg/judge"
)

// Scope selects what the Context Packer includes for an audit.
type Scope string

const (
	ScopeDiff      Scope = "diff"
	ScopePaths     Scope = "paths"
	ScopeWorkspace Scope = "workspace"
)

// CompletionReason enumerates why a session stopped accepting iterations.
type CompletionReason string

const (
	ReasonScore95At10 CompletionReason = "score_95_at_10"
	ReasonScore90At15 CompletionReason = "score_90_at_15"
	ReasonScore85At20 CompletionReason = "score_85_at_20"
	ReasonMaxLoops    CompletionReason = "max_loops_reached"
	ReasonStagnation  CompletionReason = "stagnation_detected"
	ReasonInProgress  CompletionReason = "in_progress"
)

// Config is the per-session SessionConfig. Zero values are never
// persisted directly; Sanitize always runs first so the stored config
// reflects clamped, defaulted values.
type Config struct {
	Task       string   `json:"task"`
	Scope      Scope    `json:"scope"`
	Paths      []string `json:"paths,omitempty"`
	Threshold  int      `json:"threshold"`
	MaxCycles  int      `json:"maxCycles"`
	Candidates int      `json:"candidates"`
	Judges     []string `json:"judges"`
	ApplyFixes bool     `json:"applyFixes"`
}

// DefaultConfig returns the documented per-session defaults.
func DefaultConfig() Config {
	return Config{
		Task:       "Audit and improve the candidate",
		Scope:      ScopeDiff,
		Threshold:  85,
		MaxCycles:  1,
		Candidates: 1,
		Judges:     []string{"internal"},
		ApplyFixes: false,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Sanitize clamps and defaults the config in place and returns the
// warnings generated along the way (out-of-range clamps, resets to
// defaults, scope=paths without paths rewritten to workspace).
func (c *Config) Sanitize() []string {
	var warnings []string
	d := DefaultConfig()

	if c.Task == "" {
		c.Task = d.Task
	}
	switch c.Scope {
	case ScopeDiff, ScopePaths, ScopeWorkspace:
	default:
		c.Scope = d.Scope
	}

	if clamped := clampInt(c.Threshold, 0, 100); clamped != c.Threshold {
		warnings = append(warnings, "threshold out of range [0,100], clamped")
		c.Threshold = clamped
	}

	if clamped := clampInt(c.MaxCycles, 1, 10); clamped != c.MaxCycles {
		warnings = append(warnings, "maxCycles out of range [1,10], clamped")
		c.MaxCycles = clamped
	}

	if clamped := clampInt(c.Candidates, 1, 5); clamped != c.Candidates {
		warnings = append(warnings, "candidates out of range [1,5], clamped")
		c.Candidates = clamped
	}

	if len(c.Judges) == 0 {
		c.Judges = append([]string(nil), d.Judges...)
		warnings = append(warnings, "judges empty, reverted to default")
	}

	if c.Scope == ScopePaths && len(c.Paths) == 0 {
		c.Scope = ScopeWorkspace
		warnings = append(warnings, "scope=paths requires paths, fell back to workspace")
	}

	return warnings
}

// Iteration is one append-only turn of the audit loop within a session.
type Iteration struct {
	ThoughtNumber int           `json:"thoughtNumber"`
	Candidate     string        `json:"candidate"`
	Verdict       judge.Verdict `json:"verdict"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// StagnationRecord is written once per session by the Loop Detector and
// thereafter only has its SimilarityScore refreshed.
type StagnationRecord struct {
	IsStagnant      bool    `json:"isStagnant"`
	DetectedAtLoop  int     `json:"detectedAtLoop"`
	SimilarityScore float64 `json:"similarityScore"`
	Recommendation  string  `json:"recommendation"`
}

// TerminationCause records why a session was force-stopped independent of
// a completion tier (hard loop cap, stagnation kill switch), along with
// the assessment computed at termination time.
type TerminationCause struct {
	Reason          CompletionReason `json:"reason"`
	AtLoop          int              `json:"atLoop"`
	TerminatedAt    time.Time        `json:"terminatedAt"`
	FailureRate     float64          `json:"failureRate"`
	FinalAssessment string           `json:"finalAssessment"`
}

// State is the durable aggregate the Session Store owns. Callers outside
// the store only ever observe a Clone()'d copy; the embedded mutex guards
// in-process mutation while the Store's per-session lock guards the
// read-modify-write cycle against concurrent persistence.
type State struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Config Config `json:"config"`

	Iterations  []Iteration `json:"iterations"`
	CurrentLoop int         `json:"currentLoop"`

	IsComplete       bool              `json:"isComplete"`
	CompletionReason CompletionReason  `json:"completionReason,omitempty"`
	Stagnation       *StagnationRecord `json:"stagnation,omitempty"`
	Termination      *TerminationCause `json:"termination,omitempty"`

	LastVerdict *judge.Verdict `json:"lastVerdict,omitempty"`

	mu sync.RWMutex
}

// NewState builds a fresh, in-progress session with the given id and
// sanitized config.
func NewState(id string, cfg Config) *State {
	now := time.Now()
	return &State{
		ID:               id,
		CreatedAt:        now,
		UpdatedAt:        now,
		Config:           cfg,
		CompletionReason: ReasonInProgress,
	}
}

// Clone returns a deep copy safe for callers to read or serialize without
// racing in-process mutation. This is the only view of a State the Store
// ever hands outside its own package.
func (s *State) Clone() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &State{
		ID:               s.ID,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		Config:           s.Config,
		CurrentLoop:      s.CurrentLoop,
		IsComplete:       s.IsComplete,
		CompletionReason: s.CompletionReason,
	}
	out.Config.Paths = append([]string(nil), s.Config.Paths...)
	out.Config.Judges = append([]string(nil), s.Config.Judges...)
	out.Iterations = make([]Iteration, len(s.Iterations))
	copy(out.Iterations, s.Iterations)
	if s.Stagnation != nil {
		sr := *s.Stagnation
		out.Stagnation = &sr
	}
	if s.Termination != nil {
		tc := *s.Termination
		out.Termination = &tc
	}
	if s.LastVerdict != nil {
		v := *s.LastVerdict
		out.LastVerdict = &v
	}
	return out
}
