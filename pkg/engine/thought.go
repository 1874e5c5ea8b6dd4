package engine

import (
	"regexp"

	"github.com/codeready-toolchain/ganaudit/pkg/feedback"
	"github.com/codeready-toolchain/ganaudit/pkg/judge"
	"github.com/codeready-toolchain/ganaudit/pkg/session"
)

// Thought is one submitted unit of work.
type Thought struct {
	Text              string
	ThoughtNumber     int
	TotalThoughts     int
	NextThoughtNeeded bool
	// SessionID is the caller-supplied session hint. Empty means "derive a
	// stable default session id from the working directory".
	SessionID string
}

// LoopInfo summarizes a session's position in the audit loop for the
// caller-facing response.
type LoopInfo struct {
	CurrentLoop        int  `json:"currentLoop"`
	MaxCycles          int  `json:"maxCycles"`
	StagnationDetected bool `json:"stagnationDetected"`
}

// TerminationInfo is populated on the response when a session was force
// terminated (as opposed to completing normally), carrying the full
// termination assessment: how often iterations fell short and a
// human-readable trajectory summary.
type TerminationInfo struct {
	Reason          session.CompletionReason `json:"reason"`
	AtLoop          int                      `json:"atLoop"`
	FailureRate     float64                  `json:"failureRate"`
	FinalAssessment string                   `json:"finalAssessment"`
}

// Result is the structured response auditAndWait produces.
type Result struct {
	Success           bool                     `json:"success"`
	SessionID         string                   `json:"sessionId"`
	Verdict           judge.Verdict            `json:"verdict"`
	Feedback          feedback.Summary         `json:"feedback"`
	CompletionStatus  session.CompletionReason `json:"completionStatus"`
	NextThoughtNeeded bool                     `json:"nextThoughtNeeded"`
	LoopInfo          LoopInfo                 `json:"loopInfo"`
	Termination       *TerminationInfo         `json:"terminationInfo,omitempty"`
	Error             string                   `json:"error,omitempty"`
	// JudgeError carries the structured judge failure behind Error, so the
	// transport layer can build a category-accurate error envelope instead
	// of a generic internal one. Never serialized; Error is the wire field.
	JudgeError *judge.Error `json:"-"`
	// DurationMs is the wall-clock time the whole audit took; near zero for
	// auto-passes and cache hits, which never reach the judge.
	DurationMs int64 `json:"durationMs"`
}

// fencedCode matches fenced code blocks in free-form text, capturing the
// language tag and body, to detect code-candidate presence. This is
// distinct from pkg/ganconfig's narrower gan-config/json fence, which
// looks for a specific tag.
var fencedCode = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)[ \t]*\\n(.*?)\\n?```")

// extractCandidate returns the text of the first fenced code block in
// thoughtText, and whether one was found at all. Fences tagged gan-config
// or json are configuration (both tags open an inline config block, the
// same pair pkg/ganconfig recognizes), not code, and are skipped so a
// thought carrying both an inline config block and a candidate picks the
// right one.
func extractCandidate(thoughtText string) (string, bool) {
	for _, match := range fencedCode.FindAllStringSubmatch(thoughtText, -1) {
		if match[1] == "gan-config" || match[1] == "json" {
			continue
		}
		return match[2], true
	}
	return "", false
}
