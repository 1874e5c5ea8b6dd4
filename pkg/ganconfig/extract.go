// Package ganconfig extracts the inline "gan-config" configuration block a
// caller may embed in a Thought's free-form text. Only the interface is
// load-bearing — inline config extraction is kept an external
// collaborator — but a default implementation is provided so the Audit
// Engine is runnable.
package ganconfig

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/ganaudit/pkg/session"
)

// fencedBlock matches a fenced code block opened with ```gan-config or
// ```json, capturing its body. The first match wins.
var fencedBlock = regexp.MustCompile("(?s)```(?:gan-config|json)\\s*\\n(.*?)\\n?```")

// partial mirrors session.Config but with every field optional, so a
// caller can override just the fields they mention.
type partial struct {
	Task       *string   `json:"task"`
	Scope      *string   `json:"scope"`
	Paths      *[]string `json:"paths"`
	Threshold  *int      `json:"threshold"`
	MaxCycles  *int      `json:"maxCycles"`
	Candidates *int      `json:"candidates"`
	Judges     *[]string `json:"judges"`
	ApplyFixes *bool     `json:"applyFixes"`
}

// Result is the outcome of extracting and merging an inline config block.
type Result struct {
	Config   session.Config
	Found    bool
	Warnings []string
}

// Extract scans thoughtText for the first fenced gan-config/json block,
// parses it as a partial SessionConfig, and merges it onto base. Parse
// errors and empty blocks produce a warning and leave base unchanged,
// never an error — inline config is advisory, not load-bearing.
func Extract(thoughtText string, base session.Config) Result {
	match := fencedBlock.FindStringSubmatch(thoughtText)
	if match == nil {
		return Result{Config: base}
	}

	body := strings.TrimSpace(match[1])
	if body == "" {
		return Result{Config: base, Found: true, Warnings: []string{"gan-config block is empty, no change applied"}}
	}

	var p partial
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Result{Config: base, Found: true, Warnings: []string{"gan-config block failed to parse, no change applied: " + err.Error()}}
	}

	merged := base
	if p.Task != nil {
		merged.Task = *p.Task
	}
	if p.Scope != nil {
		merged.Scope = session.Scope(*p.Scope)
	}
	if p.Paths != nil {
		merged.Paths = *p.Paths
	}
	if p.Threshold != nil {
		merged.Threshold = *p.Threshold
	}
	if p.MaxCycles != nil {
		merged.MaxCycles = *p.MaxCycles
	}
	if p.Candidates != nil {
		merged.Candidates = *p.Candidates
	}
	if p.Judges != nil {
		merged.Judges = *p.Judges
	}
	if p.ApplyFixes != nil {
		merged.ApplyFixes = *p.ApplyFixes
	}

	warnings := merged.Sanitize()
	return Result{Config: merged, Found: true, Warnings: warnings}
}
