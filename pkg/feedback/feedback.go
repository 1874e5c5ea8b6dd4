// Package feedback derives the structured feedback the Audit Engine returns
// to the caller from a raw judge review: classifying inline comments into
// issue categories and priorities, then deriving next steps.
package feedback

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/ganaudit/pkg/judge"
)

// IssueCategory classifies one inline review comment by subject matter.
type IssueCategory string

const (
	CategorySecurity        IssueCategory = "security"
	CategoryPerformance     IssueCategory = "performance"
	CategoryStyle           IssueCategory = "style"
	CategoryLogic           IssueCategory = "logic"
	CategoryErrorHandling   IssueCategory = "error_handling"
	CategoryMaintainability IssueCategory = "maintainability"
	CategoryTesting         IssueCategory = "testing"
	CategoryDocumentation   IssueCategory = "documentation"
	CategoryArchitecture    IssueCategory = "architecture"
	CategoryCompatibility   IssueCategory = "compatibility"
)

// Priority is the urgency assigned to a classified issue.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Issue is one classified, prioritized inline comment.
type Issue struct {
	Path     string        `json:"path"`
	Line     int           `json:"line"`
	Comment  string        `json:"comment"`
	Category IssueCategory `json:"category"`
	Priority Priority      `json:"priority"`
}

// Summary is the structured feedback bundle returned to the caller.
type Summary struct {
	Summary        string   `json:"summary"`
	Improvements   []string `json:"improvements"`
	CriticalIssues []string `json:"criticalIssues"`
	NextSteps      []string `json:"nextSteps"`
}

type keywordRule struct {
	keywords []string
	category IssueCategory
}

// categoryRules are checked in order; path-based hints run first since
// they're the strongest signal (a _test.go path is testing regardless of
// comment wording), then comment-text keyword matches.
var categoryRules = []keywordRule{
	{[]string{"inject", "secret", "auth", "xss", "sql injection", "csrf", "vulnerab", "credential"}, CategorySecurity},
	{[]string{"slow", "n^2", "o(n", "latency", "allocat", "performance", "bottleneck"}, CategoryPerformance},
	{[]string{"lint", "naming", "formatting", "indent", "convention", "style"}, CategoryStyle},
	{[]string{"panic", "nil pointer", "off-by-one", "incorrect", "wrong result", "logic error", "bug"}, CategoryLogic},
	{[]string{"error handling", "unchecked error", "swallow", "ignored error", "err != nil"}, CategoryErrorHandling},
	{[]string{"duplicate", "refactor", "complex", "readab", "maintainab"}, CategoryMaintainability},
	{[]string{"test coverage", "missing test", "untested", "assertion", "test case"}, CategoryTesting},
	{[]string{"comment", "doc", "documentation", "godoc", "readme"}, CategoryDocumentation},
	{[]string{"architecture", "coupling", "layering", "abstraction", "design"}, CategoryArchitecture},
	{[]string{"backward compat", "breaking change", "deprecat", "version"}, CategoryCompatibility},
}

// Classify assigns an IssueCategory to one inline comment: any path that
// ends in _test.go or contains "test" is testing, before falling back to
// keyword matching.
func Classify(comment judge.InlineComment) IssueCategory {
	if strings.HasSuffix(comment.Path, "_test.go") || strings.Contains(comment.Path, "test") {
		return CategoryTesting
	}
	lower := strings.ToLower(comment.Comment)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return CategoryMaintainability
}

// classifyPriority assigns a Priority from severity-hint keywords in the
// comment text.
func classifyPriority(comment judge.InlineComment, category IssueCategory) Priority {
	lower := strings.ToLower(comment.Comment)
	switch {
	case containsAny(lower, "must", "critical", "blocker", "severe", "exploit"):
		return PriorityCritical
	case category == CategorySecurity:
		return PriorityHigh
	case containsAny(lower, "should", "important", "recommend"):
		return PriorityMedium
	case containsAny(lower, "nit", "minor", "consider", "optional"):
		return PriorityLow
	default:
		return PriorityMedium
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// ClassifyAll classifies every inline comment in review.
func ClassifyAll(review judge.Review) []Issue {
	out := make([]Issue, 0, len(review.Inline))
	for _, c := range review.Inline {
		category := Classify(c)
		out = append(out, Issue{
			Path:     c.Path,
			Line:     c.Line,
			Comment:  c.Comment,
			Category: category,
			Priority: classifyPriority(c, category),
		})
	}
	return out
}

// IsCritical reports whether an issue counts as critical: its priority is
// critical, or it's a security issue the judge flagged with
// blocker/critical severity wording.
func IsCritical(issue Issue) bool {
	if issue.Priority == PriorityCritical {
		return true
	}
	if issue.Category == CategorySecurity {
		lower := strings.ToLower(issue.Comment)
		return containsAny(lower, "blocker", "critical")
	}
	return false
}

// Derive builds the full feedback Summary from a verdict and the current
// loop position.
func Derive(v judge.Verdict, loopNumber int) Summary {
	issues := ClassifyAll(v.Review)

	var critical []string
	for _, issue := range issues {
		if IsCritical(issue) {
			critical = append(critical, fmt.Sprintf("%s:%d: %s", issue.Path, issue.Line, issue.Comment))
		}
	}

	improvements := make([]string, 0, len(issues))
	for _, issue := range issues {
		improvements = append(improvements, fmt.Sprintf("[%s/%s] %s:%d: %s", issue.Category, issue.Priority, issue.Path, issue.Line, issue.Comment))
	}

	return Summary{
		Summary:        v.Review.Summary,
		Improvements:   improvements,
		CriticalIssues: critical,
		NextSteps:      nextSteps(issues, loopNumber),
	}
}

// priorityRank orders priorities from most to least urgent for sorting.
var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// nextSteps derives 3-5 ordered actions from the highest-priority
// improvements plus the current loop position. Always at least three:
// one pass across distinct categories, then a backfill from remaining
// issues, then generic closing actions if the review was thin.
func nextSteps(issues []Issue, loopNumber int) []string {
	sorted := append([]Issue(nil), issues...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && priorityRank[sorted[j].Priority] < priorityRank[sorted[j-1].Priority]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var steps []string
	used := make(map[int]bool)
	seenCategory := make(map[IssueCategory]bool)
	for i, issue := range sorted {
		if len(steps) >= 4 {
			break
		}
		if seenCategory[issue.Category] {
			continue
		}
		seenCategory[issue.Category] = true
		used[i] = true
		steps = append(steps, fmt.Sprintf("Address %s issue in %s: %s", issue.Category, issue.Path, issue.Comment))
	}

	// Backfill with further issues from busy categories when fewer than
	// three distinct categories were flagged.
	for i, issue := range sorted {
		if len(steps) >= 3 {
			break
		}
		if used[i] {
			continue
		}
		used[i] = true
		steps = append(steps, fmt.Sprintf("Address %s issue in %s: %s", issue.Category, issue.Path, issue.Comment))
	}

	if loopNumber >= loopdetectGateLoop {
		steps = append(steps, "Re-evaluate approach: the session has run long enough that incremental tweaks may no longer move the score.")
	} else if len(steps) == 0 {
		steps = append(steps, "No outstanding issues reported; verify edge cases and submit for final review.")
	}

	for _, closing := range []string{
		"Re-run the full test suite against the revised candidate.",
		"Resubmit the candidate for another audit pass.",
	} {
		if len(steps) >= 3 {
			break
		}
		steps = append(steps, closing)
	}

	if len(steps) > 5 {
		steps = steps[:5]
	}
	return steps
}

// loopdetectGateLoop mirrors pkg/loopdetect.GateLoop without importing it
// (feedback derivation only needs the threshold, not the detector).
const loopdetectGateLoop = 10
