// Package evaluator implements the Completion Evaluator: a pure decision
// function over (score, loop number, stagnation) that decides whether an
// audit session is complete, terminated, or must continue.
package evaluator

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/ganaudit/pkg/session"
)

// Decision is the Completion Evaluator's verdict for one evaluation.
type Decision struct {
	Reason            session.CompletionReason
	Complete          bool
	Terminated        bool
	NextThoughtNeeded bool
}

// Evaluate applies the completion decision table top-to-bottom; the first
// matching row wins. The loop-25 hard stop is the first row, so it applies
// whatever the score. stagnation may be nil (no record yet).
func Evaluate(score, loopNumber int, stagnation *session.StagnationRecord) Decision {
	switch {
	case loopNumber >= 25:
		return Decision{Reason: session.ReasonMaxLoops, Complete: true, Terminated: true, NextThoughtNeeded: false}
	case score >= 95 && loopNumber >= 10:
		return Decision{Reason: session.ReasonScore95At10, Complete: true, NextThoughtNeeded: false}
	case score >= 90 && loopNumber >= 15:
		return Decision{Reason: session.ReasonScore90At15, Complete: true, NextThoughtNeeded: false}
	case score >= 85 && loopNumber >= 20:
		return Decision{Reason: session.ReasonScore85At20, Complete: true, NextThoughtNeeded: false}
	case stagnation != nil && stagnation.IsStagnant && stagnation.DetectedAtLoop >= 10:
		return Decision{Reason: session.ReasonStagnation, Complete: true, Terminated: true, NextThoughtNeeded: false}
	default:
		return Decision{Reason: session.ReasonInProgress, Complete: false, NextThoughtNeeded: true}
	}
}

// TerminationAssessment is shouldTerminate's structured result.
type TerminationAssessment struct {
	ShouldTerminate bool
	Reason          session.CompletionReason
	FailureRate     float64
	FinalAssessment string
}

// ShouldTerminate inspects a full session snapshot and reports whether it
// should stop, the fraction of iterations that did not pass, and a
// human-readable trajectory summary.
func ShouldTerminate(st *session.State) TerminationAssessment {
	decision := Evaluate(overallOf(st), st.CurrentLoop, st.Stagnation)

	var notPassed int
	bestScore := 0
	criticalIssues := 0
	for _, it := range st.Iterations {
		if it.Verdict.Verdict != "pass" {
			notPassed++
		}
		if it.Verdict.Overall > bestScore {
			bestScore = it.Verdict.Overall
		}
		for _, comment := range it.Verdict.Review.Inline {
			if containsCriticalHint(comment.Comment) {
				criticalIssues++
			}
		}
	}

	var failureRate float64
	if len(st.Iterations) > 0 {
		failureRate = float64(notPassed) / float64(len(st.Iterations))
	}

	avgImprovement := averageImprovement(st)

	summary := fmt.Sprintf(
		"after %d loops, best score %d, average improvement %.1f per iteration, %d critical issue(s) flagged; decision: %s",
		st.CurrentLoop, bestScore, avgImprovement, criticalIssues, decision.Reason,
	)

	return TerminationAssessment{
		ShouldTerminate: decision.Complete,
		Reason:          decision.Reason,
		FailureRate:     failureRate,
		FinalAssessment: summary,
	}
}

func overallOf(st *session.State) int {
	if st.LastVerdict == nil {
		return 0
	}
	return st.LastVerdict.Overall
}

func averageImprovement(st *session.State) float64 {
	if len(st.Iterations) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(st.Iterations); i++ {
		sum += float64(st.Iterations[i].Verdict.Overall - st.Iterations[i-1].Verdict.Overall)
	}
	return sum / float64(len(st.Iterations)-1)
}

func containsCriticalHint(comment string) bool {
	lower := strings.ToLower(comment)
	for _, kw := range []string{"critical", "blocker", "must fix", "security vulnerability"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
