package loopdetect

import (
	"testing"

	"github.com/codeready-toolchain/ganaudit/pkg/judge"
	"github.com/codeready-toolchain/ganaudit/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateWithIdenticalIterations(n int, text string) *session.State {
	st := session.NewState("s1", session.DefaultConfig())
	for i := 0; i < n; i++ {
		st.Iterations = append(st.Iterations, session.Iteration{
			ThoughtNumber: i + 1,
			Candidate:     text,
			Verdict:       judge.Verdict{Overall: 50},
		})
	}
	st.CurrentLoop = n
	return st
}

func TestEvaluateGatedBelowLoop10(t *testing.T) {
	d := New()
	st := stateWithIdenticalIterations(9, "same candidate text over and over")
	assert.Nil(t, d.Evaluate(st, nil))
}

func TestEvaluateFiresAtLoop10WithIdenticalCandidates(t *testing.T) {
	d := New()
	st := stateWithIdenticalIterations(12, "same candidate text over and over")
	rec := d.Evaluate(st, nil)
	require.NotNil(t, rec)
	assert.True(t, rec.IsStagnant)
	assert.Equal(t, 12, rec.DetectedAtLoop)
	assert.Contains(t, rec.Recommendation, "stagnation detected at loop 12")
}

func TestEvaluatePreservesDetectedAtLoopAcrossRefresh(t *testing.T) {
	d := New()
	st := stateWithIdenticalIterations(12, "same candidate text over and over")
	first := d.Evaluate(st, nil)
	require.NotNil(t, first)

	st.Iterations = append(st.Iterations, session.Iteration{ThoughtNumber: 13, Candidate: "same candidate text over and over", Verdict: judge.Verdict{Overall: 50}})
	st.CurrentLoop = 13
	second := d.Evaluate(st, first)
	require.NotNil(t, second)
	assert.Equal(t, first.DetectedAtLoop, second.DetectedAtLoop)
}

func TestEvaluateNoStagnationWithVariedCandidates(t *testing.T) {
	d := New()
	st := session.NewState("s1", session.DefaultConfig())
	variants := []string{
		"package one\nfunc A() int { return 1 }",
		"package two\ntype B struct { X int }",
		"package three\nfunc C(x, y int) int { return x * y }",
	}
	for i, v := range variants {
		st.Iterations = append(st.Iterations, session.Iteration{ThoughtNumber: i + 1, Candidate: v})
	}
	for i := len(st.Iterations); i < 10; i++ {
		st.Iterations = append(st.Iterations, session.Iteration{ThoughtNumber: i + 1, Candidate: variants[i%len(variants)]})
	}
	st.CurrentLoop = len(st.Iterations)
	assert.Nil(t, d.Evaluate(st, nil))
}
