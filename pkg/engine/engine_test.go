package engine

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/ganaudit/pkg/cache"
	"github.com/codeready-toolchain/ganaudit/pkg/contextpack"
	"github.com/codeready-toolchain/ganaudit/pkg/judge"
	"github.com/codeready-toolchain/ganaudit/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJudge struct {
	calls   int
	verdict judge.Verdict
	err     *judge.Error
}

func (f *fakeJudge) Execute(ctx context.Context, req judge.Request) (judge.Verdict, *judge.Error) {
	f.calls++
	return f.verdict, f.err
}

type fakePacker struct{}

func (fakePacker) Pack(ctx context.Context, cfg session.Config, workDir string) contextpack.Pack {
	return contextpack.Pack{Text: "context"}
}

func newTestEngine(t *testing.T, j judge.Client) *Engine {
	t.Helper()
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	c, err := cache.New(16, time.Minute)
	require.NoError(t, err)
	e := New(store, c, j, fakePacker{}, t.TempDir())
	e.ProgressInterval = time.Hour // never fires during fast tests
	return e
}

func TestAuditAndWaitAutoPassesWithoutCodeBlock(t *testing.T) {
	j := &fakeJudge{}
	e := newTestEngine(t, j)

	result := e.AuditAndWait(context.Background(), Thought{Text: "just thinking out loud", ThoughtNumber: 1, SessionID: "sess-1"})

	assert.True(t, result.Success)
	assert.Equal(t, 100, result.Verdict.Overall)
	assert.Equal(t, judge.VerdictPass, result.Verdict.Verdict)
	assert.Equal(t, 0, j.calls, "auto-pass must never call the judge")
}

func TestAuditAndWaitInvokesJudgeForCodeCandidate(t *testing.T) {
	j := &fakeJudge{verdict: judge.Verdict{Overall: 70, Verdict: judge.VerdictRevise}}
	e := newTestEngine(t, j)

	thought := Thought{Text: "```go\nfunc f() {}\n```", ThoughtNumber: 1, SessionID: "sess-2"}
	result := e.AuditAndWait(context.Background(), thought)

	assert.True(t, result.Success)
	assert.Equal(t, 70, result.Verdict.Overall)
	assert.Equal(t, 1, j.calls)
	assert.Equal(t, 1, result.LoopInfo.CurrentLoop)
	assert.True(t, result.NextThoughtNeeded)
}

func TestAuditAndWaitSecondIdenticalCallIsCacheHit(t *testing.T) {
	j := &fakeJudge{verdict: judge.Verdict{Overall: 80, Verdict: judge.VerdictRevise}}
	e := newTestEngine(t, j)

	thought := Thought{Text: "```go\nfunc f() { return }\n```", ThoughtNumber: 1, SessionID: "sess-3"}
	first := e.AuditAndWait(context.Background(), thought)
	require.True(t, first.Success)

	thought2 := Thought{Text: thought.Text, ThoughtNumber: 2, SessionID: "sess-3"}
	second := e.AuditAndWait(context.Background(), thought2)

	require.True(t, second.Success)
	assert.Equal(t, 1, j.calls, "identical candidate should hit the cache, not re-invoke the judge")
	assert.True(t, second.Verdict.Cached)
	assert.Less(t, second.DurationMs, int64(100), "a cache hit never waits on the judge")
}

func TestAuditAndWaitFatalJudgeErrorDoesNotAppendIteration(t *testing.T) {
	j := &fakeJudge{err: &judge.Error{Category: judge.CategoryCodexFatal, Message: "boom", Recoverable: false}}
	e := newTestEngine(t, j)

	thought := Thought{Text: "```go\nfunc g() {}\n```", ThoughtNumber: 1, SessionID: "sess-4"}
	result := e.AuditAndWait(context.Background(), thought)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	require.NotNil(t, result.JudgeError, "the structured judge error must survive for the transport's envelope")
	assert.Equal(t, judge.CategoryCodexFatal, result.JudgeError.Category)

	snap := e.Store.Snapshot("sess-4")
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.CurrentLoop)
}

func TestAuditAndWaitStoresExtractedCandidateNotWholeThought(t *testing.T) {
	j := &fakeJudge{verdict: judge.Verdict{Overall: 70, Verdict: judge.VerdictRevise}}
	e := newTestEngine(t, j)

	thought := Thought{
		Text:          "Some reasoning prose before the code.\n```go\nfunc f() {}\n```\nAnd a closing remark.",
		ThoughtNumber: 1,
		SessionID:     "sess-11",
	}
	result := e.AuditAndWait(context.Background(), thought)
	require.True(t, result.Success)

	snap := e.Store.Snapshot("sess-11")
	require.NotNil(t, snap)
	require.Len(t, snap.Iterations, 1)
	assert.Equal(t, "func f() {}", snap.Iterations[0].Candidate,
		"the similarity window must see the code, not the surrounding prose")
}

func TestAuditAndWaitHardStopPopulatesTerminationAssessment(t *testing.T) {
	j := &fakeJudge{verdict: judge.Verdict{Overall: 60, Verdict: judge.VerdictRevise}}
	e := newTestEngine(t, j)

	sessionID := "sess-12"
	_, _, err := e.Store.GetOrCreate(sessionID, e.DefaultConfig)
	require.NoError(t, err)
	for i := 1; i <= 24; i++ {
		_, err := e.Store.AppendIteration(sessionID, session.Iteration{
			ThoughtNumber: i,
			Candidate:     "func variant" + string(rune('a'+i)) + "() {}",
			Verdict:       judge.Verdict{Overall: 60, Verdict: judge.VerdictRevise},
		})
		require.NoError(t, err)
	}

	result := e.AuditAndWait(context.Background(), Thought{Text: "```go\nfunc last() {}\n```", ThoughtNumber: 25, SessionID: sessionID})

	require.True(t, result.Success)
	assert.Equal(t, session.ReasonMaxLoops, result.CompletionStatus)
	assert.False(t, result.NextThoughtNeeded)
	require.NotNil(t, result.Termination)
	assert.Equal(t, 25, result.Termination.AtLoop)
	assert.GreaterOrEqual(t, result.Termination.FailureRate, 0.96)
	assert.Contains(t, result.Termination.FinalAssessment, "25 loops")
}

func TestAuditAndWaitTimeoutWithPartialStillAppendsIteration(t *testing.T) {
	partial := judge.Verdict{Overall: 40, Verdict: judge.VerdictRevise, TimedOut: true}
	j := &fakeJudge{err: &judge.Error{Category: judge.CategoryCodexTimeout, Recoverable: true, Partial: &partial}}
	e := newTestEngine(t, j)
	e.TimeoutRetryAttempts = 0

	thought := Thought{Text: "```go\nfunc h() {}\n```", ThoughtNumber: 1, SessionID: "sess-5"}
	result := e.AuditAndWait(context.Background(), thought)

	assert.True(t, result.Success)
	assert.Equal(t, 40, result.Verdict.Overall)
	snap := e.Store.Snapshot("sess-5")
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.CurrentLoop)
}

func TestAuditAndWaitCompletesAtScore95Loop10(t *testing.T) {
	j := &fakeJudge{verdict: judge.Verdict{Overall: 96, Verdict: judge.VerdictPass}}
	e := newTestEngine(t, j)

	sessionID := "sess-6"
	var result Result
	for i := 1; i <= 10; i++ {
		// vary candidate text so each call misses the cache and appends a
		// fresh iteration, advancing currentLoop.
		text := "```go\nfunc variant" + string(rune('a'+i)) + "() {}\n```"
		result = e.AuditAndWait(context.Background(), Thought{Text: text, ThoughtNumber: i, SessionID: sessionID})
	}

	assert.Equal(t, session.ReasonScore95At10, result.CompletionStatus)
	assert.False(t, result.NextThoughtNeeded)
}

func TestAuditAndWaitOnAlreadyCompletedSessionSkipsJudge(t *testing.T) {
	j := &fakeJudge{verdict: judge.Verdict{Overall: 96, Verdict: judge.VerdictPass}}
	e := newTestEngine(t, j)

	sessionID := "sess-7"
	for i := 1; i <= 10; i++ {
		text := "```go\nfunc variant" + string(rune('a'+i)) + "() {}\n```"
		e.AuditAndWait(context.Background(), Thought{Text: text, ThoughtNumber: i, SessionID: sessionID})
	}
	callsBefore := j.calls

	result := e.AuditAndWait(context.Background(), Thought{Text: "```go\nfunc more() {}\n```", ThoughtNumber: 11, SessionID: sessionID})

	assert.Equal(t, callsBefore, j.calls, "completed session must not invoke the judge again")
	assert.False(t, result.NextThoughtNeeded)
}

func TestAuditAndWaitPersistsInlineConfig(t *testing.T) {
	j := &fakeJudge{verdict: judge.Verdict{Overall: 70, Verdict: judge.VerdictRevise}}
	e := newTestEngine(t, j)

	text := "```gan-config\n{\"threshold\": 92, \"task\": \"harden the parser\"}\n```\n```go\nfunc f() {}\n```"
	result := e.AuditAndWait(context.Background(), Thought{Text: text, ThoughtNumber: 1, SessionID: "sess-8"})

	require.True(t, result.Success)
	assert.Equal(t, 1, j.calls, "the code block after the config fence is still a candidate")

	snap := e.Store.Snapshot("sess-8")
	require.NotNil(t, snap)
	assert.Equal(t, 92, snap.Config.Threshold)
	assert.Equal(t, "harden the parser", snap.Config.Task)
}

func TestAuditAndWaitConfigOnlyThoughtAutoPasses(t *testing.T) {
	j := &fakeJudge{}
	e := newTestEngine(t, j)

	text := "```gan-config\n{\"threshold\": 90}\n```"
	result := e.AuditAndWait(context.Background(), Thought{Text: text, ThoughtNumber: 1, SessionID: "sess-9"})

	require.True(t, result.Success)
	assert.Equal(t, 100, result.Verdict.Overall)
	assert.Equal(t, 0, j.calls, "a config-only thought carries no candidate to judge")
}

func TestAuditAndWaitWithNilCacheInvokesJudgeEveryTime(t *testing.T) {
	j := &fakeJudge{verdict: judge.Verdict{Overall: 75, Verdict: judge.VerdictRevise}}
	e := newTestEngine(t, j)
	e.Cache = nil

	thought := Thought{Text: "```go\nfunc f() {}\n```", ThoughtNumber: 1, SessionID: "sess-10"}
	first := e.AuditAndWait(context.Background(), thought)
	require.True(t, first.Success)
	second := e.AuditAndWait(context.Background(), Thought{Text: thought.Text, ThoughtNumber: 2, SessionID: "sess-10"})
	require.True(t, second.Success)

	assert.Equal(t, 2, j.calls)
	assert.False(t, second.Verdict.Cached)
}

func TestDeriveSessionIDIsStableForSameWorkDir(t *testing.T) {
	a := DeriveSessionID("/tmp/project")
	b := DeriveSessionID("/tmp/project")
	c := DeriveSessionID("/tmp/other")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
