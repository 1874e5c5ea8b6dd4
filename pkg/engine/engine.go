// Package engine implements the Audit Engine, the orchestration spine that
// resolves a session, extracts inline config, detects code presence,
// consults the cache, packs context, invokes the judge under a deadline,
// records the iteration, runs the Loop Detector and Completion Evaluator,
// and returns a structured result.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/ganaudit/pkg/cache"
	"github.com/codeready-toolchain/ganaudit/pkg/contextpack"
	"github.com/codeready-toolchain/ganaudit/pkg/evaluator"
	"github.com/codeready-toolchain/ganaudit/pkg/feedback"
	"github.com/codeready-toolchain/ganaudit/pkg/fingerprint"
	"github.com/codeready-toolchain/ganaudit/pkg/ganconfig"
	"github.com/codeready-toolchain/ganaudit/pkg/judge"
	"github.com/codeready-toolchain/ganaudit/pkg/loopdetect"
	"github.com/codeready-toolchain/ganaudit/pkg/session"
)

// sessionNamespace is a fixed namespace UUID used to derive a stable
// default session id from a working directory. The id depends on the
// working directory alone; no caller identity is mixed in.
var sessionNamespace = uuid.MustParse("6f6a6e4e-6e61-4c5f-9a1c-2a6f2c9c9b10")

// DeriveSessionID returns the stable default session id for workDir, used
// whenever a thought omits an explicit session hint.
func DeriveSessionID(workDir string) string {
	return uuid.NewSHA1(sessionNamespace, []byte(workDir)).String()
}

// Hooks are optional observation callbacks the engine invokes around an
// audit, replacing the need for callers to poll. All are optional.
type Hooks struct {
	OnAuditStarted      func(sessionID string, thoughtNumber int)
	OnAuditCompleted    func(sessionID string, result Result)
	OnSessionTerminated func(sessionID string, reason session.CompletionReason, atLoop int)
}

// Engine wires together every collaborator into the single end-to-end
// operation auditAndWait.
type Engine struct {
	Store *session.Store
	// Cache is the Audit Cache; nil disables caching entirely.
	Cache    *cache.Cache
	Judge    judge.Client
	Packer   contextpack.Packer
	Detector *loopdetect.Detector

	// DefaultConfig seeds brand-new sessions.
	DefaultConfig session.Config
	// WorkDir is the root the Context Packer and default-session
	// derivation both operate against.
	WorkDir string

	// AuditTimeout bounds the whole judge invocation step (the "audit
	// timeout" option, default 30s).
	AuditTimeout time.Duration
	// ProgressInterval is the heartbeat cadence while awaiting the judge
	// (default 5s).
	ProgressInterval time.Duration
	// TimeoutRetryAttempts bounds additional judge invocations after a
	// judge timeout (with or without a partial verdict), beyond the Judge
	// Client's own transient-retry policy (default 1).
	TimeoutRetryAttempts int
	// CacheTTL is the duration new cache entries are stored for.
	CacheTTL time.Duration

	Hooks Hooks
}

// New builds an Engine with the documented defaults for any zero-valued
// timing fields.
func New(store *session.Store, c *cache.Cache, j judge.Client, packer contextpack.Packer, workDir string) *Engine {
	return &Engine{
		Store:                store,
		Cache:                c,
		Judge:                j,
		Packer:               packer,
		Detector:             loopdetect.New(),
		DefaultConfig:        session.DefaultConfig(),
		WorkDir:              workDir,
		AuditTimeout:         30 * time.Second,
		ProgressInterval:     5 * time.Second,
		TimeoutRetryAttempts: 1,
		CacheTTL:             10 * time.Minute,
	}
}

// autoPassVerdict is the short-circuit verdict returned when a thought
// carries no detectable code candidate.
func autoPassVerdict() judge.Verdict {
	return judge.Verdict{Overall: 100, Verdict: judge.VerdictPass}
}

// AuditAndWait is the Audit Engine's single entry point: conceptually
// `auditAndWait(thought, sessionIdHint?) → Result`.
func (e *Engine) AuditAndWait(ctx context.Context, thought Thought) Result {
	sessionID := thought.SessionID
	if sessionID == "" {
		sessionID = DeriveSessionID(e.WorkDir)
	}

	if e.Hooks.OnAuditStarted != nil {
		e.Hooks.OnAuditStarted(sessionID, thought.ThoughtNumber)
	}

	start := time.Now()
	result := e.runAudit(ctx, sessionID, thought)
	result.DurationMs = time.Since(start).Milliseconds()

	if e.Hooks.OnAuditCompleted != nil {
		e.Hooks.OnAuditCompleted(sessionID, result)
	}
	if result.Termination != nil && e.Hooks.OnSessionTerminated != nil {
		e.Hooks.OnSessionTerminated(sessionID, result.Termination.Reason, result.Termination.AtLoop)
	}
	return result
}

func (e *Engine) runAudit(ctx context.Context, sessionID string, thought Thought) Result {
	// Step 1/2: resolve session, extract and merge inline config.
	st, corruption, err := e.Store.GetOrCreate(sessionID, e.DefaultConfig)
	if err != nil {
		return errorResult(sessionID, fmt.Sprintf("session store unavailable: %v", err))
	}
	if corruption != nil {
		slog.Warn("recovered from corrupted session file", "session_id", sessionID, "archive", corruption.ArchivePath)
	}

	snap := st.Clone()
	if snap.IsComplete {
		return e.completedResult(snap)
	}

	cfgResult := ganconfig.Extract(thought.Text, snap.Config)
	for _, w := range cfgResult.Warnings {
		slog.Warn("inline config warning", "session_id", sessionID, "warning", w)
	}
	effectiveConfig := cfgResult.Config
	if cfgResult.Found {
		if _, uerr := e.Store.UpdateConfig(sessionID, effectiveConfig); uerr != nil {
			slog.Warn("failed to persist updated session config", "session_id", sessionID, "error", uerr)
		}
	}

	// Step 3: detect code presence; auto-pass with no judge call if absent.
	candidate, hasCode := extractCandidate(thought.Text)
	if !hasCode {
		return e.recordAndRespond(sessionID, thought, "", autoPassVerdict(), effectiveConfig)
	}

	// Step 4: fingerprint + cache lookup.
	fp := fingerprint.Compute(fingerprint.Input{
		PromptTemplate: effectiveConfig.Task,
		Candidate:      candidate,
		Rubric:         judge.StandardRubric(),
		ConfigSubset:   configSubset(effectiveConfig),
	})

	var verdict judge.Verdict
	var callErr error
	if e.Cache != nil {
		verdict, _, callErr = e.Cache.GetOrCompute(fp, e.CacheTTL, func() (judge.Verdict, error) {
			return e.invokeJudge(ctx, effectiveConfig, thought.Text, candidate)
		})
	} else {
		// Caching disabled: every audit invokes the judge fresh.
		verdict, callErr = e.invokeJudge(ctx, effectiveConfig, thought.Text, candidate)
	}

	if callErr != nil {
		if jerr, ok := callErr.(*judge.Error); ok {
			if jerr.Category == judge.CategoryCodexTimeout && jerr.Partial != nil {
				// Step 8: timeout-with-partial still records an iteration.
				return e.recordAndRespond(sessionID, thought, candidate, *jerr.Partial, effectiveConfig)
			}
			// Judge fatal error: no iteration appended, session untouched.
			return judgeErrorResult(sessionID, jerr)
		}
		return errorResult(sessionID, callErr.Error())
	}

	return e.recordAndRespond(sessionID, thought, candidate, verdict, effectiveConfig)
}

// invokeJudge runs steps 5-8: context pack, judge call under the audit
// deadline with a progress heartbeat, and a bounded timeout-retry loop.
func (e *Engine) invokeJudge(ctx context.Context, cfg session.Config, thoughtText, candidate string) (judge.Verdict, error) {
	pack := e.Packer.Pack(ctx, cfg, e.WorkDir)
	if pack.Fallback {
		slog.Warn("context pack fell back", "note", pack.Note)
	}

	req := judge.Request{
		Task:        cfg.Task,
		Candidate:   candidate,
		ContextPack: pack.Text,
		Rubric:      judge.StandardRubric(),
		Budget:      judge.Budget{MaxCycles: cfg.MaxCycles, Candidates: cfg.Candidates, Threshold: cfg.Threshold},
	}

	attempts := 1 + e.TimeoutRetryAttempts
	var lastErr *judge.Error
	var lastVerdict judge.Verdict
	for attempt := 0; attempt < attempts; attempt++ {
		verdict, callErr := e.callWithHeartbeat(ctx, req)
		if callErr == nil {
			return verdict, nil
		}
		lastErr = callErr
		lastVerdict = verdict
		if callErr.Category != judge.CategoryCodexTimeout {
			return judge.Verdict{}, callErr
		}
		// Timeout: loop again only if a retry attempt remains.
	}
	if lastErr != nil && lastErr.Partial != nil {
		return *lastErr.Partial, lastErr
	}
	return lastVerdict, lastErr
}

// callWithHeartbeat runs one judge call under AuditTimeout, logging a
// progress line every ProgressInterval while it's in flight.
func (e *Engine) callWithHeartbeat(ctx context.Context, req judge.Request) (judge.Verdict, *judge.Error) {
	callCtx, cancel := context.WithTimeout(ctx, e.AuditTimeout)
	defer cancel()

	type outcome struct {
		verdict judge.Verdict
		err     *judge.Error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := e.Judge.Execute(callCtx, req)
		done <- outcome{v, err}
	}()

	interval := e.ProgressInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	elapsed := time.Duration(0)
	for {
		select {
		case out := <-done:
			return out.verdict, out.err
		case <-ticker.C:
			elapsed += interval
			slog.Info("awaiting judge response", "elapsed", elapsed)
		}
	}
}

// recordAndRespond implements steps 7 and 9-13: normalize/cache already
// happened upstream for judge-produced verdicts; this persists the
// iteration, runs the Loop Detector and Completion Evaluator, persists any
// completion/termination, and builds the structured Result. candidate is
// the extracted code text (empty on auto-pass), not the whole thought —
// the similarity window measures the code the model resubmits, so padding
// the same candidate with fresh prose must not mask stagnation.
func (e *Engine) recordAndRespond(sessionID string, thought Thought, candidate string, verdict judge.Verdict, cfg session.Config) Result {
	it := session.Iteration{ThoughtNumber: thought.ThoughtNumber, Candidate: candidate, Verdict: verdict}
	st, err := e.Store.AppendIteration(sessionID, it)
	if err != nil {
		slog.Warn("session persistence failed, returning verdict without recording iteration", "session_id", sessionID, "error", err)
		return Result{
			Success:           true,
			SessionID:         sessionID,
			Verdict:           verdict,
			Feedback:          feedback.Derive(verdict, 0),
			CompletionStatus:  session.ReasonInProgress,
			NextThoughtNeeded: true,
		}
	}

	snap := st.Clone()

	stagnation := e.Detector.Evaluate(snap, snap.Stagnation)
	if stagnation != nil {
		if st, rerr := e.Store.RecordStagnation(sessionID, *stagnation); rerr == nil {
			snap = st.Clone()
		}
	}

	decision := evaluator.Evaluate(verdict.Overall, snap.CurrentLoop, snap.Stagnation)

	var termination *TerminationInfo
	if decision.Terminated {
		assessment := evaluator.ShouldTerminate(snap)
		if st, rerr := e.Store.RecordTermination(sessionID, decision.Reason, assessment.FailureRate, assessment.FinalAssessment); rerr == nil {
			snap = st.Clone()
		}
		termination = &TerminationInfo{
			Reason:          decision.Reason,
			AtLoop:          snap.CurrentLoop,
			FailureRate:     assessment.FailureRate,
			FinalAssessment: assessment.FinalAssessment,
		}
	} else if decision.Complete {
		if st, rerr := e.Store.RecordCompletion(sessionID, decision.Reason); rerr == nil {
			snap = st.Clone()
		}
	}

	isStagnant := snap.Stagnation != nil && snap.Stagnation.IsStagnant

	return Result{
		Success:           true,
		SessionID:         sessionID,
		Verdict:           verdict,
		Feedback:          feedback.Derive(verdict, snap.CurrentLoop),
		CompletionStatus:  decision.Reason,
		NextThoughtNeeded: decision.NextThoughtNeeded,
		LoopInfo: LoopInfo{
			CurrentLoop:        snap.CurrentLoop,
			MaxCycles:          cfg.MaxCycles,
			StagnationDetected: isStagnant,
		},
		Termination: termination,
	}
}

// completedResult builds a Result for a thought submitted against a
// session that already finished; no new iteration is appended (the
// invariant: once isComplete, no further iterations).
func (e *Engine) completedResult(snap *session.State) Result {
	var termination *TerminationInfo
	if snap.Termination != nil {
		termination = &TerminationInfo{
			Reason:          snap.Termination.Reason,
			AtLoop:          snap.Termination.AtLoop,
			FailureRate:     snap.Termination.FailureRate,
			FinalAssessment: snap.Termination.FinalAssessment,
		}
	}
	verdict := judge.Verdict{}
	if snap.LastVerdict != nil {
		verdict = *snap.LastVerdict
	}
	return Result{
		Success:           true,
		SessionID:         snap.ID,
		Verdict:           verdict,
		Feedback:          feedback.Derive(verdict, snap.CurrentLoop),
		CompletionStatus:  snap.CompletionReason,
		NextThoughtNeeded: false,
		LoopInfo:          LoopInfo{CurrentLoop: snap.CurrentLoop, MaxCycles: snap.Config.MaxCycles, StagnationDetected: snap.Stagnation != nil && snap.Stagnation.IsStagnant},
		Termination:       termination,
	}
}

func errorResult(sessionID, msg string) Result {
	return Result{Success: false, SessionID: sessionID, Error: msg, CompletionStatus: session.ReasonInProgress, NextThoughtNeeded: true}
}

// judgeErrorResult preserves the structured judge error alongside the flat
// message so the transport layer can build a category-accurate envelope.
func judgeErrorResult(sessionID string, jerr *judge.Error) Result {
	r := errorResult(sessionID, jerr.Error())
	r.JudgeError = jerr
	return r
}

// configSubset renders the workflow configuration fields that affect
// judge behavior as stable key=value pairs, for the Fingerprinter.
func configSubset(cfg session.Config) map[string]string {
	return map[string]string{
		"scope":      string(cfg.Scope),
		"threshold":  fmt.Sprint(cfg.Threshold),
		"maxCycles":  fmt.Sprint(cfg.MaxCycles),
		"candidates": fmt.Sprint(cfg.Candidates),
		"judges":     fmt.Sprint(cfg.Judges),
		"applyFixes": fmt.Sprint(cfg.ApplyFixes),
	}
}
