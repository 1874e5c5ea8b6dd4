package judge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client invokes an external reviewer process and returns a structured
// Verdict, per the judge wire protocol.
type Client interface {
	Execute(ctx context.Context, req Request) (Verdict, *Error)
}

// SubprocessClient spawns the configured executable for each call, feeding
// it the request on stdin and reading a single JSON verdict from stdout.
type SubprocessClient struct {
	Executable string
	Retries    int
	Timeout    time.Duration
	// WorkDir is the subprocess's working directory; empty uses the
	// caller's own.
	WorkDir string
	// Env, when non-nil, overrides the subprocess environment entirely
	// (nil inherits the orchestrator's environment).
	Env []string
	// Args are appended after Executable, letting the orchestrator's own
	// binary be reused as the judge (e.g. "judge stub") instead of always
	// shelling out to a separate executable.
	Args []string
}

// NewSubprocessClient builds a client from the ambient configuration.
func NewSubprocessClient(executable string, retries int, timeout time.Duration) *SubprocessClient {
	return &SubprocessClient{Executable: executable, Retries: retries, Timeout: timeout}
}

// Execute validates the request, locates the executable, runs it under a
// deadline with retry-on-transient, parses with greedy fallback, then
// normalizes the result.
func (c *SubprocessClient) Execute(ctx context.Context, req Request) (Verdict, *Error) {
	if err := validateRequest(req); err != nil {
		return Verdict{}, err.(*Error)
	}

	path, lookErr := exec.LookPath(c.Executable)
	if lookErr != nil {
		return Verdict{}, newNotAvailable(c.Executable, lookErr)
	}

	var lastErr *Error
	attempt := 0
	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.InitialInterval = 200 * time.Millisecond
	retryPolicy.MaxInterval = 3 * time.Second
	retryPolicy.Multiplier = 2.0
	retryPolicy.RandomizationFactor = 0.3

	for {
		if ctx.Err() != nil {
			if !errors.Is(ctx.Err(), context.Canceled) && lastErr != nil && lastErr.Partial != nil {
				return *lastErr.Partial, lastErr
			}
			return Verdict{}, newCancelled()
		}

		verdict, runErr := c.runOnce(ctx, path, req)
		if runErr == nil {
			verdict.Normalize()
			return verdict, nil
		}

		lastErr = runErr
		if errors.Is(ctx.Err(), context.Canceled) {
			return Verdict{}, newCancelled()
		}
		if !runErr.Recoverable || runErr.Recovery != RecoveryRetry {
			return Verdict{}, runErr
		}
		if attempt >= c.Retries {
			return Verdict{}, runErr
		}

		wait := retryPolicy.NextBackOff()
		slog.Warn("retrying judge invocation", "attempt", attempt+1, "category", runErr.Category, "wait", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			// The caller's deadline can expire together with the per-call
			// one (they default to the same duration); a deadline expiry
			// must not discard a partial verdict runOnce just recovered.
			if !errors.Is(ctx.Err(), context.Canceled) && lastErr.Partial != nil {
				return *lastErr.Partial, lastErr
			}
			return Verdict{}, newCancelled()
		case <-timer.C:
		}
		attempt++
	}
}

// runOnce runs exactly one subprocess invocation under its own deadline.
func (c *SubprocessClient) runOnce(ctx context.Context, path string, req Request) (Verdict, *Error) {
	callCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, path, c.Args...)
	if c.WorkDir != "" {
		cmd.Dir = c.WorkDir
	}
	if c.Env != nil {
		cmd.Env = c.Env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Verdict{}, newFatal(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Verdict{}, newFatal(err)
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return Verdict{}, newNotAvailable(c.Executable, err)
	}

	payload, err := marshalRequest(req)
	if err != nil {
		_ = cmd.Process.Kill()
		return Verdict{}, newFatal(err)
	}

	writeErrCh := make(chan error, 1)
	go func() {
		_, werr := stdin.Write(payload)
		_ = stdin.Close()
		writeErrCh <- werr
	}()

	out, readErr := io.ReadAll(stdout)
	<-writeErrCh

	waitErr := cmd.Wait()

	if callCtx.Err() != nil {
		// Deadline fired (or outer cancellation): try to salvage a
		// partial verdict from whatever stdout produced so far.
		if partial, perr := parseVerdict(out); perr == nil {
			partial.TimedOut = true
			partial.CompletionPercentage = completionFraction(partial)
			if partial.Overall == 0 && len(partial.Dimensions) > 0 {
				partial.Overall = weightedOverall(partial.Dimensions, req.Rubric)
			}
			partial.Normalize()
			return partial, newTimeout(&partial)
		}
		return Verdict{}, newTimeout(nil)
	}

	if readErr != nil {
		return Verdict{}, newTransient(readErr)
	}

	if waitErr != nil {
		stderrText := stderrBuf.String()
		if isTransientStderr(stderrText) {
			return Verdict{}, newTransient(errors.New(stderrText))
		}
		return Verdict{}, newFatal(errors.New(stderrText))
	}

	verdict, perr := parseVerdict(out)
	if perr != nil {
		return Verdict{}, newResponse(perr)
	}
	return verdict, nil
}

// weightedOverall derives an overall score from whichever dimensions a
// partial verdict managed to score, weighted by the request's rubric.
// Dimensions the rubric doesn't name contribute nothing; if no scored
// dimension matches a rubric entry the overall stays undetermined (0).
func weightedOverall(dims []Dimension, rubric Rubric) int {
	weights := make(map[string]float64, len(rubric.Dimensions))
	for _, rd := range rubric.Dimensions {
		weights[rd.Name] = rd.Weight
	}
	var sum, totalWeight float64
	for _, d := range dims {
		w, ok := weights[d.Name]
		if !ok {
			continue
		}
		sum += float64(d.Score) * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return int(sum/totalWeight + 0.5)
}

// completionFraction estimates how much of the standard rubric a partial
// verdict actually scored, for the timeout-with-partial path.
func completionFraction(v Verdict) float64 {
	expected := len(StandardRubric().Dimensions)
	if expected == 0 {
		return 0
	}
	got := len(v.Dimensions)
	if got > expected {
		got = expected
	}
	return float64(got) / float64(expected)
}
