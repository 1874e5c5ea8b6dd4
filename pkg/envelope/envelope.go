// Package envelope builds the structured error envelope returned to the
// outer transport when an audit fails rather than completes: a
// diagnostic, a status code, a recoverable flag, and an optional retry
// hint, plus the last-known verdict as fallback data so the caller can
// still make progress.
package envelope

import (
	"time"

	"github.com/codeready-toolchain/ganaudit/pkg/judge"
)

// Diagnostic is the structured detail block inside an envelope.
type Diagnostic struct {
	Category    judge.Category `json:"category"`
	Severity    judge.Severity `json:"severity"`
	Message     string         `json:"message"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

// RetryInfo tells the caller whether and how to retry, present only when
// the failing error is recoverable.
type RetryInfo struct {
	CanRetry     bool `json:"canRetry"`
	RetryAfterMs int  `json:"retryAfterMs,omitempty"`
	MaxRetries   int  `json:"maxRetries,omitempty"`
}

// Envelope is the exact wire shape of the error envelope.
type Envelope struct {
	IsError      bool           `json:"isError"`
	Error        string         `json:"error"`
	Diagnostic   Diagnostic     `json:"diagnostic"`
	StatusCode   int            `json:"statusCode"`
	Recoverable  bool           `json:"recoverable"`
	RetryInfo    *RetryInfo     `json:"retryInfo,omitempty"`
	FallbackData *judge.Verdict `json:"fallback_data,omitempty"`
}

// statusCodeFor maps an error category to an HTTP-flavored status code,
// for transports that want one. Categories outside this table map to 500.
var statusCodeFor = map[judge.Category]int{
	judge.CategoryConfig:            400,
	judge.CategoryCodexNotAvailable: 503,
	judge.CategoryCodexTimeout:      504,
	judge.CategoryCodexResponse:     502,
	judge.CategoryCodexTransient:    502,
	judge.CategoryCodexFatal:        500,
	judge.CategoryFilesystem:        500,
	judge.CategorySessionCorruption: 500,
	judge.CategoryBusy:              429,
	judge.CategoryInternal:          500,
}

// retryAfterFor is the suggested backoff for a retryable category: the
// judge categories use the Judge Client's own initial retry interval
// (200ms); busy uses a fixed one-second hint.
var retryAfterFor = map[judge.Category]time.Duration{
	judge.CategoryCodexTimeout:   200 * time.Millisecond,
	judge.CategoryCodexResponse:  200 * time.Millisecond,
	judge.CategoryCodexTransient: 200 * time.Millisecond,
	judge.CategoryBusy:           time.Second,
}

// FromJudgeError builds an Envelope from a *judge.Error. FallbackData is
// the error's own partial verdict when it carries one; otherwise it is
// fallback, the caller's last-known verdict (e.g. the prior iteration's),
// when that is non-nil.
func FromJudgeError(err *judge.Error, fallback *judge.Verdict) Envelope {
	statusCode, ok := statusCodeFor[err.Category]
	if !ok {
		statusCode = 500
	}

	env := Envelope{
		IsError: true,
		Error:   err.Error(),
		Diagnostic: Diagnostic{
			Category:    err.Category,
			Severity:    err.Severity,
			Message:     err.Message,
			Suggestions: err.Suggestions,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		},
		StatusCode:  statusCode,
		Recoverable: err.Recoverable,
	}

	if err.Recoverable {
		env.RetryInfo = &RetryInfo{CanRetry: true}
		if d, ok := retryAfterFor[err.Category]; ok {
			env.RetryInfo.RetryAfterMs = int(d.Milliseconds())
		}
	}

	if err.Partial != nil {
		env.FallbackData = err.Partial
	} else if fallback != nil {
		env.FallbackData = fallback
	}

	return env
}

// FromMessage builds a generic internal-error Envelope for failures that
// never reached the judge client (e.g. session store unavailable), with
// no retry hint and no fallback data.
func FromMessage(message string) Envelope {
	return Envelope{
		IsError: true,
		Error:   message,
		Diagnostic: Diagnostic{
			Category:  judge.CategoryInternal,
			Severity:  judge.SeverityCritical,
			Message:   message,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
		StatusCode:  500,
		Recoverable: false,
	}
}
