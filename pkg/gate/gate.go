// Package gate implements the Concurrency Gate: it bounds in-flight audits
// and active sessions, queues overflow behind a bounded wait, and evicts
// idle sessions on a ticker.
package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codeready-toolchain/ganaudit/pkg/judge"
	"golang.org/x/sync/semaphore"
)

// Defaults mirror the documented resource-model table.
const (
	DefaultMaxConcurrentAudits    = 10
	DefaultMaxConcurrentSessions  = 50
	DefaultQueueTimeout           = 30 * time.Second
	DefaultSessionCleanupInterval = time.Hour
	DefaultMaxSessionAge          = 24 * time.Hour
)

// EvictIdleFunc evicts sessions idle past a threshold, returning how many
// were removed. It's the shape of pkg/session.Store.EvictIdle, injected so
// this package doesn't need to import the store directly.
type EvictIdleFunc func(maxAge time.Duration) (int, error)

// Options configures a Gate. Zero values fall back to the documented
// defaults.
type Options struct {
	MaxConcurrentAudits    int
	MaxConcurrentSessions  int
	QueueTimeout           time.Duration
	SessionCleanupInterval time.Duration
	MaxSessionAge          time.Duration
	EvictIdle              EvictIdleFunc
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrentAudits <= 0 {
		o.MaxConcurrentAudits = DefaultMaxConcurrentAudits
	}
	if o.MaxConcurrentSessions <= 0 {
		o.MaxConcurrentSessions = DefaultMaxConcurrentSessions
	}
	if o.QueueTimeout <= 0 {
		o.QueueTimeout = DefaultQueueTimeout
	}
	if o.SessionCleanupInterval <= 0 {
		o.SessionCleanupInterval = DefaultSessionCleanupInterval
	}
	if o.MaxSessionAge <= 0 {
		o.MaxSessionAge = DefaultMaxSessionAge
	}
	return o
}

// Gate bounds concurrent audits and active sessions.
type Gate struct {
	opts Options

	audits *semaphore.Weighted

	mu       sync.Mutex
	sessions map[string]time.Time // sessionID -> last-touched

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Gate and, if opts.EvictIdle is set, starts its cleanup
// ticker goroutine. Call Close to stop the ticker.
func New(opts Options) *Gate {
	opts = opts.withDefaults()
	g := &Gate{
		opts:     opts,
		audits:   semaphore.NewWeighted(int64(opts.MaxConcurrentAudits)),
		sessions: make(map[string]time.Time),
		stopCh:   make(chan struct{}),
	}
	if opts.EvictIdle != nil {
		g.wg.Add(1)
		go g.cleanupLoop()
	}
	return g
}

func (g *Gate) cleanupLoop() {
	defer g.wg.Done()
	ticker := time.NewTicker(g.opts.SessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_, _ = g.opts.EvictIdle(g.opts.MaxSessionAge)
		case <-g.stopCh:
			return
		}
	}
}

// Close stops the cleanup goroutine, if one is running.
func (g *Gate) Close() {
	g.stopOnce.Do(func() { close(g.stopCh) })
	g.wg.Wait()
}

// busyErr builds the structured "busy" error surfaced on overflow or
// queue-wait timeout.
func busyErr(reason string, retryAfter time.Duration) *judge.Error {
	return &judge.Error{
		Category:    judge.CategoryBusy,
		Severity:    judge.SeverityWarning,
		Message:     reason,
		Recoverable: true,
		Recovery:    judge.RecoveryRetry,
		Suggestions: []string{fmt.Sprintf("retry after %s", retryAfter)},
	}
}

// AcquireAudit blocks until an audit slot is free or ctx/queueTimeout
// expires, whichever comes first. The returned release func must be
// called exactly once, on every path, to free the slot.
func (g *Gate) AcquireAudit(ctx context.Context) (release func(), err error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.opts.QueueTimeout)
	defer cancel()

	if err := g.audits.Acquire(waitCtx, 1); err != nil {
		return nil, busyErr("no audit slot available within the queue-wait timeout", g.opts.QueueTimeout)
	}
	return func() { g.audits.Release(1) }, nil
}

// AdmitSession registers sessionID as active, rejecting new sessions once
// maxConcurrentSessions is reached (an already-known session is always
// re-admitted and has its last-touched time refreshed).
func (g *Gate) AdmitSession(sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.sessions[sessionID]; !ok && len(g.sessions) >= g.opts.MaxConcurrentSessions {
		return busyErr("maximum concurrent sessions reached", g.opts.SessionCleanupInterval)
	}
	g.sessions[sessionID] = time.Now()
	return nil
}

// Touch refreshes a session's last-activity time, keeping it from being
// treated as idle by the local tracking map (independent of the Session
// Store's own eviction, which is the source of truth for persistence).
func (g *Gate) Touch(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sessions[sessionID]; ok {
		g.sessions[sessionID] = time.Now()
	}
}

// Forget removes a session from the active-tracking set, e.g. once it
// completes or terminates.
func (g *Gate) Forget(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, sessionID)
}

// ActiveSessionCount reports how many sessions the gate currently tracks
// as active.
func (g *Gate) ActiveSessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}
