// Package config loads and validates the ambient system configuration for
// the audit orchestrator: judge invocation, concurrency limits, timeouts,
// and state directory location. Configuration comes from built-in
// defaults, an optional ganaudit.yaml, an optional .env file, and
// environment-variable overrides, in that precedence order.
package config

import (
	"strings"
	"time"
)

// System is the fully resolved, ready-to-use configuration for one
// orchestrator process. Immutable after Initialize returns — hot-reload is
// out of scope.
type System struct {
	configDir string

	// StateDir is where per-session JSON files live.
	StateDir string `yaml:"state_dir" validate:"required"`

	// AuditTimeout bounds a single audit's total wall-clock time (context
	// packing + judge call + persistence).
	AuditTimeout time.Duration `yaml:"-"`
	// AuditTimeoutSeconds is the YAML-facing form of AuditTimeout.
	AuditTimeoutSeconds int `yaml:"audit_timeout_seconds" validate:"gt=0"`

	// ProgressIndicatorInterval is the heartbeat cadence while awaiting the judge.
	ProgressIndicatorInterval time.Duration `yaml:"-"`
	ProgressIndicatorMillis   int           `yaml:"progress_indicator_interval_ms" validate:"gt=0"`

	MaxConcurrentAudits   int `yaml:"max_concurrent_audits" validate:"gte=1"`
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions" validate:"gte=1"`

	QueueTimeout       time.Duration `yaml:"-"`
	QueueTimeoutMillis int           `yaml:"queue_timeout_ms" validate:"gt=0"`

	SessionCleanupInterval       time.Duration `yaml:"-"`
	SessionCleanupIntervalMillis int           `yaml:"session_cleanup_interval_ms" validate:"gt=0"`

	MaxSessionAge       time.Duration `yaml:"-"`
	MaxSessionAgeMillis int           `yaml:"max_session_age_ms" validate:"gt=0"`

	EnableCaching            bool `yaml:"enable_caching"`
	EnableSessionPersistence bool `yaml:"enable_session_persistence"`

	// JudgeExecutable is the reviewer process path ("codex" by default).
	JudgeExecutable string `yaml:"judge_executable" validate:"required"`
	JudgeRetries    int    `yaml:"judge_retries" validate:"gte=0"`

	// JudgeTimeout bounds a single invocation of the judge subprocess.
	JudgeTimeout        time.Duration `yaml:"-"`
	JudgeTimeoutSeconds int           `yaml:"judge_timeout_seconds" validate:"gt=0"`

	// CacheTTL is the Audit Cache's default entry lifetime.
	CacheTTL        time.Duration `yaml:"-"`
	CacheTTLSeconds int           `yaml:"cache_ttl_seconds" validate:"gte=0"`

	// ContextPackCharCap and ContextPackFileCapBytes bound the Context
	// Packer's output.
	ContextPackCharCap      int `yaml:"context_pack_char_cap" validate:"gt=0"`
	ContextPackFileCapBytes int `yaml:"context_pack_file_cap_bytes" validate:"gt=0"`
}

// ConfigDir returns the directory configuration was loaded from.
func (s *System) ConfigDir() string { return s.configDir }

// ParseBool recognizes only the exact strings "true"/"false"
// (case-insensitive); anything else (including an empty string) is false.
func ParseBool(raw string) bool {
	return strings.EqualFold(raw, "true")
}
