package config

import "time"

// Default values for every recognized ambient configuration option.
const (
	DefaultStateDir                     = ".mcp-gan-state"
	DefaultAuditTimeoutSeconds          = 30
	DefaultProgressIndicatorMillis      = 5_000
	DefaultMaxConcurrentAudits          = 10
	DefaultMaxConcurrentSessions        = 50
	DefaultQueueTimeoutMillis           = 30_000
	DefaultSessionCleanupIntervalMillis = 3_600_000
	DefaultMaxSessionAgeMillis          = 86_400_000
	DefaultEnableCaching                = true
	DefaultEnableSessionPersistence     = true
	DefaultJudgeExecutable              = "codex"
	DefaultJudgeRetries                 = 2
	DefaultJudgeTimeoutSeconds          = 30
	DefaultCacheTTLSeconds              = 600 // 10 minutes
	DefaultContextPackCharCap           = 50_000
	DefaultContextPackFileCapBytes      = 1 << 20 // 1 MiB
)

// Default returns a System populated with the documented defaults.
func Default() *System {
	s := &System{
		StateDir:                     DefaultStateDir,
		AuditTimeoutSeconds:          DefaultAuditTimeoutSeconds,
		ProgressIndicatorMillis:      DefaultProgressIndicatorMillis,
		MaxConcurrentAudits:          DefaultMaxConcurrentAudits,
		MaxConcurrentSessions:        DefaultMaxConcurrentSessions,
		QueueTimeoutMillis:           DefaultQueueTimeoutMillis,
		SessionCleanupIntervalMillis: DefaultSessionCleanupIntervalMillis,
		MaxSessionAgeMillis:          DefaultMaxSessionAgeMillis,
		EnableCaching:                DefaultEnableCaching,
		EnableSessionPersistence:     DefaultEnableSessionPersistence,
		JudgeExecutable:              DefaultJudgeExecutable,
		JudgeRetries:                 DefaultJudgeRetries,
		JudgeTimeoutSeconds:          DefaultJudgeTimeoutSeconds,
		CacheTTLSeconds:              DefaultCacheTTLSeconds,
		ContextPackCharCap:           DefaultContextPackCharCap,
		ContextPackFileCapBytes:      DefaultContextPackFileCapBytes,
	}
	s.resolveDurations()
	return s
}

// resolveDurations derives the time.Duration fields from their YAML-facing
// integer counterparts. Called after loading and after merging user
// overrides, since mergo only ever sees the exported int fields.
func (s *System) resolveDurations() {
	s.AuditTimeout = time.Duration(s.AuditTimeoutSeconds) * time.Second
	s.ProgressIndicatorInterval = time.Duration(s.ProgressIndicatorMillis) * time.Millisecond
	s.QueueTimeout = time.Duration(s.QueueTimeoutMillis) * time.Millisecond
	s.SessionCleanupInterval = time.Duration(s.SessionCleanupIntervalMillis) * time.Millisecond
	s.MaxSessionAge = time.Duration(s.MaxSessionAgeMillis) * time.Millisecond
	s.JudgeTimeout = time.Duration(s.JudgeTimeoutSeconds) * time.Second
	s.CacheTTL = time.Duration(s.CacheTTLSeconds) * time.Second
}
