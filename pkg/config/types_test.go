package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBool(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{"True", true},
		{"false", false},
		{"FALSE", false},
		{"", false},
		{"yes", false},
		{"1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseBool(tt.raw), "ParseBool(%q)", tt.raw)
	}
}

func TestDefaultResolvesDurations(t *testing.T) {
	sys := Default()

	assert.Equal(t, DefaultStateDir, sys.StateDir)
	assert.Equal(t, DefaultAuditTimeoutSeconds, int(sys.AuditTimeout.Seconds()))
	assert.Equal(t, DefaultProgressIndicatorMillis, int(sys.ProgressIndicatorInterval.Milliseconds()))
	assert.Equal(t, DefaultQueueTimeoutMillis, int(sys.QueueTimeout.Milliseconds()))
	assert.Equal(t, DefaultSessionCleanupIntervalMillis, int(sys.SessionCleanupInterval.Milliseconds()))
	assert.Equal(t, DefaultMaxSessionAgeMillis, int(sys.MaxSessionAge.Milliseconds()))
	assert.Equal(t, DefaultJudgeTimeoutSeconds, int(sys.JudgeTimeout.Seconds()))
	assert.Equal(t, DefaultCacheTTLSeconds, int(sys.CacheTTL.Seconds()))
	assert.True(t, sys.EnableCaching)
	assert.True(t, sys.EnableSessionPersistence)
	assert.Equal(t, DefaultJudgeExecutable, sys.JudgeExecutable)
}
