package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// yamlDoc mirrors the subset of System fields the YAML file is allowed to
// set. It is unmarshalled onto a zero value, then merged onto Default()
// so unset fields keep their defaults instead of overwriting them with
// Go zero values.
type yamlDoc struct {
	StateDir                     string `yaml:"state_dir"`
	AuditTimeoutSeconds          int    `yaml:"audit_timeout_seconds"`
	ProgressIndicatorMillis      int    `yaml:"progress_indicator_interval_ms"`
	MaxConcurrentAudits          int    `yaml:"max_concurrent_audits"`
	MaxConcurrentSessions        int    `yaml:"max_concurrent_sessions"`
	QueueTimeoutMillis           int    `yaml:"queue_timeout_ms"`
	SessionCleanupIntervalMillis int    `yaml:"session_cleanup_interval_ms"`
	MaxSessionAgeMillis          int    `yaml:"max_session_age_ms"`
	EnableCaching                *bool  `yaml:"enable_caching"`
	EnableSessionPersistence     *bool  `yaml:"enable_session_persistence"`
	JudgeExecutable              string `yaml:"judge_executable"`
	JudgeRetries                 int    `yaml:"judge_retries"`
	JudgeTimeoutSeconds          int    `yaml:"judge_timeout_seconds"`
	CacheTTLSeconds              int    `yaml:"cache_ttl_seconds"`
	ContextPackCharCap           int    `yaml:"context_pack_char_cap"`
	ContextPackFileCapBytes      int    `yaml:"context_pack_file_cap_bytes"`
}

// Initialize loads, merges, and validates the orchestrator's configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load .env (if present) so referenced environment variables are set
//  2. Load ganaudit.yaml (if present), expanding ${VAR} references
//  3. Merge onto the built-in defaults (YAML overrides defaults)
//  4. Apply environment-variable overrides
//  5. Derive time.Duration fields from their *Seconds/*Millis counterparts
//  6. Validate
func Initialize(_ context.Context, configDir string) (*System, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	envPath := filepath.Join(configDir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, NewLoadError(".env", err)
		}
	}

	sys := Default()
	sys.configDir = configDir

	doc, err := loadYAMLDoc(configDir)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		if err := mergeDoc(sys, doc); err != nil {
			return nil, NewLoadError("ganaudit.yaml", err)
		}
	}

	applyEnvOverrides(sys)
	sys.resolveDurations()

	if err := validateSystem(sys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("configuration initialized",
		"state_dir", sys.StateDir,
		"judge_executable", sys.JudgeExecutable,
		"max_concurrent_audits", sys.MaxConcurrentAudits,
		"max_concurrent_sessions", sys.MaxConcurrentSessions,
	)
	return sys, nil
}

func loadYAMLDoc(configDir string) (*yamlDoc, error) {
	path := filepath.Join(configDir, "ganaudit.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewLoadError("ganaudit.yaml", err)
	}

	data = ExpandEnv(data)

	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, NewLoadError("ganaudit.yaml", fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	return &doc, nil
}

// mergeDoc overlays non-zero fields of doc onto sys using mergo: YAML
// overrides the built-in defaults.
func mergeDoc(sys *System, doc *yamlDoc) error {
	overlay := &System{
		StateDir:                     doc.StateDir,
		AuditTimeoutSeconds:          doc.AuditTimeoutSeconds,
		ProgressIndicatorMillis:      doc.ProgressIndicatorMillis,
		MaxConcurrentAudits:          doc.MaxConcurrentAudits,
		MaxConcurrentSessions:        doc.MaxConcurrentSessions,
		QueueTimeoutMillis:           doc.QueueTimeoutMillis,
		SessionCleanupIntervalMillis: doc.SessionCleanupIntervalMillis,
		MaxSessionAgeMillis:          doc.MaxSessionAgeMillis,
		JudgeExecutable:              doc.JudgeExecutable,
		JudgeRetries:                 doc.JudgeRetries,
		JudgeTimeoutSeconds:          doc.JudgeTimeoutSeconds,
		CacheTTLSeconds:              doc.CacheTTLSeconds,
		ContextPackCharCap:           doc.ContextPackCharCap,
		ContextPackFileCapBytes:      doc.ContextPackFileCapBytes,
	}
	// mergo.WithOverride lets non-zero overlay fields win over sys's
	// defaults; zero-valued overlay fields (unset in YAML) are left alone.
	if err := mergo.Merge(sys, overlay, mergo.WithOverride); err != nil {
		return err
	}
	if doc.EnableCaching != nil {
		sys.EnableCaching = *doc.EnableCaching
	}
	if doc.EnableSessionPersistence != nil {
		sys.EnableSessionPersistence = *doc.EnableSessionPersistence
	}
	return nil
}

// envOverride is one recognized environment variable and the System field
// it sets. Env vars win over both defaults and the YAML file.
type envOverride struct {
	key   string
	apply func(sys *System, raw string)
}

var envOverrides = []envOverride{
	{"GANAUDIT_STATE_DIR", func(s *System, v string) { s.StateDir = v }},
	{"GANAUDIT_AUDIT_TIMEOUT_SECONDS", func(s *System, v string) { setInt(&s.AuditTimeoutSeconds, v) }},
	{"GANAUDIT_MAX_CONCURRENT_AUDITS", func(s *System, v string) { setInt(&s.MaxConcurrentAudits, v) }},
	{"GANAUDIT_MAX_CONCURRENT_SESSIONS", func(s *System, v string) { setInt(&s.MaxConcurrentSessions, v) }},
	{"GANAUDIT_QUEUE_TIMEOUT_MS", func(s *System, v string) { setInt(&s.QueueTimeoutMillis, v) }},
	{"GANAUDIT_ENABLE_CACHING", func(s *System, v string) { s.EnableCaching = ParseBool(v) }},
	{"GANAUDIT_ENABLE_SESSION_PERSISTENCE", func(s *System, v string) { s.EnableSessionPersistence = ParseBool(v) }},
	{"GANAUDIT_JUDGE_EXECUTABLE", func(s *System, v string) { s.JudgeExecutable = v }},
	{"GANAUDIT_JUDGE_RETRIES", func(s *System, v string) { setInt(&s.JudgeRetries, v) }},
}

func applyEnvOverrides(sys *System) {
	for _, o := range envOverrides {
		if raw, ok := os.LookupEnv(o.key); ok {
			o.apply(sys, raw)
		}
	}
}

func setInt(dst *int, raw string) {
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err == nil {
		*dst = v
	}
}

var structValidator = validator.New()

// validateSystem runs the struct-tag validation declared on System, then a
// handful of checks the generic tags can't express (which sentinel error
// and which field name to surface for each case).
func validateSystem(sys *System) error {
	if err := structValidator.Struct(sys); err != nil {
		return fieldErrorFromValidator(sys, err)
	}
	return nil
}

// fieldErrorFromValidator translates the first validator.FieldError into
// our own ValidationError shape, picking the sentinel that matches the
// failing tag (required fields missing vs. out-of-range values).
func fieldErrorFromValidator(sys *System, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	fe := verrs[0]
	field := fe.Field()
	switch field {
	case "StateDir":
		return NewValidationError("state_dir", sys.StateDir, ErrMissingRequiredField)
	case "JudgeExecutable":
		return NewValidationError("judge_executable", sys.JudgeExecutable, ErrMissingRequiredField)
	case "MaxConcurrentAudits":
		return NewValidationError("max_concurrent_audits", fmt.Sprint(sys.MaxConcurrentAudits), ErrInvalidValue)
	case "MaxConcurrentSessions":
		return NewValidationError("max_concurrent_sessions", fmt.Sprint(sys.MaxConcurrentSessions), ErrInvalidValue)
	case "JudgeRetries":
		return NewValidationError("judge_retries", fmt.Sprint(sys.JudgeRetries), ErrInvalidValue)
	default:
		return NewValidationError(field, fmt.Sprint(fe.Value()), ErrInvalidValue)
	}
}
