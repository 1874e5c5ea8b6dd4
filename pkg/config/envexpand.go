package config

import "os"

// ExpandEnv expands environment variables in YAML content using Go's standard library.
// Supports both ${VAR} and $VAR syntax (standard shell-style).
//
// Examples:
//   - ${GANAUDIT_STATE_DIR} → value of GANAUDIT_STATE_DIR environment variable
//   - $HOME → value of HOME environment variable
//   - ${HOME}/.cache/ganaudit → path with the variable expanded
//
// Missing variables expand to empty string. Validation should catch required fields that are empty.
func ExpandEnv(data []byte) []byte {
	expanded := os.ExpandEnv(string(data))
	return []byte(expanded)
}
