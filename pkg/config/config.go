// Package config provides configuration management for the live cooking
// assistant.
//
// Configuration is a single YAML file with these sections:
//   - live: Gemini Live endpoint, API key, model and voice
//   - audio: microphone and playback sample rates
//   - vision: camera device and frame pacing
//   - recipe: the dish being cooked
//   - profile: where the remembered user name is stored
//   - metrics, tracing, logging: observability
//
// ${VAR} references are expanded from the environment before parsing, the
// document is validated against an embedded JSON schema, and unset fields
// keep the values from Default.
//
// The package is organized into:
//   - types.go: Section types and defaults
//   - loader.go: Loading and environment expansion
//   - schema_validator.go: JSON schema validation
//   - logging.go: Logging section
package config

import "fmt"

// ValidationError reports a config field that failed a semantic check.
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid config: %s: %s (got %q)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}
