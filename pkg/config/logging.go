package config

import (
	"fmt"
	"slices"

	"github.com/redilah/CulinaryAI/runtime/logger"
)

// Log levels accepted in the logging section.
const (
	LogLevelTrace = "trace"
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log output formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

var logLevels = []string{LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}

const levelHint = "must be one of: trace, debug, info, warn, error"

// LoggingConfigSpec is the logging section.
type LoggingConfigSpec struct {
	DefaultLevel string `yaml:"defaultLevel,omitempty" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error,default=info"`
	// Format is json or text.
	Format string `yaml:"format,omitempty" jsonschema:"enum=json,enum=text,default=text"`
	// CommonFields are attached to every record, e.g. host or environment.
	CommonFields map[string]string `yaml:"commonFields,omitempty"`
	// Modules override DefaultLevel per package, using dot notation such as
	// runtime.session or runtime.providers.gemini. The longest match wins.
	Modules []ModuleLoggingConfig `yaml:"modules,omitempty"`
}

// ModuleLoggingConfig sets the level for one module.
type ModuleLoggingConfig struct {
	Name  string `yaml:"name" jsonschema:"required"`
	Level string `yaml:"level,omitempty" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
}

// DefaultLoggingConfig logs at info in text format.
func DefaultLoggingConfig() LoggingConfigSpec {
	return LoggingConfigSpec{DefaultLevel: LogLevelInfo, Format: LogFormatText}
}

// Validate checks levels, format and module names.
func (c *LoggingConfigSpec) Validate() error {
	if c.DefaultLevel != "" && !isValidLogLevel(c.DefaultLevel) {
		return &ValidationError{Field: "logging.defaultLevel", Message: levelHint, Value: c.DefaultLevel}
	}
	switch c.Format {
	case "", LogFormatJSON, LogFormatText:
	default:
		return &ValidationError{Field: "logging.format", Message: "must be json or text", Value: c.Format}
	}
	for i, mod := range c.Modules {
		field := fmt.Sprintf("logging.modules[%d]", i)
		if mod.Name == "" {
			return &ValidationError{Field: field + ".name", Message: "module name is required"}
		}
		if mod.Level != "" && !isValidLogLevel(mod.Level) {
			return &ValidationError{Field: field + ".level", Message: levelHint, Value: mod.Level}
		}
	}
	return nil
}

func isValidLogLevel(level string) bool {
	return slices.Contains(logLevels, level)
}

// LoggerSpec converts the section for logger.Configure.
func (c *LoggingConfigSpec) LoggerSpec() *logger.LoggingConfigSpec {
	spec := &logger.LoggingConfigSpec{
		DefaultLevel: c.DefaultLevel,
		Format:       c.Format,
		CommonFields: c.CommonFields,
	}
	for _, mod := range c.Modules {
		spec.Modules = append(spec.Modules, logger.ModuleLoggingSpec{Name: mod.Name, Level: mod.Level})
	}
	return spec
}
