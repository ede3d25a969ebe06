// Package logger provides structured logging for the live cooking assistant.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Live session lifecycle logging (start, stop, remote close)
//   - Automatic API key and bearer token redaction
//   - Contextual logging with session and recipe fields
//   - Level-based verbosity control
//
// All exported functions use the global DefaultLogger which can be configured
// for different output formats and log levels.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// LevelTrace sits below debug and is used for per-frame audio logging.
const LevelTrace = slog.LevelDebug - 4

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized with slog.LevelInfo by default.
	DefaultLogger *slog.Logger

	// logOutput is where the built-in handlers write. Tests swap it via SetOutput.
	logOutput io.Writer = os.Stderr

	// customHandler is set when the host application installs its own logger.
	// Configure leaves a custom handler untouched.
	customHandler slog.Handler
)

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = ParseLevel(envLevel)
	}
	DefaultLogger = slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: level}))
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the logging level for all subsequent log operations.
// It replaces the logger instance, dropping any module configuration.
func SetLevel(level slog.Level) {
	if customHandler != nil {
		return
	}
	DefaultLogger = slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: level}))
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetOutput redirects the built-in handlers to w and rebuilds the logger at the given level.
func SetOutput(w io.Writer, level slog.Level) {
	logOutput = w
	DefaultLogger = slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: level}))
}

// SetLogger installs a caller-provided logger. Passing nil restores the default text logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		customHandler = nil
		SetLevel(slog.LevelInfo)
		return
	}
	customHandler = l.Handler()
	DefaultLogger = l
}

// logAt records the caller of the exported wrapper as the source so that
// module levels and AddSource point at application code, not this package.
func logAt(ctx context.Context, level slog.Level, msg string, args ...any) {
	l := DefaultLogger
	if !l.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip Callers, logAt and the exported wrapper
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.Handler().Handle(ctx, r)
}

// Info logs an informational message with structured key-value attributes.
func Info(msg string, args ...any) {
	logAt(context.Background(), slog.LevelInfo, msg, args...)
}

// InfoContext logs an informational message with context and structured attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelInfo, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	logAt(context.Background(), slog.LevelDebug, msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelDebug, msg, args...)
}

// Trace logs below debug level. Used for high-rate events such as audio frames.
func Trace(msg string, args ...any) {
	logAt(context.Background(), LevelTrace, msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors such as a dropped audio chunk.
func Warn(msg string, args ...any) {
	logAt(context.Background(), slog.LevelWarn, msg, args...)
}

// WarnContext logs a warning message with context and structured attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelWarn, msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	logAt(context.Background(), slog.LevelError, msg, args...)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelError, msg, args...)
}

// SessionEvent logs a live session lifecycle transition.
func SessionEvent(ctx context.Context, sessionID, event string, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs, "session_id", sessionID, "event", event)
	allAttrs = append(allAttrs, attrs...)
	logAt(ctx, slog.LevelInfo, "🎙️ Live session", allAttrs...)
}

// SessionError logs a live session failure that was surfaced to the caller.
func SessionError(ctx context.Context, sessionID, operation string, err error, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs, "session_id", sessionID, "operation", operation, "error", err)
	allAttrs = append(allAttrs, attrs...)
	logAt(ctx, slog.LevelError, "❌ Live session failed", allAttrs...)
}

// sensitivePatterns match credentials that may appear in URLs, headers or payloads.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`),    // Google API keys
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`), // Bearer tokens
	regexp.MustCompile(`([?&]key=)[^&\s"]+`),       // key query parameter
}

// RedactSensitiveData removes API keys and tokens from a string. Google keys keep
// their first four characters for debugging; bearer tokens and key query
// parameters are replaced entirely.
func RedactSensitiveData(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			switch {
			case strings.HasPrefix(match, "Bearer"):
				return "Bearer [REDACTED]"
			case strings.Contains(match, "key="):
				return match[:strings.Index(match, "key=")+len("key=")] + "[REDACTED]"
			case len(match) > 8:
				return match[:4] + "...[REDACTED]"
			default:
				return "[REDACTED]"
			}
		})
	}
	return result
}
