// Package errors provides the structured error type shared by the live
// assistant packages.
//
// ContextualError records which component failed, during which operation, and
// the underlying cause. It unwraps to the cause so sentinel errors still match
// with errors.Is:
//
//	err := errors.New("session", "Start", session.ErrMicrophoneUnavailable)
//	errors.Is(err, session.ErrMicrophoneUnavailable) // true
package errors

import (
	stderrors "errors"
	"fmt"
)

// ContextualError is a structured error carrying the failing component and operation.
type ContextualError struct {
	// Component identifies the package that produced the error (e.g. "session", "gemini").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// StatusCode is an optional HTTP handshake status or WebSocket close code.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Wrap is like New but returns nil when cause is nil, so it can wrap a
// function result directly.
func Wrap(component, operation string, cause error) error {
	if cause == nil {
		return nil
	}
	return New(component, operation, cause)
}

// Error returns "[component] operation (status N): cause".
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)
	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}
	return base
}

// Unwrap returns the underlying cause.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithStatusCode sets the status code and returns e.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetail adds a single detail entry and returns e.
func (e *ContextualError) WithDetail(key string, value any) *ContextualError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Component returns the component of the outermost ContextualError in err's
// chain, or "" when there is none.
func Component(err error) string {
	var ce *ContextualError
	if stderrors.As(err, &ce) {
		return ce.Component
	}
	return ""
}
