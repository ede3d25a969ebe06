package logger

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys picked up by ContextHandler and added to every record.
const (
	// ContextKeySessionID identifies the live assistant session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyRecipe is the title of the recipe being cooked.
	ContextKeyRecipe contextKey = "recipe"

	// ContextKeyModel identifies the remote model.
	ContextKeyModel contextKey = "model"

	// ContextKeyComponent names the subsystem emitting the log (e.g. "gemini", "playback").
	ContextKeyComponent contextKey = "component"
)

var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyRecipe,
	ContextKeyModel,
	ContextKeyComponent,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithRecipe returns a new context with the recipe title set.
func WithRecipe(ctx context.Context, recipe string) context.Context {
	return context.WithValue(ctx, ContextKeyRecipe, recipe)
}

// WithModel returns a new context with the model name set.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ContextKeyModel, model)
}

// WithComponent returns a new context with the component name set.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, ContextKeyComponent, component)
}

// LoggingFields holds the standard logging context fields.
type LoggingFields struct {
	SessionID string
	Recipe    string
	Model     string
	Component string
}

// WithLoggingContext sets every non-empty field of fields on ctx.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	if fields.SessionID != "" {
		ctx = WithSessionID(ctx, fields.SessionID)
	}
	if fields.Recipe != "" {
		ctx = WithRecipe(ctx, fields.Recipe)
	}
	if fields.Model != "" {
		ctx = WithModel(ctx, fields.Model)
	}
	if fields.Component != "" {
		ctx = WithComponent(ctx, fields.Component)
	}
	return ctx
}

// ExtractLoggingFields reads the logging fields back out of ctx.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	var fields LoggingFields
	fields.SessionID, _ = ctx.Value(ContextKeySessionID).(string)
	fields.Recipe, _ = ctx.Value(ContextKeyRecipe).(string)
	fields.Model, _ = ctx.Value(ContextKeyModel).(string)
	fields.Component, _ = ctx.Value(ContextKeyComponent).(string)
	return fields
}
