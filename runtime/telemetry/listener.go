package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/redilah/CulinaryAI/runtime/events"
)

// OTelEventListener turns the event stream of live sessions into one
// "culinaryai.session" span per session, opened on session.starting and
// ended on session.stopped or session.start_failed. Notable moments inside a
// session become span events.
type OTelEventListener struct {
	tracer trace.Tracer
	parent context.Context //nolint:containedctx // parents root spans

	mu       sync.Mutex
	sessions map[string]trace.Span
}

// NewOTelEventListener creates a listener using tracer.
func NewOTelEventListener(tracer trace.Tracer) *OTelEventListener {
	return &OTelEventListener{
		tracer:   tracer,
		parent:   context.Background(),
		sessions: make(map[string]trace.Span),
	}
}

// WithParent parents session spans under the span in ctx.
func (l *OTelEventListener) WithParent(ctx context.Context) *OTelEventListener {
	l.parent = ctx
	return l
}

// Attach subscribes the listener to all events on bus.
func (l *OTelEventListener) Attach(bus *events.EventBus) func() {
	return bus.SubscribeAll(l.OnEvent)
}

// OpenSessions returns the number of sessions with an unfinished span.
func (l *OTelEventListener) OpenSessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// OnEvent handles a single event. It is safe for concurrent use.
func (l *OTelEventListener) OnEvent(evt *events.Event) {
	//nolint:exhaustive // Only handling span-producing events
	switch evt.Type {
	case events.EventSessionStarting:
		l.startSession(evt)
	case events.EventSessionActive:
		if data, ok := evt.Data.(events.SessionActiveData); ok {
			l.addEvent(evt, "active", attribute.Int64("startup_ms", data.StartupDuration.Milliseconds()))
		}
	case events.EventSessionStartFailed:
		l.failSession(evt)
	case events.EventSessionStopped:
		l.endSession(evt)
	case events.EventTurnStarted:
		l.addEvent(evt, "turn_started")
	case events.EventPlaybackInterrupted:
		if data, ok := evt.Data.(events.PlaybackInterruptedData); ok {
			l.addEvent(evt, "interrupted", attribute.Int("stopped_buffers", data.StoppedBuffers))
		}
	case events.EventNameDetected:
		l.addEvent(evt, "name_detected")
	case events.EventAudioChunkDropped:
		if data, ok := evt.Data.(events.AudioChunkDroppedData); ok && data.Error != nil {
			l.addEvent(evt, "audio_chunk_dropped", attribute.String("error", data.Error.Error()))
		}
	case events.EventVideoFrameFailed:
		if data, ok := evt.Data.(events.VideoFrameData); ok && data.Error != nil {
			l.addEvent(evt, "video_frame_failed", attribute.String("error", data.Error.Error()))
		}
	}
}

func (l *OTelEventListener) startSession(evt *events.Event) {
	attrs := []attribute.KeyValue{attribute.String("session.id", evt.SessionID)}
	if data, ok := evt.Data.(events.SessionStartingData); ok {
		attrs = append(attrs,
			attribute.String("recipe", data.Recipe),
			attribute.String("step", data.Step),
			attribute.String("model", data.Model),
		)
	}
	_, span := l.tracer.Start(l.parent, "culinaryai.session",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(evt.Timestamp),
		trace.WithAttributes(attrs...),
	)

	l.mu.Lock()
	prev := l.sessions[evt.SessionID]
	l.sessions[evt.SessionID] = span
	l.mu.Unlock()
	if prev != nil {
		prev.End()
	}
}

func (l *OTelEventListener) take(sessionID string) trace.Span {
	l.mu.Lock()
	defer l.mu.Unlock()
	span, ok := l.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(l.sessions, sessionID)
	return span
}

func (l *OTelEventListener) failSession(evt *events.Event) {
	span := l.take(evt.SessionID)
	if span == nil {
		return
	}
	if data, ok := evt.Data.(events.SessionStartFailedData); ok {
		span.SetAttributes(attribute.String("failure.reason", data.Reason))
		if data.Error != nil {
			span.RecordError(data.Error)
			span.SetStatus(codes.Error, data.Error.Error())
		}
	}
	span.End(trace.WithTimestamp(evt.Timestamp))
}

func (l *OTelEventListener) endSession(evt *events.Event) {
	span := l.take(evt.SessionID)
	if span == nil {
		return
	}
	if data, ok := evt.Data.(events.SessionStoppedData); ok {
		span.SetAttributes(attribute.String("stop.reason", data.Reason))
		if data.Error != nil {
			span.RecordError(data.Error)
			span.SetStatus(codes.Error, data.Error.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
	span.End(trace.WithTimestamp(evt.Timestamp))
}

func (l *OTelEventListener) addEvent(evt *events.Event, name string, attrs ...attribute.KeyValue) {
	l.mu.Lock()
	span := l.sessions[evt.SessionID]
	l.mu.Unlock()
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithTimestamp(evt.Timestamp), trace.WithAttributes(attrs...))
}
