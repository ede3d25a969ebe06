package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/redilah/CulinaryAI/runtime/events"
)

// newTestListener returns a listener, in-memory exporter, and TracerProvider for tests.
func newTestListener(t *testing.T) (*OTelEventListener, *tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	listener := NewOTelEventListener(Tracer(tp))
	return listener, exp, tp
}

// flushAndGetSpans forces span export and returns spans.
func flushAndGetSpans(t *testing.T, tp *sdktrace.TracerProvider, exp *tracetest.InMemoryExporter) tracetest.SpanStubs {
	t.Helper()
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	spans := exp.GetSpans()
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	return spans
}

func hasAttr(span tracetest.SpanStub, key, want string) bool {
	for _, a := range span.Attributes {
		if string(a.Key) == key && a.Value.Emit() == want {
			return true
		}
	}
	return false
}

func eventNames(span tracetest.SpanStub) []string {
	names := make([]string, 0, len(span.Events))
	for _, e := range span.Events {
		names = append(names, e.Name)
	}
	return names
}

func ev(typ events.EventType, data events.EventData) *events.Event {
	return &events.Event{Type: typ, Timestamp: time.Now(), SessionID: "sess-1", Data: data}
}

func TestOTelEventListener_SessionSpan(t *testing.T) {
	l, exp, tp := newTestListener(t)

	l.OnEvent(ev(events.EventSessionStarting, events.SessionStartingData{Recipe: "Nasi Goreng", Step: "Tumis bumbu", Model: "m"}))
	if got := l.OpenSessions(); got != 1 {
		t.Fatalf("expected 1 open session, got %d", got)
	}
	l.OnEvent(ev(events.EventSessionActive, events.SessionActiveData{StartupDuration: 250 * time.Millisecond}))
	l.OnEvent(ev(events.EventTurnStarted, events.TurnStartedData{}))
	l.OnEvent(ev(events.EventPlaybackInterrupted, events.PlaybackInterruptedData{StoppedBuffers: 2}))
	l.OnEvent(ev(events.EventNameDetected, events.NameDetectedData{Name: "Rina"}))
	l.OnEvent(ev(events.EventVideoFrameFailed, events.VideoFrameData{Error: errors.New("rate limited")}))
	l.OnEvent(ev(events.EventTranscriptDelta, events.TranscriptDeltaData{Text: "Baik"}))
	l.OnEvent(ev(events.EventSessionStopped, events.SessionStoppedData{Reason: "stopped", Duration: time.Minute}))

	if got := l.OpenSessions(); got != 0 {
		t.Fatalf("expected no open sessions, got %d", got)
	}

	spans := flushAndGetSpans(t, tp, exp)
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "culinaryai.session" {
		t.Errorf("unexpected span name %q", span.Name)
	}
	for key, want := range map[string]string{
		"session.id":  "sess-1",
		"recipe":      "Nasi Goreng",
		"step":        "Tumis bumbu",
		"stop.reason": "stopped",
	} {
		if !hasAttr(span, key, want) {
			t.Errorf("missing attribute %s=%s", key, want)
		}
	}
	want := []string{"active", "turn_started", "interrupted", "name_detected", "video_frame_failed"}
	got := eventNames(span)
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if span.Status.Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", span.Status.Code)
	}
}

func TestOTelEventListener_StartFailed(t *testing.T) {
	l, exp, tp := newTestListener(t)

	l.OnEvent(ev(events.EventSessionStarting, events.SessionStartingData{Recipe: "Rendang"}))
	l.OnEvent(ev(events.EventSessionStartFailed, events.SessionStartFailedData{
		Reason: "microphone",
		Error:  errors.New("permission denied"),
	}))

	spans := flushAndGetSpans(t, tp, exp)
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected Error status, got %v", spans[0].Status.Code)
	}
	if !hasAttr(spans[0], "failure.reason", "microphone") {
		t.Error("missing failure.reason attribute")
	}
}

func TestOTelEventListener_RemoteCloseWithError(t *testing.T) {
	l, exp, tp := newTestListener(t)

	l.OnEvent(ev(events.EventSessionStarting, events.SessionStartingData{}))
	l.OnEvent(ev(events.EventSessionStopped, events.SessionStoppedData{
		Reason: "remote_close",
		Error:  errors.New("websocket: close 1011"),
	}))

	spans := flushAndGetSpans(t, tp, exp)
	if len(spans) != 1 || spans[0].Status.Code != codes.Error {
		t.Fatalf("expected one errored span, got %+v", spans)
	}
}

func TestOTelEventListener_IgnoresUnknownSessions(t *testing.T) {
	l, exp, tp := newTestListener(t)

	l.OnEvent(ev(events.EventTurnStarted, events.TurnStartedData{}))
	l.OnEvent(ev(events.EventSessionStopped, events.SessionStoppedData{Reason: "stopped"}))

	if spans := flushAndGetSpans(t, tp, exp); len(spans) != 0 {
		t.Errorf("expected no spans, got %d", len(spans))
	}
}

func TestOTelEventListener_AttachToBus(t *testing.T) {
	l, exp, tp := newTestListener(t)
	bus := events.NewEventBus()
	unsubscribe := l.Attach(bus)

	emitter := events.NewEmitter(bus, "sess-2")
	emitter.SessionStarting("Soto", "", "m")
	emitter.SessionStopped("stopped", time.Second, nil)
	bus.Close()
	unsubscribe()

	spans := flushAndGetSpans(t, tp, exp)
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if !hasAttr(spans[0], "session.id", "sess-2") {
		t.Error("missing session.id attribute")
	}
}
