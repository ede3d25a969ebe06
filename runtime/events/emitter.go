package events

import "time"

// Emitter publishes events stamped with a session ID. A nil Emitter or one
// without a bus drops everything, so callers need no nil checks.
type Emitter struct {
	bus       *EventBus
	sessionID string
}

// NewEmitter creates a new event emitter.
func NewEmitter(bus *EventBus, sessionID string) *Emitter {
	return &Emitter{bus: bus, sessionID: sessionID}
}

// WithSession returns an emitter on the same bus for another session.
func (e *Emitter) WithSession(sessionID string) *Emitter {
	if e == nil {
		return nil
	}
	return &Emitter{bus: e.bus, sessionID: sessionID}
}

func (e *Emitter) emit(eventType EventType, data EventData) {
	if e == nil || e.bus == nil {
		return
	}
	e.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	})
}

// SessionStarting emits session.starting.
func (e *Emitter) SessionStarting(recipe, step, model string) {
	e.emit(EventSessionStarting, SessionStartingData{Recipe: recipe, Step: step, Model: model})
}

// SessionActive emits session.active.
func (e *Emitter) SessionActive(startup time.Duration) {
	e.emit(EventSessionActive, SessionActiveData{StartupDuration: startup})
}

// SessionStartFailed emits session.start_failed.
func (e *Emitter) SessionStartFailed(reason string, err error) {
	e.emit(EventSessionStartFailed, SessionStartFailedData{Reason: reason, Error: err})
}

// SessionStopped emits session.stopped.
func (e *Emitter) SessionStopped(reason string, duration time.Duration, err error) {
	e.emit(EventSessionStopped, SessionStoppedData{Reason: reason, Duration: duration, Error: err})
}

// AudioFrameSent emits audio.frame_sent.
func (e *Emitter) AudioFrameSent(bytes int) {
	e.emit(EventAudioFrameSent, AudioFrameData{Bytes: bytes})
}

// AudioChunkScheduled emits audio.chunk_scheduled.
func (e *Emitter) AudioChunkScheduled(start, duration time.Duration) {
	e.emit(EventAudioChunkScheduled, AudioChunkData{Start: start, Duration: duration})
}

// AudioChunkDropped emits audio.chunk_dropped.
func (e *Emitter) AudioChunkDropped(err error) {
	e.emit(EventAudioChunkDropped, AudioChunkDroppedData{Error: err})
}

// PlaybackInterrupted emits playback.interrupted.
func (e *Emitter) PlaybackInterrupted(stopped int) {
	e.emit(EventPlaybackInterrupted, PlaybackInterruptedData{StoppedBuffers: stopped})
}

// TranscriptDelta emits transcript.delta.
func (e *Emitter) TranscriptDelta(text string, newLine bool) {
	e.emit(EventTranscriptDelta, TranscriptDeltaData{Text: text, NewLine: newLine})
}

// TurnStarted emits transcript.turn_started.
func (e *Emitter) TurnStarted(text string) {
	e.emit(EventTurnStarted, TurnStartedData{Text: text})
}

// NameDetected emits profile.name_detected.
func (e *Emitter) NameDetected(name string) {
	e.emit(EventNameDetected, NameDetectedData{Name: name})
}

// VideoFrameSent emits video.frame_sent.
func (e *Emitter) VideoFrameSent(bytes int) {
	e.emit(EventVideoFrameSent, VideoFrameData{Bytes: bytes})
}

// VideoFrameFailed emits video.frame_failed.
func (e *Emitter) VideoFrameFailed(err error) {
	e.emit(EventVideoFrameFailed, VideoFrameData{Error: err})
}
