package events

import "time"

// EventType identifies the type of event emitted by the live session.
type EventType string

const (
	// EventSessionStarting marks the start of Start.
	EventSessionStarting EventType = "session.starting"
	// EventSessionActive marks a session that finished starting.
	EventSessionActive EventType = "session.active"
	// EventSessionStartFailed marks a Start that returned an error.
	EventSessionStartFailed EventType = "session.start_failed"
	// EventSessionStopped marks a session that released all resources.
	EventSessionStopped EventType = "session.stopped"

	// EventAudioFrameSent marks a microphone block sent to the endpoint.
	EventAudioFrameSent EventType = "audio.frame_sent"
	// EventAudioChunkScheduled marks model audio placed on the output clock.
	EventAudioChunkScheduled EventType = "audio.chunk_scheduled"
	// EventAudioChunkDropped marks model audio that could not be decoded or scheduled.
	EventAudioChunkDropped EventType = "audio.chunk_dropped"
	// EventPlaybackInterrupted marks a barge-in that cut playback.
	EventPlaybackInterrupted EventType = "playback.interrupted"

	// EventTranscriptDelta marks output transcription forwarded to the sink.
	EventTranscriptDelta EventType = "transcript.delta"
	// EventTurnStarted marks an input transcription signal.
	EventTurnStarted EventType = "transcript.turn_started"
	// EventNameDetected marks a newly detected user name.
	EventNameDetected EventType = "profile.name_detected"

	// EventVideoFrameSent marks a camera frame sent to the endpoint.
	EventVideoFrameSent EventType = "video.frame_sent"
	// EventVideoFrameFailed marks a camera frame that failed to capture or send.
	EventVideoFrameFailed EventType = "video.frame_failed"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event represents a session event delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	Data      EventData
}

// baseEventData provides a shared marker implementation for all event payloads.
type baseEventData struct{}

func (baseEventData) eventData() {}

// SessionStartingData describes a session being started.
type SessionStartingData struct {
	baseEventData
	Recipe string
	Step   string
	Model  string
}

// SessionActiveData describes a session that is live.
type SessionActiveData struct {
	baseEventData
	StartupDuration time.Duration
}

// SessionStartFailedData carries the error returned by Start.
type SessionStartFailedData struct {
	baseEventData
	Error  error
	Reason string // "microphone", "audio", "connect"
}

// SessionStoppedData describes a finished session.
type SessionStoppedData struct {
	baseEventData
	Reason   string // "stop" or "remote_close"
	Duration time.Duration
	Error    error
}

// AudioFrameData describes one microphone block.
type AudioFrameData struct {
	baseEventData
	Bytes int
}

// AudioChunkData describes one scheduled model audio chunk.
type AudioChunkData struct {
	baseEventData
	Start    time.Duration
	Duration time.Duration
}

// AudioChunkDroppedData carries the reason a chunk was dropped.
type AudioChunkDroppedData struct {
	baseEventData
	Error error
}

// PlaybackInterruptedData counts the buffers cut by a barge-in.
type PlaybackInterruptedData struct {
	baseEventData
	StoppedBuffers int
}

// TranscriptDeltaData is one delta as delivered to the sink.
type TranscriptDeltaData struct {
	baseEventData
	Text    string
	NewLine bool
}

// TurnStartedData carries the user's transcribed speech, if any.
type TurnStartedData struct {
	baseEventData
	Text string
}

// NameDetectedData carries a newly detected user name. Listeners decide
// whether to persist it.
type NameDetectedData struct {
	baseEventData
	Name string
}

// VideoFrameData describes a camera frame.
type VideoFrameData struct {
	baseEventData
	Bytes int
	Error error
}
