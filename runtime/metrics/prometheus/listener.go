package prometheus

import (
	"github.com/redilah/CulinaryAI/runtime/events"
)

// Status constants for metric labels.
const (
	statusSuccess   = "success"
	statusError     = "error"
	statusScheduled = "scheduled"
	statusDropped   = "dropped"
)

// MetricsListener records session events as Prometheus metrics.
// It implements the events.Listener signature and should be registered
// with an EventBus using SubscribeAll.
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes an event and records relevant metrics.
func (l *MetricsListener) Handle(event *events.Event) {
	//exhaustive:ignore
	switch event.Type {
	case events.EventSessionActive:
		l.handleSessionActive(event)
	case events.EventSessionStartFailed:
		l.handleSessionStartFailed(event)
	case events.EventSessionStopped:
		l.handleSessionStopped(event)
	case events.EventAudioFrameSent:
		if data, ok := event.Data.(events.AudioFrameData); ok {
			RecordAudioFrameSent(data.Bytes)
		}
	case events.EventAudioChunkScheduled:
		if data, ok := event.Data.(events.AudioChunkData); ok {
			RecordAudioChunk(statusScheduled, data.Duration.Seconds())
		}
	case events.EventAudioChunkDropped:
		RecordAudioChunk(statusDropped, 0)
	case events.EventPlaybackInterrupted:
		if data, ok := event.Data.(events.PlaybackInterruptedData); ok {
			RecordInterruption(data.StoppedBuffers)
		}
	case events.EventTranscriptDelta:
		if data, ok := event.Data.(events.TranscriptDeltaData); ok {
			RecordTranscriptDelta(data.NewLine)
		}
	case events.EventTurnStarted:
		RecordTurn()
	case events.EventVideoFrameSent:
		RecordVideoFrame(statusSuccess)
	case events.EventVideoFrameFailed:
		RecordVideoFrame(statusError)
	case events.EventNameDetected:
		RecordNameDetected()
	default:
		// Ignore events that don't have metrics
	}
}

func (l *MetricsListener) handleSessionActive(event *events.Event) {
	if data, ok := event.Data.(events.SessionActiveData); ok {
		RecordSessionActive(data.StartupDuration.Seconds())
	}
}

func (l *MetricsListener) handleSessionStartFailed(event *events.Event) {
	if data, ok := event.Data.(events.SessionStartFailedData); ok {
		RecordSessionStartFailed(data.Reason)
	}
}

func (l *MetricsListener) handleSessionStopped(event *events.Event) {
	if data, ok := event.Data.(events.SessionStoppedData); ok {
		RecordSessionStopped(data.Reason, data.Duration.Seconds())
	}
}

// Listener returns an events.Listener function that can be registered with an EventBus.
func (l *MetricsListener) Listener() events.Listener {
	return l.Handle
}
