// Package prometheus provides Prometheus metrics for live cooking sessions.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "culinaryai"

var (
	// sessionsActive is a gauge of currently live sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently live sessions",
		},
	)

	// sessionStartsTotal is a counter of Start outcomes.
	sessionStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_starts_total",
			Help:      "Total number of session starts by outcome",
		},
		[]string{"status", "reason"}, // status: success, error; reason: microphone, audio, connect, canceled
	)

	// sessionStartupDuration is a histogram of time from Start to live.
	sessionStartupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_startup_duration_seconds",
			Help:      "Time from Start until the session is live in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// sessionDuration is a histogram of live session length.
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Histogram of live session duration in seconds",
			Buckets:   []float64{1, 10, 30, 60, 300, 600, 1800, 3600},
		},
		[]string{"reason"}, // reason: stopped, remote_close
	)

	// audioFramesSentTotal counts microphone blocks sent upstream.
	audioFramesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_sent_total",
			Help:      "Total number of microphone frames sent to the model",
		},
	)

	// audioBytesSentTotal counts PCM bytes sent upstream.
	audioBytesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_sent_total",
			Help:      "Total PCM bytes sent to the model",
		},
	)

	// audioChunksTotal counts model audio chunks by outcome.
	audioChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_total",
			Help:      "Total number of model audio chunks received",
		},
		[]string{"status"}, // status: scheduled, dropped
	)

	// audioPlaybackSeconds sums scheduled model audio.
	audioPlaybackSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_playback_seconds_total",
			Help:      "Total seconds of model audio scheduled for playback",
		},
	)

	// interruptionsTotal counts barge-ins.
	interruptionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_interruptions_total",
			Help:      "Total number of playback interruptions",
		},
	)

	// interruptedBuffersTotal counts buffers cut by barge-ins.
	interruptedBuffersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_interrupted_buffers_total",
			Help:      "Total number of playback buffers stopped by interruptions",
		},
	)

	// transcriptDeltasTotal counts output transcription deltas.
	transcriptDeltasTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_deltas_total",
			Help:      "Total number of transcript deltas delivered",
		},
		[]string{"line"}, // line: new, append
	)

	// turnsTotal counts user turns signalled by input transcription.
	turnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of user turns",
		},
	)

	// videoFramesTotal counts camera frames by outcome.
	videoFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_frames_total",
			Help:      "Total number of camera frames by outcome",
		},
		[]string{"status"}, // status: success, error
	)

	// nameDetectionsTotal counts newly detected user names.
	nameDetectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "name_detections_total",
			Help:      "Total number of user names detected in transcripts",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		sessionsActive,
		sessionStartsTotal,
		sessionStartupDuration,
		sessionDuration,
		audioFramesSentTotal,
		audioBytesSentTotal,
		audioChunksTotal,
		audioPlaybackSeconds,
		interruptionsTotal,
		interruptedBuffersTotal,
		transcriptDeltasTotal,
		turnsTotal,
		videoFramesTotal,
		nameDetectionsTotal,
	}
)

// RecordSessionActive records a session that went live.
func RecordSessionActive(startupSeconds float64) {
	sessionsActive.Inc()
	sessionStartsTotal.WithLabelValues(statusSuccess, "").Inc()
	sessionStartupDuration.Observe(startupSeconds)
}

// RecordSessionStartFailed records a Start that returned an error.
func RecordSessionStartFailed(reason string) {
	sessionStartsTotal.WithLabelValues(statusError, reason).Inc()
}

// RecordSessionStopped records the end of a live session.
func RecordSessionStopped(reason string, durationSeconds float64) {
	sessionsActive.Dec()
	sessionDuration.WithLabelValues(reason).Observe(durationSeconds)
}

// RecordAudioFrameSent records one microphone block.
func RecordAudioFrameSent(bytes int) {
	audioFramesSentTotal.Inc()
	if bytes > 0 {
		audioBytesSentTotal.Add(float64(bytes))
	}
}

// RecordAudioChunk records one model audio chunk.
func RecordAudioChunk(status string, durationSeconds float64) {
	audioChunksTotal.WithLabelValues(status).Inc()
	if durationSeconds > 0 {
		audioPlaybackSeconds.Add(durationSeconds)
	}
}

// RecordInterruption records a barge-in and the buffers it stopped.
func RecordInterruption(stoppedBuffers int) {
	interruptionsTotal.Inc()
	if stoppedBuffers > 0 {
		interruptedBuffersTotal.Add(float64(stoppedBuffers))
	}
}

// RecordTranscriptDelta records one delta delivered to the sink.
func RecordTranscriptDelta(newLine bool) {
	line := "append"
	if newLine {
		line = "new"
	}
	transcriptDeltasTotal.WithLabelValues(line).Inc()
}

// RecordTurn records an input transcription signal.
func RecordTurn() {
	turnsTotal.Inc()
}

// RecordVideoFrame records one camera frame.
func RecordVideoFrame(status string) {
	videoFramesTotal.WithLabelValues(status).Inc()
}

// RecordNameDetected records a newly detected user name.
func RecordNameDetected() {
	nameDetectionsTotal.Inc()
}
