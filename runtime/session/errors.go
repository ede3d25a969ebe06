package session

import "errors"

var (
	// ErrAlreadyStarted is returned by Start when the assistant is not idle.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNotActive is returned by SendFrame outside the active state.
	ErrNotActive = errors.New("session is not active")
	// ErrMicrophoneUnavailable wraps a denied or missing microphone.
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")
	// ErrAudioUnavailable wraps a failure to open an audio context.
	ErrAudioUnavailable = errors.New("audio device unavailable")
	// ErrConnectFailed wraps a failure to open the live connection.
	ErrConnectFailed = errors.New("live connection failed")
	// ErrStartCanceled is returned by Start when Stop ran during startup.
	ErrStartCanceled = errors.New("session start canceled")
	// ErrFrameRateLimited is returned by SendFrame when frames arrive faster
	// than the configured limit.
	ErrFrameRateLimited = errors.New("video frame rate limited")
)
