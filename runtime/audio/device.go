package audio

import (
	"context"
	"errors"
	"time"
)

// ErrContextClosed is returned when a closed input or output context is used.
var ErrContextClosed = errors.New("audio context is closed")

// ContextState mirrors the lifecycle of a platform audio context.
type ContextState int

// Context states.
const (
	StateRunning ContextState = iota
	StateSuspended
	StateClosed
)

// String returns a human-readable state name.
func (s ContextState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MicrophoneConstraints are the capture settings requested from the device.
type MicrophoneConstraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	SampleRate       int
	Channels         int
	// BlockSize is the number of samples per delivered block.
	BlockSize int
}

// DefaultBlockSize is the microphone block size in samples.
const DefaultBlockSize = 4096

// VoiceConstraints returns the constraints used for the assistant's
// microphone: all voice processing on, mono, at rate.
func VoiceConstraints(rate int) MicrophoneConstraints {
	return MicrophoneConstraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		SampleRate:       rate,
		Channels:         1,
		BlockSize:        DefaultBlockSize,
	}
}

// Backend opens audio contexts on a platform.
type Backend interface {
	OpenInput(ctx context.Context, sampleRate int) (InputContext, error)
	OpenOutput(ctx context.Context, sampleRate int) (OutputContext, error)
}

// InputContext is a capture context at a fixed sample rate.
type InputContext interface {
	State() ContextState
	Resume(ctx context.Context) error
	// OpenMicrophone requests exclusive microphone access. A denial or a
	// missing device is returned as an error.
	OpenMicrophone(ctx context.Context, constraints MicrophoneConstraints) (Microphone, error)
	Close() error
}

// Microphone delivers blocks of float samples in capture order. The Frames
// channel is closed when the microphone is closed or the device fails.
type Microphone interface {
	Frames() <-chan []float32
	SampleRate() int
	Close() error
}

// OutputContext is a playback context with its own monotonic clock.
type OutputContext interface {
	State() ContextState
	Resume(ctx context.Context) error
	SampleRate() int
	// CurrentTime is the output clock, starting at zero when the context opens.
	CurrentTime() time.Duration
	// Schedule plays buf starting at the absolute clock time at. onEnded is
	// called once, from any goroutine, when the buffer finishes or is stopped.
	Schedule(buf Buffer, at time.Duration, onEnded func()) (Voice, error)
	Close() error
}

// Voice is a scheduled buffer.
type Voice interface {
	Stop()
}
