// Package audio holds the audio plumbing of the live assistant: PCM
// conversion, resampling, the device abstractions the session drives, a
// gapless playback scheduler and a software mixer that renders scheduled
// buffers for a pull-based output device.
//
// Device backends live in subpackages: portaudio (real hardware, built with
// the "portaudio" tag) and mock (deterministic clocks for tests).
package audio
