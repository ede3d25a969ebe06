// Package mock provides deterministic audio devices for tests: an output
// context driven by a manual clock and a microphone fed by the test.
package mock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/redilah/CulinaryAI/runtime/audio"
)

// ErrPermissionDenied simulates a refused microphone permission.
var ErrPermissionDenied = errors.New("microphone permission denied")

// Backend hands out the configured Input and Output and records the rates
// they were opened at.
type Backend struct {
	Input     *Input
	Output    *Output
	InputErr  error
	OutputErr error

	mu         sync.Mutex
	inputRate  int
	outputRate int
}

// NewBackend returns a backend with a fresh input and an output at outputRate.
func NewBackend(outputRate int) *Backend {
	return &Backend{Input: NewInput(), Output: NewOutput(outputRate)}
}

// OpenInput implements audio.Backend.
func (b *Backend) OpenInput(_ context.Context, sampleRate int) (audio.InputContext, error) {
	if b.InputErr != nil {
		return nil, b.InputErr
	}
	b.mu.Lock()
	b.inputRate = sampleRate
	b.mu.Unlock()
	b.Input.reopen()
	return b.Input, nil
}

// OpenOutput implements audio.Backend.
func (b *Backend) OpenOutput(_ context.Context, sampleRate int) (audio.OutputContext, error) {
	if b.OutputErr != nil {
		return nil, b.OutputErr
	}
	b.mu.Lock()
	b.outputRate = sampleRate
	b.mu.Unlock()
	b.Output.reopen()
	return b.Output, nil
}

// Rates returns the rates the contexts were last opened at.
func (b *Backend) Rates() (input, output int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inputRate, b.outputRate
}

// Input is a capture context whose microphone the test feeds.
type Input struct {
	// MicErr, when set, is returned by OpenMicrophone.
	MicErr error

	mu          sync.Mutex
	state       audio.ContextState
	resumed     int
	mic         *Microphone
	constraints audio.MicrophoneConstraints
}

// NewInput returns a running input context.
func NewInput() *Input {
	return &Input{mic: newMicrophone()}
}

func (in *Input) reopen() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state == audio.StateClosed {
		in.state = audio.StateRunning
	}
}

// Suspend puts the context in the suspended state.
func (in *Input) Suspend() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state = audio.StateSuspended
}

// State implements audio.InputContext.
func (in *Input) State() audio.ContextState {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// Resume implements audio.InputContext.
func (in *Input) Resume(_ context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state == audio.StateClosed {
		return audio.ErrContextClosed
	}
	in.state = audio.StateRunning
	in.resumed++
	return nil
}

// Resumed returns how many times Resume was called.
func (in *Input) Resumed() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.resumed
}

// OpenMicrophone implements audio.InputContext.
func (in *Input) OpenMicrophone(_ context.Context, c audio.MicrophoneConstraints) (audio.Microphone, error) {
	if in.MicErr != nil {
		return nil, in.MicErr
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state == audio.StateClosed {
		return nil, audio.ErrContextClosed
	}
	in.constraints = c
	in.mic.open(c.SampleRate)
	return in.mic, nil
}

// Constraints returns the constraints of the last OpenMicrophone call.
func (in *Input) Constraints() audio.MicrophoneConstraints {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.constraints
}

// Mic returns the microphone handed out by OpenMicrophone.
func (in *Input) Mic() *Microphone {
	return in.mic
}

// Close implements audio.InputContext.
func (in *Input) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state = audio.StateClosed
	return nil
}

// Closed reports whether the context is closed.
func (in *Input) Closed() bool {
	return in.State() == audio.StateClosed
}

// Microphone is fed by Push.
type Microphone struct {
	mu     sync.Mutex
	frames chan []float32
	rate   int
	isOpen bool
}

func newMicrophone() *Microphone {
	return &Microphone{}
}

func (m *Microphone) open(rate int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = make(chan []float32, 256)
	m.rate = rate
	m.isOpen = true
}

// Push delivers a block. It returns false when the microphone is closed.
func (m *Microphone) Push(samples []float32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isOpen {
		return false
	}
	select {
	case m.frames <- samples:
		return true
	default:
		return false
	}
}

// Frames implements audio.Microphone.
func (m *Microphone) Frames() <-chan []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// SampleRate implements audio.Microphone.
func (m *Microphone) SampleRate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// Close implements audio.Microphone.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isOpen {
		m.isOpen = false
		close(m.frames)
	}
	return nil
}

// IsOpen reports whether the microphone is held.
func (m *Microphone) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isOpen
}

// Scheduled records one Schedule call.
type Scheduled struct {
	Start    time.Duration
	Duration time.Duration
}

// Output is an output context whose clock only moves on Advance.
type Output struct {
	// ScheduleErr, when set, is returned by Schedule.
	ScheduleErr error

	mu        sync.Mutex
	rate      int
	now       time.Duration
	state     audio.ContextState
	resumed   int
	scheduled []Scheduled
	voices    []*voice
	stopped   int
}

type voice struct {
	o       *Output
	end     time.Duration
	onEnded func()
	done    bool
}

// NewOutput returns a running output context at rate with the clock at zero.
func NewOutput(rate int) *Output {
	return &Output{rate: rate}
}

func (o *Output) reopen() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == audio.StateClosed {
		o.state = audio.StateRunning
	}
}

// Suspend puts the context in the suspended state.
func (o *Output) Suspend() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = audio.StateSuspended
}

// State implements audio.OutputContext.
func (o *Output) State() audio.ContextState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Resume implements audio.OutputContext.
func (o *Output) Resume(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == audio.StateClosed {
		return audio.ErrContextClosed
	}
	o.state = audio.StateRunning
	o.resumed++
	return nil
}

// Resumed returns how many times Resume was called.
func (o *Output) Resumed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resumed
}

// SampleRate implements audio.OutputContext.
func (o *Output) SampleRate() int {
	return o.rate
}

// CurrentTime implements audio.OutputContext.
func (o *Output) CurrentTime() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

// Schedule implements audio.OutputContext.
func (o *Output) Schedule(buf audio.Buffer, at time.Duration, onEnded func()) (audio.Voice, error) {
	if o.ScheduleErr != nil {
		return nil, o.ScheduleErr
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == audio.StateClosed {
		return nil, audio.ErrContextClosed
	}
	o.scheduled = append(o.scheduled, Scheduled{Start: at, Duration: buf.Duration()})
	v := &voice{o: o, end: max(at, o.now) + buf.Duration(), onEnded: onEnded}
	o.voices = append(o.voices, v)
	return v, nil
}

// Advance moves the clock forward by d and ends every voice that finishes
// by the new time, in end order.
func (o *Output) Advance(d time.Duration) {
	o.mu.Lock()
	o.now += d
	var ended []*voice
	kept := o.voices[:0]
	for _, v := range o.voices {
		if v.end <= o.now {
			v.done = true
			ended = append(ended, v)
			continue
		}
		kept = append(kept, v)
	}
	o.voices = kept
	o.mu.Unlock()

	sort.SliceStable(ended, func(i, j int) bool { return ended[i].end < ended[j].end })
	for _, v := range ended {
		if v.onEnded != nil {
			v.onEnded()
		}
	}
}

// Scheduled returns every Schedule call in order.
func (o *Output) Scheduled() []Scheduled {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Scheduled(nil), o.scheduled...)
}

// Playing returns the number of voices neither finished nor stopped.
func (o *Output) Playing() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.voices)
}

// Stopped returns how many voices were stopped before finishing.
func (o *Output) Stopped() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}

// Close implements audio.OutputContext. Remaining voices are dropped.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = audio.StateClosed
	o.voices = nil
	return nil
}

// Closed reports whether the context is closed.
func (o *Output) Closed() bool {
	return o.State() == audio.StateClosed
}

func (v *voice) Stop() {
	o := v.o
	o.mu.Lock()
	if v.done {
		o.mu.Unlock()
		return
	}
	v.done = true
	o.stopped++
	for i, other := range o.voices {
		if other == v {
			o.voices = append(o.voices[:i], o.voices[i+1:]...)
			break
		}
	}
	o.mu.Unlock()

	if v.onEnded != nil {
		v.onEnded()
	}
}
