package audio

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mixer is a software OutputContext for pull-based devices. The device
// callback calls Render, which sums every voice overlapping the rendered
// window and advances the clock by the number of samples produced.
type Mixer struct {
	rate int

	mu     sync.Mutex
	pos    int64 // samples rendered so far
	voices []*mixVoice
	state  ContextState
}

type mixVoice struct {
	m       *Mixer
	samples []float32
	start   int64
	onEnded func()
	done    bool
}

// NewMixer creates a running mixer at rate.
func NewMixer(rate int) *Mixer {
	return &Mixer{rate: rate, state: StateRunning}
}

// State returns the mixer state.
func (m *Mixer) State() ContextState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Suspend pauses the clock; Render outputs silence until Resume.
func (m *Mixer) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRunning {
		m.state = StateSuspended
	}
}

// Resume restarts a suspended mixer.
func (m *Mixer) Resume(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return ErrContextClosed
	}
	m.state = StateRunning
	return nil
}

// SampleRate returns the output rate.
func (m *Mixer) SampleRate() int {
	return m.rate
}

// CurrentTime returns the rendered duration.
func (m *Mixer) CurrentTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SamplesDuration(int(m.pos), m.rate)
}

// Schedule queues buf to start at the clock time at. Start times in the past
// begin at the next rendered sample.
func (m *Mixer) Schedule(buf Buffer, at time.Duration, onEnded func()) (Voice, error) {
	if buf.SampleRate != m.rate {
		return nil, fmt.Errorf("buffer rate %d does not match output rate %d", buf.SampleRate, m.rate)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return nil, ErrContextClosed
	}
	v := &mixVoice{
		m:       m,
		samples: buf.Samples,
		start:   max(int64(at)*int64(m.rate)/int64(time.Second), m.pos),
		onEnded: onEnded,
	}
	m.voices = append(m.voices, v)
	return v, nil
}

// Render fills out with the mix of all voices for the next len(out) samples.
// Voices that finish inside the window fire their onEnded after the mix.
func (m *Mixer) Render(out []float32) {
	clear(out)

	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return
	}
	winStart, winEnd := m.pos, m.pos+int64(len(out))
	var ended []func()
	kept := m.voices[:0]
	for _, v := range m.voices {
		from := max(v.start, winStart)
		to := min(v.start+int64(len(v.samples)), winEnd)
		for i := from; i < to; i++ {
			out[i-winStart] += v.samples[i-v.start]
		}
		if v.start+int64(len(v.samples)) <= winEnd {
			v.done = true
			if v.onEnded != nil {
				ended = append(ended, v.onEnded)
			}
			continue
		}
		kept = append(kept, v)
	}
	clear(m.voices[len(kept):])
	m.voices = kept
	m.pos = winEnd
	m.mu.Unlock()

	for i, s := range out {
		out[i] = max(-1, min(1, s))
	}
	for _, fn := range ended {
		fn()
	}
}

// Pending returns the number of voices that have not finished.
func (m *Mixer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Close drops all voices without calling their callbacks.
func (m *Mixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateClosed
	for _, v := range m.voices {
		v.done = true
	}
	m.voices = nil
	return nil
}

// Stop removes the voice immediately and fires its onEnded.
func (v *mixVoice) Stop() {
	m := v.m
	m.mu.Lock()
	if v.done {
		m.mu.Unlock()
		return
	}
	v.done = true
	for i, other := range m.voices {
		if other == v {
			m.voices = append(m.voices[:i], m.voices[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if v.onEnded != nil {
		v.onEnded()
	}
}
