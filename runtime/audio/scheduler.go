package audio

import (
	"sync"
	"time"
)

// PlaybackScheduler chains buffers back to back on an output clock. Each
// buffer starts at max(now, cursor) and moves the cursor to its end, so
// buffers delivered in order play without gaps or overlap regardless of
// arrival jitter.
//
// The active set is guarded by a mutex because devices report completion
// from their own threads.
type PlaybackScheduler struct {
	out OutputContext

	mu     sync.Mutex
	cursor time.Duration
	nextID uint64
	// active holds nil while the output is still creating the voice.
	active map[uint64]Voice
	// drains counts StopAll and Reset calls.
	drains uint64
}

// ScheduledBuffer describes where a buffer landed on the output clock.
type ScheduledBuffer struct {
	Start    time.Duration
	Duration time.Duration
}

// End returns the clock time at which the buffer finishes.
func (s ScheduledBuffer) End() time.Duration {
	return s.Start + s.Duration
}

// NewPlaybackScheduler creates a scheduler for out with the cursor at zero.
func NewPlaybackScheduler(out OutputContext) *PlaybackScheduler {
	return &PlaybackScheduler{
		out:    out,
		active: make(map[uint64]Voice),
	}
}

// Schedule places buf at max(now, cursor) and advances the cursor by its
// duration. onEnded, if set, runs after the buffer leaves the active set.
func (p *PlaybackScheduler) Schedule(buf Buffer, onEnded func()) (ScheduledBuffer, error) {
	if len(buf.Samples) == 0 {
		return ScheduledBuffer{}, ErrEmptyAudioData
	}

	p.mu.Lock()
	start := max(p.out.CurrentTime(), p.cursor)
	sb := ScheduledBuffer{Start: start, Duration: buf.Duration()}
	p.cursor = sb.End()
	id := p.nextID
	p.nextID++
	p.active[id] = nil
	drains := p.drains
	p.mu.Unlock()

	voice, err := p.out.Schedule(buf, start, func() {
		p.finish(id)
		if onEnded != nil {
			onEnded()
		}
	})

	p.mu.Lock()
	if err != nil {
		delete(p.active, id)
		// Give the slot back so the next buffer does not leave a gap.
		if p.cursor == sb.End() {
			p.cursor = start
		}
		p.mu.Unlock()
		return ScheduledBuffer{}, err
	}
	_, pending := p.active[id]
	if pending {
		p.active[id] = voice
	}
	drained := !pending && p.drains != drains
	p.mu.Unlock()

	// A StopAll or Reset that ran while the voice was being created missed it.
	if drained {
		voice.Stop()
	}
	return sb, nil
}

func (p *PlaybackScheduler) finish(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, id)
}

// StopAll stops every scheduled buffer and moves the cursor to the output
// clock's current time, so the next buffer starts now. It returns the number
// of buffers stopped.
func (p *PlaybackScheduler) StopAll() int {
	voices := p.drain()
	p.mu.Lock()
	p.cursor = p.out.CurrentTime()
	p.mu.Unlock()
	return stopVoices(voices)
}

// Reset stops every scheduled buffer and sets the cursor to zero. Used on
// teardown, when the output clock itself goes away.
func (p *PlaybackScheduler) Reset() int {
	voices := p.drain()
	p.mu.Lock()
	p.cursor = 0
	p.mu.Unlock()
	return stopVoices(voices)
}

func (p *PlaybackScheduler) drain() []Voice {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drains++
	voices := make([]Voice, 0, len(p.active))
	for id, v := range p.active {
		if v != nil {
			voices = append(voices, v)
		}
		delete(p.active, id)
	}
	return voices
}

// stopVoices runs outside the lock; a device may call onEnded synchronously.
func stopVoices(voices []Voice) int {
	for _, v := range voices {
		v.Stop()
	}
	return len(voices)
}

// Cursor returns the next free start time.
func (p *PlaybackScheduler) Cursor() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Active returns the number of scheduled buffers that have not finished.
// A buffer counts once the output has accepted it.
func (p *PlaybackScheduler) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, v := range p.active {
		if v != nil {
			n++
		}
	}
	return n
}
