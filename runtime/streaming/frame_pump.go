// Package streaming paces camera stills into a live session.
//
// A FramePump captures, downsamples and sends one frame per interval while
// both live audio and vision are switched on. Turning either off stops the
// pump before the call returns, so no frame reaches a connection that has
// gone audio-only or away.
package streaming

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/redilah/CulinaryAI/runtime/logger"
	"github.com/redilah/CulinaryAI/runtime/media"
)

// DefaultFrameInterval is the time between captured frames.
const DefaultFrameInterval = 2 * time.Second

// FrameSource captures one encoded still.
type FrameSource interface {
	CaptureFrame(ctx context.Context) ([]byte, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(ctx context.Context) ([]byte, error)

// CaptureFrame implements FrameSource.
func (f FrameSourceFunc) CaptureFrame(ctx context.Context) ([]byte, error) { return f(ctx) }

// FrameSender delivers a JPEG frame, typically session.Assistant.
type FrameSender interface {
	SendFrame(jpeg []byte) error
}

// FramePumpConfig configures a FramePump.
type FramePumpConfig struct {
	// Interval between frames. Default: 2s.
	Interval time.Duration
	// Frame is the output geometry and quality. Zero values select 640x480
	// at quality 60.
	Frame media.FrameConfig
}

// FramePumpStats counts pump activity.
type FramePumpStats struct {
	Sent          uint64
	CaptureErrors uint64
	EncodeErrors  uint64
	SendErrors    uint64
}

// FramePump sends frames from a source to a sender while both live audio
// and vision are on.
type FramePump struct {
	source FrameSource
	sender FrameSender
	cfg    FramePumpConfig

	mu     sync.Mutex
	live   bool
	vision bool
	cancel context.CancelFunc
	done   chan struct{}

	sent, captureErrs, encodeErrs, sendErrs atomic.Uint64
}

// NewFramePump creates a stopped pump.
func NewFramePump(source FrameSource, sender FrameSender, cfg FramePumpConfig) *FramePump {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultFrameInterval
	}
	return &FramePump{source: source, sender: sender, cfg: cfg}
}

// SetLive records whether the live audio session is active.
func (p *FramePump) SetLive(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live = on
	p.reconcile()
}

// SetVision records whether vision mode is on.
func (p *FramePump) SetVision(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vision = on
	p.reconcile()
}

// Live reports the live audio flag.
func (p *FramePump) Live() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Vision reports the vision flag.
func (p *FramePump) Vision() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vision
}

// Running reports whether frames are being sent.
func (p *FramePump) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Close turns both modes off and waits for the pump to stop.
func (p *FramePump) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live, p.vision = false, false
	p.reconcile()
}

// Stats returns a snapshot of the counters.
func (p *FramePump) Stats() FramePumpStats {
	return FramePumpStats{
		Sent:          p.sent.Load(),
		CaptureErrors: p.captureErrs.Load(),
		EncodeErrors:  p.encodeErrs.Load(),
		SendErrors:    p.sendErrs.Load(),
	}
}

// reconcile starts or stops the pump goroutine. Called with mu held; the
// goroutine never takes mu, so waiting for it here cannot deadlock.
func (p *FramePump) reconcile() {
	want := p.live && p.vision
	switch {
	case want && p.cancel == nil:
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		p.done = make(chan struct{})
		go p.run(ctx, p.done)
		logger.Debug("FramePump: started", "interval", p.cfg.Interval)
	case !want && p.cancel != nil:
		p.cancel()
		<-p.done
		p.cancel, p.done = nil, nil
		logger.Debug("FramePump: stopped", "sent", p.sent.Load())
	}
}

func (p *FramePump) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	limiter := rate.NewLimiter(rate.Every(p.cfg.Interval), 1)
	limiter.Allow() // first frame one interval after start
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		p.pumpOne(ctx)
	}
}

func (p *FramePump) pumpOne(ctx context.Context) {
	raw, err := p.source.CaptureFrame(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.captureErrs.Add(1)
		logger.Warn("FramePump: capture failed", "error", err)
		return
	}

	frame, err := media.PrepareFrame(raw, p.cfg.Frame)
	if err != nil {
		p.encodeErrs.Add(1)
		logger.Warn("FramePump: frame dropped", "error", err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	if err := p.sender.SendFrame(frame.Data); err != nil {
		p.sendErrs.Add(1)
		logger.Debug("FramePump: send failed", "error", err)
		return
	}
	p.sent.Add(1)
}
