//go:build portaudio

// Package portaudio provides microphone capture and speaker playback using
// PortAudio. Build with -tags portaudio; without the tag New reports
// ErrUnavailable.
package portaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/redilah/CulinaryAI/runtime/audio"
	"github.com/redilah/CulinaryAI/runtime/logger"
)

const (
	// OutputFramesPerBuffer is 40ms of audio at 24kHz
	OutputFramesPerBuffer = 960

	frameChannelSize = 32
)

// Backend opens PortAudio default devices.
type Backend struct {
	mu     sync.Mutex
	closed bool
}

// New initializes PortAudio. Call Close when done.
func New() (*Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &Backend{}, nil
}

// Close terminates PortAudio.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return portaudio.Terminate()
}

// OpenInput implements audio.Backend.
func (b *Backend) OpenInput(_ context.Context, sampleRate int) (audio.InputContext, error) {
	return &inputContext{rate: sampleRate}, nil
}

// OpenOutput implements audio.Backend. The device pulls samples from a
// software mixer, whose rendered sample count is the output clock.
func (b *Backend) OpenOutput(_ context.Context, sampleRate int) (audio.OutputContext, error) {
	mixer := audio.NewMixer(sampleRate)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), OutputFramesPerBuffer, mixer.Render)
	if err != nil {
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}
	logger.Debug("PortAudio: output stream started", "rate", sampleRate)
	return &outputContext{Mixer: mixer, stream: stream}, nil
}

type inputContext struct {
	rate int

	mu     sync.Mutex
	closed bool
	mics   []*microphone
}

func (c *inputContext) State() audio.ContextState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return audio.StateClosed
	}
	return audio.StateRunning
}

func (c *inputContext) Resume(_ context.Context) error {
	if c.State() == audio.StateClosed {
		return audio.ErrContextClosed
	}
	return nil
}

// OpenMicrophone opens the default input device. PortAudio has no voice
// processing, so the echo/noise/gain constraints are advisory. When the
// device refuses the requested rate it is opened at its default rate and
// blocks are resampled.
func (c *inputContext) OpenMicrophone(ctx context.Context, cons audio.MicrophoneConstraints) (audio.Microphone, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, audio.ErrContextClosed
	}

	rate := cons.SampleRate
	if rate == 0 {
		rate = c.rate
	}
	blockSize := cons.BlockSize
	if blockSize == 0 {
		blockSize = audio.DefaultBlockSize
	}

	buf := make([]float32, blockSize)
	deviceRate := rate
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(rate), blockSize, buf)
	if err != nil {
		dev, devErr := portaudio.DefaultInputDevice()
		if devErr != nil {
			return nil, fmt.Errorf("no input device: %w", devErr)
		}
		deviceRate = int(dev.DefaultSampleRate)
		logger.Warn("PortAudio: input rate unsupported, resampling", "requested", rate, "device", deviceRate)
		stream, err = portaudio.OpenDefaultStream(1, 0, float64(deviceRate), blockSize, buf)
		if err != nil {
			return nil, fmt.Errorf("failed to open input stream: %w", err)
		}
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	m := &microphone{
		stream:     stream,
		buf:        buf,
		rate:       rate,
		deviceRate: deviceRate,
		frames:     make(chan []float32, frameChannelSize),
		done:       make(chan struct{}),
	}
	c.mics = append(c.mics, m)
	go m.captureLoop()

	logger.Info("PortAudio: microphone open", "rate", rate, "blockSize", blockSize,
		"echoCancellation", cons.EchoCancellation, "noiseSuppression", cons.NoiseSuppression,
		"autoGainControl", cons.AutoGainControl)
	return m, nil
}

func (c *inputContext) Close() error {
	c.mu.Lock()
	mics := c.mics
	c.mics = nil
	c.closed = true
	c.mu.Unlock()

	for _, m := range mics {
		_ = m.Close()
	}
	return nil
}

type microphone struct {
	stream     *portaudio.Stream
	buf        []float32
	rate       int
	deviceRate int
	frames     chan []float32
	done       chan struct{}
	closeOnce  sync.Once

	sent, dropped uint64
}

func (m *microphone) Frames() <-chan []float32 { return m.frames }
func (m *microphone) SampleRate() int          { return m.rate }

func (m *microphone) captureLoop() {
	defer close(m.frames)
	for {
		select {
		case <-m.done:
			logger.Debug("PortAudio: capture stopped", "sent", m.sent, "dropped", m.dropped)
			return
		default:
		}

		if err := m.stream.Read(); err != nil {
			select {
			case <-m.done:
				return
			default:
			}
			logger.Warn("PortAudio: input read failed", "error", err)
			continue
		}

		block := make([]float32, len(m.buf))
		copy(block, m.buf)
		if m.deviceRate != m.rate {
			resampled, err := audio.ResampleFloat32(block, m.deviceRate, m.rate)
			if err != nil {
				continue
			}
			block = resampled
		}

		select {
		case m.frames <- block:
			m.sent++
		case <-m.done:
			return
		default:
			m.dropped++
		}
	}
}

func (m *microphone) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		if stopErr := m.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := m.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}

type outputContext struct {
	*audio.Mixer
	stream    *portaudio.Stream
	closeOnce sync.Once
}

func (o *outputContext) Close() error {
	var err error
	o.closeOnce.Do(func() {
		if stopErr := o.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		_ = o.stream.Close()
		_ = o.Mixer.Close()
	})
	return err
}
