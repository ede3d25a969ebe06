// Package session runs the live cooking assistant: one realtime voice and
// vision conversation about a recipe, from microphone to speaker.
//
// An Assistant owns its audio contexts, microphone and live connection for
// the lifetime of a session. Everything the connection delivers is handled on
// a single event-loop goroutine in arrival order:
//
//   - input transcription marks the start of a new user turn
//   - output transcription is cleaned and forwarded to the transcript sink
//   - model audio is scheduled back to back on the output clock
//   - an interruption stops playback and rewinds the cursor to now
//   - a closed connection tears the session down
//
// The assistant never writes storage. A newly detected user name is published
// as an events.EventNameDetected and used for the next session's instruction.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	pkgerrors "github.com/redilah/CulinaryAI/pkg/errors"
	"github.com/redilah/CulinaryAI/runtime/audio"
	"github.com/redilah/CulinaryAI/runtime/events"
	"github.com/redilah/CulinaryAI/runtime/logger"
	"github.com/redilah/CulinaryAI/runtime/providers/gemini"
	"github.com/redilah/CulinaryAI/runtime/transcript"
)

const tracerName = "github.com/redilah/CulinaryAI/runtime/session"

// Stop reasons reported in events.SessionStoppedData.
const (
	ReasonStopped     = "stopped"
	ReasonRemoteClose = "remote_close"
)

// Config is the session-scoped context of an Assistant.
type Config struct {
	Recipe Recipe
	// RememberedName is the user's name from an earlier session, if known.
	RememberedName string

	Model            string
	Voice            string
	InputSampleRate  int
	OutputSampleRate int
	// MicBlockSize is the number of samples per microphone block. Zero
	// selects audio.DefaultBlockSize.
	MicBlockSize int

	// FrameRateLimit bounds SendFrame. Zero selects one frame per second;
	// rate.Inf disables the limit.
	FrameRateLimit rate.Limit

	// NameExtractor finds the user's name in output transcription. Nil
	// selects transcript.NewPhraseExtractor.
	NameExtractor transcript.NameExtractor
}

// Dependencies are the collaborators an Assistant drives.
type Dependencies struct {
	Audio     audio.Backend
	Connector Connector
	// Transcript receives output transcription from the event loop. It must
	// not call Stop.
	Transcript transcript.Sink
	// Events receives lifecycle and activity events. Optional.
	Events *events.EventBus
	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer
}

// Assistant is a restartable live cooking session. Start, Stop and SendFrame
// are safe for concurrent use.
type Assistant struct {
	cfg       Config
	deps      Dependencies
	extractor transcript.NameExtractor
	limiter   *rate.Limiter

	mu          sync.Mutex
	state       State
	name        string
	sessionID   string
	cur         *run
	startCancel context.CancelFunc
	startDone   chan struct{}
}

// run holds everything one session acquires.
type run struct {
	id        string
	ctx       context.Context
	emitter   *events.Emitter
	startedAt time.Time

	input     audio.InputContext
	output    audio.OutputContext
	mic       audio.Microphone
	remote    Remote
	scheduler *audio.PlaybackScheduler
	agg       *transcript.Aggregator

	remoteOnce sync.Once
	stopCh     chan struct{}
	loopDone   chan struct{}
	stopDone   chan struct{}
}

// NewAssistant validates deps and applies defaults to cfg.
func NewAssistant(cfg Config, deps Dependencies) (*Assistant, error) {
	if deps.Audio == nil {
		return nil, errors.New("audio backend is required")
	}
	if deps.Connector == nil {
		return nil, errors.New("connector is required")
	}
	if strings.TrimSpace(cfg.Recipe.Title) == "" {
		return nil, errors.New("recipe title is required")
	}

	if cfg.Model == "" {
		cfg.Model = gemini.DefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = gemini.DefaultVoice
	}
	if cfg.InputSampleRate == 0 {
		cfg.InputSampleRate = gemini.DefaultInputSampleRate
	}
	if cfg.OutputSampleRate == 0 {
		cfg.OutputSampleRate = gemini.DefaultOutputSampleRate
	}
	if cfg.FrameRateLimit == 0 {
		cfg.FrameRateLimit = rate.Every(time.Second)
	}
	extractor := cfg.NameExtractor
	if extractor == nil {
		extractor = transcript.NewPhraseExtractor()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}

	return &Assistant{
		cfg:       cfg,
		deps:      deps,
		extractor: extractor,
		limiter:   rate.NewLimiter(cfg.FrameRateLimit, 1),
		name:      strings.TrimSpace(cfg.RememberedName),
	}, nil
}

// State returns the lifecycle state.
func (a *Assistant) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SessionID returns the ID of the current or most recent session.
func (a *Assistant) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// RememberedName returns the user's name as currently known.
func (a *Assistant) RememberedName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name
}

// Start opens both audio contexts, the microphone and the live connection,
// then begins streaming microphone audio. step is the recipe step the user
// is on. On failure every acquired resource is released, the assistant is
// idle again and the returned error wraps ErrAudioUnavailable,
// ErrMicrophoneUnavailable, ErrConnectFailed or ErrStartCanceled.
func (a *Assistant) Start(ctx context.Context, step string) error {
	id := uuid.NewString()
	logCtx := logger.WithLoggingContext(ctx, &logger.LoggingFields{
		SessionID: id,
		Recipe:    a.cfg.Recipe.Title,
		Model:     a.cfg.Model,
		Component: "session",
	})

	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.state = StateStarting
	a.sessionID = id
	startCtx, cancel := context.WithCancel(logCtx)
	startDone := make(chan struct{})
	a.startCancel, a.startDone = cancel, startDone
	name := a.name
	a.mu.Unlock()
	defer close(startDone)
	defer cancel()

	r := &run{
		id:        id,
		ctx:       context.WithoutCancel(logCtx),
		emitter:   events.NewEmitter(a.deps.Events, id),
		startedAt: time.Now(),
		stopCh:    make(chan struct{}),
		loopDone:  make(chan struct{}),
		stopDone:  make(chan struct{}),
	}

	startCtx, span := a.deps.Tracer.Start(startCtx, "session.start", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.String("recipe.title", a.cfg.Recipe.Title),
		attribute.String("gemini.model", a.cfg.Model),
		attribute.Bool("user.name_known", name != ""),
	))
	defer span.End()

	r.emitter.SessionStarting(a.cfg.Recipe.Title, step, a.cfg.Model)
	logger.SessionEvent(startCtx, id, "starting", "step", step)

	if reason, err := a.acquire(startCtx, r, step, name); err != nil {
		return a.abortStart(startCtx, r, span, reason, err)
	}

	a.mu.Lock()
	if startCtx.Err() != nil {
		a.mu.Unlock()
		return a.abortStart(startCtx, r, span, "canceled", ErrStartCanceled)
	}
	a.state = StateActive
	a.cur = r
	a.startCancel = nil
	a.mu.Unlock()

	startup := time.Since(r.startedAt)
	r.emitter.SessionActive(startup)
	logger.SessionEvent(startCtx, id, "active", "startup", startup)

	go a.loop(r)
	span.SetStatus(codes.Ok, "")
	return nil
}

// acquire opens the session's resources in order. It returns a short reason
// with the error for events and logs.
func (a *Assistant) acquire(ctx context.Context, r *run, step, name string) (string, error) {
	instruction, err := BuildInstruction(a.cfg.Recipe, step, name)
	if err != nil {
		return "instruction", err
	}

	if r.input, err = a.deps.Audio.OpenInput(ctx, a.cfg.InputSampleRate); err != nil {
		return "audio", fmt.Errorf("%w: input: %w", ErrAudioUnavailable, err)
	}
	if r.output, err = a.deps.Audio.OpenOutput(ctx, a.cfg.OutputSampleRate); err != nil {
		return "audio", fmt.Errorf("%w: output: %w", ErrAudioUnavailable, err)
	}
	resumeIfSuspended(ctx, "input", r.input)
	resumeIfSuspended(ctx, "output", r.output)

	constraints := audio.VoiceConstraints(a.cfg.InputSampleRate)
	if a.cfg.MicBlockSize > 0 {
		constraints.BlockSize = a.cfg.MicBlockSize
	}
	if r.mic, err = r.input.OpenMicrophone(ctx, constraints); err != nil {
		return "microphone", fmt.Errorf("%w: %w", ErrMicrophoneUnavailable, err)
	}

	if r.remote, err = a.deps.Connector.Connect(ctx, gemini.LiveConfig{
		Model:             a.cfg.Model,
		Voice:             a.cfg.Voice,
		SystemInstruction: instruction,
		InputSampleRate:   a.cfg.InputSampleRate,
	}); err != nil {
		return "connect", fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	r.scheduler = audio.NewPlaybackScheduler(r.output)
	r.agg = transcript.NewAggregator(a.deps.Transcript)
	return "", nil
}

type resumable interface {
	State() audio.ContextState
	Resume(ctx context.Context) error
}

// resumeIfSuspended resumes a context held back by the platform. A failed
// resume is not fatal; the device may still start on first use.
func resumeIfSuspended(ctx context.Context, which string, c resumable) {
	if c.State() != audio.StateSuspended {
		return
	}
	if err := c.Resume(ctx); err != nil {
		logger.WarnContext(ctx, "Session: failed to resume audio context", "context", which, "error", err)
	}
}

func (a *Assistant) abortStart(ctx context.Context, r *run, span trace.Span, reason string, err error) error {
	r.release(ctx)

	a.mu.Lock()
	a.state = StateIdle
	a.startCancel = nil
	a.mu.Unlock()

	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	r.emitter.SessionStartFailed(reason, err)
	logger.SessionError(ctx, r.id, "start", err, "reason", reason)
	return pkgerrors.New("session", "Start", err).WithDetail("reason", reason)
}

// Stop ends the session and releases every resource. It is safe in any
// state and more than once, and returns once teardown is complete: no
// transcript or audio callbacks happen after it returns. In-flight sends are
// not flushed.
func (a *Assistant) Stop() error {
	a.stop(nil, ReasonStopped, nil)
	return nil
}

// stop tears down the current session. A non-nil target limits it to that
// run, so a late remote close never ends a session started after it.
func (a *Assistant) stop(target *run, reason string, cause error) {
	a.mu.Lock()
	if target != nil && a.cur != target {
		a.mu.Unlock()
		return
	}
	switch a.state {
	case StateStarting:
		a.startCancel()
		done := a.startDone
		a.mu.Unlock()
		<-done
		return
	case StateStopping:
		done := a.cur.stopDone
		a.mu.Unlock()
		<-done
		return
	case StateActive:
	default:
		a.mu.Unlock()
		return
	}
	r := a.cur
	a.state = StateStopping
	a.mu.Unlock()

	ctx, span := a.deps.Tracer.Start(r.ctx, "session.stop", trace.WithAttributes(
		attribute.String("session.id", r.id),
		attribute.String("stop.reason", reason),
	))
	defer span.End()

	close(r.stopCh)
	r.closeRemote(ctx)
	<-r.loopDone
	r.release(ctx)

	duration := time.Since(r.startedAt)
	if cause != nil {
		span.RecordError(cause)
	}
	r.emitter.SessionStopped(reason, duration, cause)
	logger.SessionEvent(ctx, r.id, "stopped", "reason", reason, "duration", duration)

	a.mu.Lock()
	a.state = StateIdle
	a.cur = nil
	a.mu.Unlock()
	close(r.stopDone)
}

func (r *run) closeRemote(ctx context.Context) {
	if r.remote == nil {
		return
	}
	r.remoteOnce.Do(func() {
		if err := r.remote.Close(); err != nil {
			logger.DebugContext(ctx, "Session: ignoring connection close error", "error", err)
		}
	})
}

// release frees whatever the run acquired, in reverse order of need:
// connection, microphone, scheduled playback, output, input.
func (r *run) release(ctx context.Context) {
	r.closeRemote(ctx)
	if r.mic != nil {
		if err := r.mic.Close(); err != nil {
			logger.WarnContext(ctx, "Session: failed to close microphone", "error", err)
		}
	}
	if r.scheduler != nil {
		if n := r.scheduler.Reset(); n > 0 {
			logger.DebugContext(ctx, "Session: stopped scheduled playback", "buffers", n)
		}
	}
	if r.output != nil {
		if err := r.output.Close(); err != nil {
			logger.WarnContext(ctx, "Session: failed to close output context", "error", err)
		}
	}
	if r.input != nil {
		if err := r.input.Close(); err != nil {
			logger.WarnContext(ctx, "Session: failed to close input context", "error", err)
		}
	}
}

// SendFrame forwards one JPEG frame to the live connection. Failures are
// logged and returned for information only; they never end the session.
func (a *Assistant) SendFrame(jpeg []byte) error {
	a.mu.Lock()
	r := a.cur
	active := a.state == StateActive
	a.mu.Unlock()
	if !active {
		return ErrNotActive
	}
	if !a.limiter.Allow() {
		return ErrFrameRateLimited
	}

	if err := r.remote.SendImage(jpeg); err != nil {
		logger.WarnContext(r.ctx, "Session: video frame not sent", "error", err)
		r.emitter.VideoFrameFailed(err)
		return err
	}
	r.emitter.VideoFrameSent(len(jpeg))
	return nil
}

// loop is the only goroutine that touches the run's transcript state and
// sends microphone audio.
func (a *Assistant) loop(r *run) {
	defer close(r.loopDone)

	frames := r.mic.Frames()
	incoming := r.remote.Events()
	for {
		select {
		case <-r.stopCh:
			return
		case block, ok := <-frames:
			if !ok {
				logger.WarnContext(r.ctx, "Session: microphone stopped delivering audio")
				frames = nil
				continue
			}
			a.sendAudio(r, block)
		case ev, ok := <-incoming:
			if !ok || ev.Kind == gemini.EventClosed {
				go a.stop(r, ReasonRemoteClose, ev.Err)
				return
			}
			a.handle(r, ev)
		}
	}
}

func (a *Assistant) sendAudio(r *run, block []float32) {
	if micRate := r.mic.SampleRate(); micRate > 0 && micRate != a.cfg.InputSampleRate {
		resampled, err := audio.ResampleFloat32(block, micRate, a.cfg.InputSampleRate)
		if err != nil {
			logger.WarnContext(r.ctx, "Session: dropping microphone block", "error", err)
			return
		}
		block = resampled
	}
	if len(block) == 0 {
		return
	}

	pcm := audio.Float32ToPCM16(block)
	if err := r.remote.SendAudio(pcm); err != nil {
		logger.WarnContext(r.ctx, "Session: failed to send audio", "bytes", len(pcm), "error", err)
		return
	}
	r.emitter.AudioFrameSent(len(pcm))
}

func (a *Assistant) handle(r *run, ev gemini.Event) {
	switch ev.Kind {
	case gemini.EventInputTranscription:
		r.agg.MarkTurn()
		r.emitter.TurnStarted(ev.Text)
	case gemini.EventOutputTranscription:
		text, newLine := r.agg.Apply(ev.Text)
		r.emitter.TranscriptDelta(text, newLine)
		a.detectName(r, text)
	case gemini.EventAudio:
		a.playChunk(r, ev)
	case gemini.EventInterrupted:
		stopped := r.scheduler.StopAll()
		r.emitter.PlaybackInterrupted(stopped)
		logger.DebugContext(r.ctx, "Session: playback interrupted", "stopped", stopped)
	case gemini.EventTurnComplete:
		logger.DebugContext(r.ctx, "Session: model turn complete")
	}
}

// playChunk decodes one model audio chunk and queues it after the previous
// one. A bad chunk is dropped and the session continues.
func (a *Assistant) playChunk(r *run, ev gemini.Event) {
	sb, err := a.scheduleChunk(r, ev)
	if err != nil {
		logger.WarnContext(r.ctx, "Session: dropping audio chunk", "mime", ev.MIMEType, "error", err)
		r.emitter.AudioChunkDropped(err)
		return
	}
	r.emitter.AudioChunkScheduled(sb.Start, sb.Duration)
}

func (a *Assistant) scheduleChunk(r *run, ev gemini.Event) (audio.ScheduledBuffer, error) {
	pcm, err := audio.DecodeBase64PCM(ev.Audio)
	if err != nil {
		return audio.ScheduledBuffer{}, err
	}
	outRate := r.output.SampleRate()
	if ev.SampleRate > 0 && ev.SampleRate != outRate {
		if pcm, err = audio.ResamplePCM16(pcm, ev.SampleRate, outRate); err != nil {
			return audio.ScheduledBuffer{}, err
		}
	}
	samples, err := audio.PCM16ToFloat32(pcm)
	if err != nil {
		return audio.ScheduledBuffer{}, err
	}
	return r.scheduler.Schedule(audio.Buffer{Samples: samples, SampleRate: outRate}, nil)
}

// detectName runs the extractor on a cleaned fragment. Extractor panics are
// contained so they never interrupt transcript delivery.
func (a *Assistant) detectName(r *run, text string) {
	defer func() {
		if p := recover(); p != nil {
			logger.WarnContext(r.ctx, "Session: name extractor panicked", "panic", p)
		}
	}()

	name, ok := a.extractor.ExtractName(text)
	if !ok {
		return
	}
	a.mu.Lock()
	changed := name != a.name
	a.name = name
	a.mu.Unlock()
	if changed {
		r.emitter.NameDetected(name)
		logger.InfoContext(r.ctx, "Session: user name detected", "name", name)
	}
}
