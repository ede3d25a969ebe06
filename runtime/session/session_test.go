package session_test

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/redilah/CulinaryAI/runtime/audio"
	"github.com/redilah/CulinaryAI/runtime/audio/mock"
	"github.com/redilah/CulinaryAI/runtime/events"
	"github.com/redilah/CulinaryAI/runtime/providers/gemini"
	"github.com/redilah/CulinaryAI/runtime/session"
	"github.com/redilah/CulinaryAI/runtime/transcript"
)

const waitFor, tick = 2 * time.Second, 5 * time.Millisecond

// fakeRemote is a scripted live connection.
type fakeRemote struct {
	mu       sync.Mutex
	audio    [][]byte
	images   [][]byte
	closed   int
	imageErr error

	events chan gemini.Event
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{events: make(chan gemini.Event, 64)}
}

func (f *fakeRemote) SendAudio(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, pcm)
	return nil
}

func (f *fakeRemote) SendImage(jpeg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imageErr != nil {
		return f.imageErr
	}
	f.images = append(f.images, jpeg)
	return nil
}

func (f *fakeRemote) Events() <-chan gemini.Event { return f.events }

func (f *fakeRemote) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return errors.New("close frame not acknowledged")
}

func (f *fakeRemote) push(evs ...gemini.Event) {
	for _, ev := range evs {
		f.events <- ev
	}
}

func (f *fakeRemote) closeFromServer(err error) {
	f.events <- gemini.Event{Kind: gemini.EventClosed, Err: err}
	close(f.events)
}

func (f *fakeRemote) sentAudio() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.audio...)
}

func (f *fakeRemote) sentImages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.images)
}

func (f *fakeRemote) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeConnector struct {
	mu      sync.Mutex
	remotes []*fakeRemote
	configs []gemini.LiveConfig
	err     error
	block   chan struct{}
}

func (c *fakeConnector) Connect(ctx context.Context, cfg gemini.LiveConfig) (session.Remote, error) {
	c.mu.Lock()
	c.configs = append(c.configs, cfg)
	block, err := c.block, c.err
	c.mu.Unlock()

	if block != nil {
		close(block)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	r := newFakeRemote()
	c.mu.Lock()
	c.remotes = append(c.remotes, r)
	c.mu.Unlock()
	return r, nil
}

func (c *fakeConnector) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.configs)
}

func (c *fakeConnector) lastConfig() gemini.LiveConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configs[len(c.configs)-1]
}

func (c *fakeConnector) remote() *fakeRemote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remotes[len(c.remotes)-1]
}

// recordingSink keeps every (text, newLine) tuple on top of a transcript.Log.
type recordingSink struct {
	transcript.Log
	mu     sync.Mutex
	tuples []tuple
}

type tuple struct {
	Text    string
	NewLine bool
}

func (s *recordingSink) Append(text string, newLine bool) {
	s.mu.Lock()
	s.tuples = append(s.tuples, tuple{text, newLine})
	s.mu.Unlock()
	s.Log.Append(text, newLine)
}

func (s *recordingSink) snapshot() []tuple {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tuple(nil), s.tuples...)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tuples)
}

type harness struct {
	assistant *session.Assistant
	backend   *mock.Backend
	connector *fakeConnector
	sink      *recordingSink
	bus       *events.EventBus
}

func newHarness(t *testing.T, mutate func(*session.Config)) *harness {
	t.Helper()
	h := &harness{
		backend:   mock.NewBackend(gemini.DefaultOutputSampleRate),
		connector: &fakeConnector{},
		sink:      &recordingSink{},
		bus:       events.NewEventBus(),
	}
	cfg := session.Config{
		Recipe: session.Recipe{
			Title: "Nasi Goreng",
			Ingredients: []session.Ingredient{
				{Name: "Nasi", Quantity: "2 piring"},
				{Name: "Kecap manis"},
			},
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := session.NewAssistant(cfg, session.Dependencies{
		Audio:      h.backend,
		Connector:  h.connector,
		Transcript: h.sink,
		Events:     h.bus,
	})
	require.NoError(t, err)
	h.assistant = a
	t.Cleanup(func() {
		_ = a.Stop()
		h.bus.Close()
	})
	return h
}

func (h *harness) start(t *testing.T) *fakeRemote {
	t.Helper()
	require.NoError(t, h.assistant.Start(context.Background(), "Tumis bawang 2 menit"))
	require.Equal(t, session.StateActive, h.assistant.State())
	return h.connector.remote()
}

// collect subscribes to eventType and returns a snapshot func.
func (h *harness) collect(eventType events.EventType) func() []*events.Event {
	var mu sync.Mutex
	var got []*events.Event
	h.bus.Subscribe(eventType, func(e *events.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	return func() []*events.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]*events.Event(nil), got...)
	}
}

// chunk returns a base64 PCM16 payload of d at 24 kHz.
func chunk(d time.Duration) gemini.Event {
	samples := int(d * gemini.DefaultOutputSampleRate / time.Second)
	pcm := make([]byte, samples*audio.BytesPerSample)
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = 0x10
	}
	return gemini.Event{
		Kind:       gemini.EventAudio,
		Audio:      base64.StdEncoding.EncodeToString(pcm),
		MIMEType:   "audio/pcm;rate=24000",
		SampleRate: gemini.DefaultOutputSampleRate,
	}
}

func output(text string) gemini.Event {
	return gemini.Event{Kind: gemini.EventOutputTranscription, Text: text}
}

func inputSignal() gemini.Event {
	return gemini.Event{Kind: gemini.EventInputTranscription, Text: "..."}
}

func TestNewAssistant_Validation(t *testing.T) {
	backend := mock.NewBackend(24000)
	recipe := session.Recipe{Title: "Soto"}

	_, err := session.NewAssistant(session.Config{Recipe: recipe}, session.Dependencies{Connector: &fakeConnector{}})
	assert.Error(t, err)
	_, err = session.NewAssistant(session.Config{Recipe: recipe}, session.Dependencies{Audio: backend})
	assert.Error(t, err)
	_, err = session.NewAssistant(session.Config{}, session.Dependencies{Audio: backend, Connector: &fakeConnector{}})
	assert.Error(t, err)

	a, err := session.NewAssistant(session.Config{Recipe: recipe, RememberedName: "  Sari "},
		session.Dependencies{Audio: backend, Connector: &fakeConnector{}})
	require.NoError(t, err)
	assert.Equal(t, session.StateIdle, a.State())
	assert.Equal(t, "Sari", a.RememberedName())
}

func TestStart_OpensDevicesAndConnects(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.Input.Suspend()
	h.backend.Output.Suspend()

	h.start(t)

	in, out := h.backend.Rates()
	assert.Equal(t, 16000, in)
	assert.Equal(t, 24000, out)
	assert.Equal(t, 1, h.backend.Input.Resumed())
	assert.Equal(t, 1, h.backend.Output.Resumed())
	assert.Equal(t, audio.VoiceConstraints(16000), h.backend.Input.Constraints())
	assert.NotEmpty(t, h.assistant.SessionID())

	cfg := h.connector.lastConfig()
	assert.Equal(t, gemini.DefaultModel, cfg.Model)
	assert.Equal(t, gemini.DefaultVoice, cfg.Voice)
	assert.Equal(t, 16000, cfg.InputSampleRate)
	assert.Contains(t, cfg.SystemInstruction, "Masakan: Nasi Goreng.")
	assert.Contains(t, cfg.SystemInstruction, "Nasi (2 piring), Kecap manis (sesuai selera)")
	assert.Contains(t, cfg.SystemInstruction, "Langkah saat ini: Tumis bawang 2 menit.")
	assert.Contains(t, cfg.SystemInstruction, "Boleh aku tahu namamu")
}

func TestStart_StepWithBracesIsSentVerbatim(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.assistant.Start(context.Background(), "Panggil {{user_name}} lalu {{aduk}}"))
	require.Equal(t, session.StateActive, h.assistant.State())

	instruction := h.connector.lastConfig().SystemInstruction
	assert.Contains(t, instruction, "Langkah saat ini: Panggil {{user_name}} lalu {{aduk}}.")
}

func TestStart_Twice(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	err := h.assistant.Start(context.Background(), "lagi")
	assert.ErrorIs(t, err, session.ErrAlreadyStarted)
	assert.Equal(t, 1, h.connector.calls())
}

func TestStart_StreamsMicrophoneInCaptureOrder(t *testing.T) {
	h := newHarness(t, nil)
	remote := h.start(t)
	mic := h.backend.Input.Mic()

	blocks := [][]float32{{0.5, -0.5}, {0.25}, {1, -1, 0}}
	for _, b := range blocks {
		require.True(t, mic.Push(b))
	}

	require.Eventually(t, func() bool { return len(remote.sentAudio()) == len(blocks) }, waitFor, tick)
	for i, sent := range remote.sentAudio() {
		assert.Equal(t, audio.Float32ToPCM16(blocks[i]), sent, "block %d", i)
	}
}

// Input transcription followed by two deltas yields exactly one new line.
func TestTranscript_TurnBecomesOneLine(t *testing.T) {
	h := newHarness(t, nil)
	remote := h.start(t)

	remote.push(inputSignal(), output("Baik, "), output("saya catat."))

	require.Eventually(t, func() bool { return h.sink.count() == 2 }, waitFor, tick)
	assert.Equal(t, []string{"Baik, saya catat."}, h.sink.Lines())
	assert.Equal(t, []tuple{{"Baik, ", true}, {"saya catat.", false}}, h.sink.snapshot())
}

func TestTranscript_NewTurnAfterInputSignal(t *testing.T) {
	h := newHarness(t, nil)
	remote := h.start(t)

	remote.push(output("Hello"), output(" there"), inputSignal(), output("**Next**"))

	require.Eventually(t, func() bool { return h.sink.count() == 3 }, waitFor, tick)
	assert.Equal(t, []string{"Hello there", "Next"}, h.sink.Lines())
}

func TestPlayback_ChunksBackToBack(t *testing.T) {
	h := newHarness(t, nil)
	remote := h.start(t)

	remote.push(chunk(500*time.Millisecond), chunk(300*time.Millisecond))

	require.Eventually(t, func() bool { return len(h.backend.Output.Scheduled()) == 2 }, waitFor, tick)
	got := h.backend.Output.Scheduled()
	assert.Equal(t, time.Duration(0), got[0].Start)
	assert.Equal(t, 500*time.Millisecond, got[1].Start)
	assert.Equal(t, 800*time.Millisecond, got[1].Start+got[1].Duration-got[0].Start)
}

func TestPlayback_LateChunkStartsNow(t *testing.T) {
	h := newHarness(t, nil)
	remote := h.start(t)

	remote.push(chunk(200 * time.Millisecond))
	require.Eventually(t, func() bool { return len(h.backend.Output.Scheduled()) == 1 }, waitFor, tick)

	h.backend.Output.Advance(time.Second)
	remote.push(chunk(100 * time.Millisecond))

	require.Eventually(t, func() bool { return len(h.backend.Output.Scheduled()) == 2 }, waitFor, tick)
	assert.Equal(t, time.Second, h.backend.Output.Scheduled()[1].Start)
}

func TestPlayback_InterruptStopsEverythingAndRestartsNow(t *testing.T) {
	h := newHarness(t, nil)
	remote := h.start(t)
	interrupted := h.collect(events.EventPlaybackInterrupted)

	remote.push(chunk(500*time.Millisecond), chunk(500*time.Millisecond))
	require.Eventually(t, func() bool { return h.backend.Output.Playing() == 2 }, waitFor, tick)

	h.backend.Output.Advance(200 * time.Millisecond)
	remote.push(gemini.Event{Kind: gemini.EventInterrupted})
	require.Eventually(t, func() bool { return h.backend.Output.Stopped() == 2 }, waitFor, tick)
	assert.Equal(t, 0, h.backend.Output.Playing())

	remote.push(chunk(100 * time.Millisecond))
	require.Eventually(t, func() bool { return len(h.backend.Output.Scheduled()) == 3 }, waitFor, tick)
	assert.Equal(t, 200*time.Millisecond, h.backend.Output.Scheduled()[2].Start)

	require.Eventually(t, func() bool { return len(interrupted()) == 1 }, waitFor, tick)
	assert.Equal(t, 2, interrupted()[0].Data.(events.PlaybackInterruptedData).StoppedBuffers)
}

func TestPlayback_BadChunkIsDropped(t *testing.T) {
	h := newHarness(t, nil)
	remote := h.start(t)
	dropped := h.collect(events.EventAudioChunkDropped)

	odd := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	remote.push(
		gemini.Event{Kind: gemini.EventAudio, Audio: "!!not base64!!", SampleRate: 24000},
		gemini.Event{Kind: gemini.EventAudio, Audio: odd, SampleRate: 24000},
		chunk(100*time.Millisecond),
	)

	require.Eventually(t, func() bool { return len(h.backend.Output.Scheduled()) == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return len(dropped()) == 2 }, waitFor, tick)
	assert.Equal(t, session.StateActive, h.assistant.State())
}

func TestPlayback_ResamplesOtherRates(t *testing.T) {
	h := newHarness(t, nil)
	remote := h.start(t)

	pcm := make([]byte, 16000*audio.BytesPerSample/2) // 0.5 s at 16 kHz
	remote.push(gemini.Event{
		Kind:       gemini.EventAudio,
		Audio:      base64.StdEncoding.EncodeToString(pcm),
		SampleRate: 16000,
	})

	require.Eventually(t, func() bool { return len(h.backend.Output.Scheduled()) == 1 }, waitFor, tick)
	assert.InDelta(t, 500*time.Millisecond, h.backend.Output.Scheduled()[0].Duration, float64(time.Millisecond))
}

func TestStop_Idempotent(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.assistant.Stop())
	assert.Equal(t, session.StateIdle, h.assistant.State())

	remote := h.start(t)
	remote.push(chunk(time.Second))
	require.Eventually(t, func() bool { return h.backend.Output.Playing() == 1 }, waitFor, tick)

	require.NoError(t, h.assistant.Stop())
	require.NoError(t, h.assistant.Stop())

	assert.Equal(t, session.StateIdle, h.assistant.State())
	assert.Equal(t, 1, remote.closeCount())
	assert.False(t, h.backend.Input.Mic().IsOpen())
	assert.True(t, h.backend.Input.Closed())
	assert.True(t, h.backend.Output.Closed())
	assert.Equal(t, 1, h.backend.Output.Stopped())
}

func TestStop_NoCallbacksAfterReturn(t *testing.T) {
	h := newHarness(t, nil)
	remote := h.start(t)

	remote.push(output("sebelum"))
	require.Eventually(t, func() bool { return h.sink.count() == 1 }, waitFor, tick)

	require.NoError(t, h.assistant.Stop())
	remote.push(output("sesudah"), chunk(100*time.Millisecond))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, h.sink.count())
	assert.Empty(t, h.backend.Output.Scheduled())
}

func TestStop_DuringStartCancelsConnect(t *testing.T) {
	h := newHarness(t, nil)
	entered := make(chan struct{})
	h.connector.block = entered

	errCh := make(chan error, 1)
	go func() { errCh <- h.assistant.Start(context.Background(), "step") }()

	<-entered
	assert.Equal(t, session.StateStarting, h.assistant.State())
	require.NoError(t, h.assistant.Stop())

	err := <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, session.StateIdle, h.assistant.State())
	assert.True(t, h.backend.Input.Closed())
	assert.True(t, h.backend.Output.Closed())
	assert.False(t, h.backend.Input.Mic().IsOpen())
}

func TestStart_MicrophoneDeniedLeavesNothingOpen(t *testing.T) {
	h := newHarness(t, nil)
	failed := h.collect(events.EventSessionStartFailed)
	h.backend.Input.MicErr = mock.ErrPermissionDenied

	err := h.assistant.Start(context.Background(), "step")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrMicrophoneUnavailable)
	assert.ErrorIs(t, err, mock.ErrPermissionDenied)

	assert.Equal(t, session.StateIdle, h.assistant.State())
	assert.Equal(t, 0, h.connector.calls())
	assert.True(t, h.backend.Input.Closed())
	assert.True(t, h.backend.Output.Closed())
	require.Eventually(t, func() bool { return len(failed()) == 1 }, waitFor, tick)
	assert.Equal(t, "microphone", failed()[0].Data.(events.SessionStartFailedData).Reason)

	// A later attempt succeeds once permission is granted.
	h.backend.Input.MicErr = nil
	h.start(t)
}

func TestStart_AudioAndConnectFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.OutputErr = errors.New("no output device")

	err := h.assistant.Start(context.Background(), "step")
	assert.ErrorIs(t, err, session.ErrAudioUnavailable)
	assert.True(t, h.backend.Input.Closed())
	assert.Equal(t, 0, h.connector.calls())

	h.backend.OutputErr = nil
	h.connector.err = errors.New("dial tcp: refused")
	err = h.assistant.Start(context.Background(), "step")
	assert.ErrorIs(t, err, session.ErrConnectFailed)
	assert.Equal(t, session.StateIdle, h.assistant.State())
	assert.False(t, h.backend.Input.Mic().IsOpen())
	assert.True(t, h.backend.Output.Closed())
}

func TestRemoteClose_TearsDown(t *testing.T) {
	h := newHarness(t, nil)
	stopped := h.collect(events.EventSessionStopped)
	remote := h.start(t)

	remote.closeFromServer(nil)

	require.Eventually(t, func() bool { return h.assistant.State() == session.StateIdle }, waitFor, tick)
	assert.False(t, h.backend.Input.Mic().IsOpen())
	assert.True(t, h.backend.Input.Closed())
	assert.True(t, h.backend.Output.Closed())

	require.Eventually(t, func() bool { return len(stopped()) == 1 }, waitFor, tick)
	assert.Equal(t, session.ReasonRemoteClose, stopped()[0].Data.(events.SessionStoppedData).Reason)
}

func TestRemoteClose_DoesNotEndNextSession(t *testing.T) {
	h := newHarness(t, nil)
	remote := h.start(t)

	for i := 0; i < 100; i++ {
		remote.closeFromServer(nil)
		require.NoError(t, h.assistant.Stop())
		remote = h.start(t)
		id := h.assistant.SessionID()

		time.Sleep(2 * time.Millisecond)
		require.Equal(t, session.StateActive, h.assistant.State(), "iteration %d", i)
		require.Equal(t, id, h.assistant.SessionID())
	}
}

func TestNameDetection_EmitsAndPersonalizesNextStart(t *testing.T) {
	h := newHarness(t, nil)
	detected := h.collect(events.EventNameDetected)
	remote := h.start(t)

	remote.push(output("Oke, nama saya Budi."))
	require.Eventually(t, func() bool { return h.assistant.RememberedName() == "Budi" }, waitFor, tick)
	require.Eventually(t, func() bool { return len(detected()) == 1 }, waitFor, tick)
	assert.Equal(t, "Budi", detected()[0].Data.(events.NameDetectedData).Name)

	require.NoError(t, h.assistant.Stop())
	h.start(t)
	instruction := h.connector.lastConfig().SystemInstruction
	assert.Contains(t, instruction, "Budi")
	assert.NotContains(t, instruction, "Boleh aku tahu namamu")
}

func TestNameDetection_PanicDoesNotBreakTranscript(t *testing.T) {
	h := newHarness(t, func(c *session.Config) {
		c.NameExtractor = transcript.NameExtractorFunc(func(string) (string, bool) {
			panic("boom")
		})
	})
	remote := h.start(t)

	remote.push(output("satu"), output(" dua"))

	require.Eventually(t, func() bool { return h.sink.count() == 2 }, waitFor, tick)
	assert.Equal(t, "satu dua", h.sink.Last())
	assert.Equal(t, session.StateActive, h.assistant.State())
}

func TestSendFrame(t *testing.T) {
	h := newHarness(t, nil)
	jpeg := []byte{0xff, 0xd8, 0xff}

	assert.ErrorIs(t, h.assistant.SendFrame(jpeg), session.ErrNotActive)

	remote := h.start(t)
	require.NoError(t, h.assistant.SendFrame(jpeg))
	assert.ErrorIs(t, h.assistant.SendFrame(jpeg), session.ErrFrameRateLimited)
	assert.Equal(t, 1, remote.sentImages())
}

func TestSendFrame_FailureIsNotFatal(t *testing.T) {
	h := newHarness(t, func(c *session.Config) { c.FrameRateLimit = rate.Inf })
	failed := h.collect(events.EventVideoFrameFailed)
	remote := h.start(t)

	remote.mu.Lock()
	remote.imageErr = errors.New("write: broken pipe")
	remote.mu.Unlock()

	assert.Error(t, h.assistant.SendFrame([]byte{1}))
	assert.Error(t, h.assistant.SendFrame([]byte{2}))
	assert.Equal(t, session.StateActive, h.assistant.State())
	require.Eventually(t, func() bool { return len(failed()) == 2 }, waitFor, tick)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", session.StateIdle.String())
	assert.Equal(t, "starting", session.StateStarting.String())
	assert.Equal(t, "active", session.StateActive.String())
	assert.Equal(t, "stopping", session.StateStopping.String())
	assert.Equal(t, "unknown", session.State(42).String())
}
