// Package gemini is a client for the Gemini Live API (BidiGenerateContent)
// restricted to what a voice assistant needs: audio responses with input and
// output transcription, realtime PCM and JPEG input.
//
// The Live API does not accept TEXT and AUDIO response modalities together,
// so sessions always request ["AUDIO"] and read the spoken text from the
// output transcription stream.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redilah/CulinaryAI/runtime/logger"
)

// DefaultLiveURL is the public BidiGenerateContent endpoint.
const DefaultLiveURL = "wss://generativelanguage.googleapis.com/ws/" +
	"google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// Session setup constants
const (
	heartbeatIntervalSec = 30 // Heartbeat interval for new sessions
	setupTimeoutSec      = 10 // Timeout for initial setup response
	eventChannelSize     = 64
)

var (
	// ErrSessionClosed is returned by sends after Close or remote close.
	ErrSessionClosed = errors.New("live session is closed")
	// ErrEmptyMedia is returned when SendAudio or SendImage get no data.
	ErrEmptyMedia = errors.New("empty media data")
)

// EventKind enumerates inbound Live events.
type EventKind int

// Inbound event kinds, in the order they are emitted for one server message.
const (
	EventInputTranscription EventKind = iota
	EventOutputTranscription
	EventAudio
	EventInterrupted
	EventTurnComplete
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventInputTranscription:
		return "input_transcription"
	case EventOutputTranscription:
		return "output_transcription"
	case EventAudio:
		return "audio"
	case EventInterrupted:
		return "interrupted"
	case EventTurnComplete:
		return "turn_complete"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one inbound signal from the Live session.
type Event struct {
	Kind EventKind

	// Text is set for transcription events.
	Text string

	// Audio is the base64 PCM payload of an EventAudio, left encoded so the
	// consumer decides how to handle malformed chunks.
	Audio      string
	MIMEType   string
	SampleRate int

	// Err is set on EventClosed when the connection ended abnormally.
	Err error
}

// Client dials Live sessions.
type Client struct {
	URL    string
	APIKey string

	// SetupTimeout bounds the wait for setupComplete. Defaults to 10s.
	SetupTimeout time.Duration
	// HeartbeatInterval is the ping interval. Defaults to 30s.
	HeartbeatInterval time.Duration
}

// NewClient creates a Client. An empty url selects DefaultLiveURL.
func NewClient(url, apiKey string) *Client {
	if url == "" {
		url = DefaultLiveURL
	}
	return &Client{
		URL:               url,
		APIKey:            apiKey,
		SetupTimeout:      setupTimeoutSec * time.Second,
		HeartbeatInterval: heartbeatIntervalSec * time.Second,
	}
}

// LiveSession is an open Live connection. Events arrive on Events in server
// order; the channel is closed after a final EventClosed.
type LiveSession struct {
	ws        *transport
	audioMime string
	events    chan Event
	done      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Connect dials the endpoint, sends the setup message and waits for
// setupComplete. The returned session is already receiving.
func (c *Client) Connect(ctx context.Context, cfg LiveConfig) (*LiveSession, error) {
	ws := newTransport(c.URL, c.APIKey)
	if err := ws.dial(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	setupMsg := buildSetupMessage(&cfg)
	logSetupMessage(setupMsg)

	if err := sendAndWaitForSetup(ctx, ws, setupMsg, c.setupTimeout()); err != nil {
		_ = ws.close()
		return nil, err
	}

	// The heartbeat outlives the dial context; it stops on Close.
	hbCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ws.heartbeat(hbCtx, c.heartbeatInterval())

	s := &LiveSession{
		ws:        ws,
		audioMime: audioMimeType(cfg.InputSampleRate),
		events:    make(chan Event, eventChannelSize),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	go s.receiveLoop()

	logger.Info("Gemini: live session open", "model", getModelPath(cfg.Model))
	return s, nil
}

func (c *Client) setupTimeout() time.Duration {
	if c.SetupTimeout > 0 {
		return c.SetupTimeout
	}
	return setupTimeoutSec * time.Second
}

func (c *Client) heartbeatInterval() time.Duration {
	if c.HeartbeatInterval > 0 {
		return c.HeartbeatInterval
	}
	return heartbeatIntervalSec * time.Second
}

// sendAndWaitForSetup sends the setup message and waits for confirmation.
// Messages other than setupComplete received before it are ignored.
func sendAndWaitForSetup(
	ctx context.Context,
	ws *transport,
	setupMsg map[string]interface{},
	timeout time.Duration,
) error {
	if err := ws.send(setupMsg); err != nil {
		return fmt.Errorf("failed to send setup message: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		var resp ServerMessage
		if err := ws.receiveJSON(setupCtx, &resp); err != nil {
			return fmt.Errorf("failed to receive setup response: %w", err)
		}
		if resp.SetupComplete != nil {
			return nil
		}
	}
}

// Events returns the inbound event stream.
func (s *LiveSession) Events() <-chan Event {
	return s.events
}

// SendAudio sends little-endian 16-bit PCM as realtime input.
func (s *LiveSession) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return ErrEmptyMedia
	}
	return s.sendMedia(s.audioMime, pcm)
}

// SendImage sends a JPEG still as realtime input.
func (s *LiveSession) SendImage(jpeg []byte) error {
	if len(jpeg) == 0 {
		return ErrEmptyMedia
	}
	return s.sendMedia(MimeTypeJPEG, jpeg)
}

func (s *LiveSession) sendMedia(mime string, data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	msg := realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []mediaChunk{{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(data),
		}},
	}}
	return s.ws.send(msg)
}

// Close closes the connection. No events are delivered after Close returns
// except those already buffered. Safe to call more than once.
func (s *LiveSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		err = s.ws.close()
	})
	return err
}

// receiveLoop decodes messages until the connection ends, then emits
// EventClosed and closes the events channel.
func (s *LiveSession) receiveLoop() {
	defer close(s.events)

	err := s.ws.readLoop(func(raw []byte) {
		var msg ServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("Gemini: dropping unparseable server message", "error", err)
			return
		}
		logRawMessage(raw)
		for _, ev := range eventsFromMessage(&msg) {
			if !s.emit(ev) {
				return
			}
		}
	})
	if err != nil {
		logger.Warn("Gemini: live connection ended", "error", err)
	}

	s.emit(Event{Kind: EventClosed, Err: err})
}

func (s *LiveSession) emit(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// eventsFromMessage flattens one server message into events in the order
// input transcription, output transcription, audio, interrupted, turn complete.
func eventsFromMessage(msg *ServerMessage) []Event {
	if msg.GoAway != nil {
		logger.Info("Gemini: server going away", "timeLeft", msg.GoAway.TimeLeft)
	}
	content := msg.ServerContent
	if content == nil {
		return nil
	}

	var events []Event
	if content.InputTranscription != nil {
		events = append(events, Event{Kind: EventInputTranscription, Text: content.InputTranscription.Text})
	}
	if content.OutputTranscription != nil && content.OutputTranscription.Text != "" {
		events = append(events, Event{Kind: EventOutputTranscription, Text: content.OutputTranscription.Text})
	}
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			events = append(events, Event{
				Kind:       EventAudio,
				Audio:      part.InlineData.Data,
				MIMEType:   part.InlineData.MimeType,
				SampleRate: sampleRateFromMime(part.InlineData.MimeType),
			})
		}
	}
	if content.Interrupted {
		events = append(events, Event{Kind: EventInterrupted})
	}
	if content.TurnComplete {
		events = append(events, Event{Kind: EventTurnComplete})
	}
	return events
}

// truncateInlineData recursively truncates large data fields for logging
func truncateInlineData(v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		if data, ok := val["data"].(string); ok && len(data) > 100 {
			val["data"] = fmt.Sprintf("[%d bytes base64]", len(data))
		}
		for _, child := range val {
			truncateInlineData(child)
		}
	case []interface{}:
		for _, item := range val {
			truncateInlineData(item)
		}
	}
}

// logRawMessage logs the server message at trace level with audio elided.
func logRawMessage(raw []byte) {
	var logMsg map[string]interface{}
	if err := json.Unmarshal(raw, &logMsg); err != nil {
		return
	}
	keys := make([]string, 0, len(logMsg))
	for k := range logMsg {
		keys = append(keys, k)
	}
	truncateInlineData(logMsg)
	logBytes, _ := json.Marshal(logMsg)
	logger.Trace("Gemini message", "keys", keys, "content", string(logBytes))
}
