package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redilah/CulinaryAI/runtime/logger"
	"github.com/redilah/CulinaryAI/runtime/providers/internal/streaming"
)

const (
	// MaxMessageSize bounds one inbound frame; model audio turns can be large.
	MaxMessageSize = 16 * 1024 * 1024

	dialTimeout      = 45 * time.Second
	dialRetries      = 3
	retryBackoffBase = time.Second
	retryBackoffMax  = 10 * time.Second

	apiKeyHeader = "x-goog-api-key"
)

// transport is the Live WebSocket: a streaming.Conn carrying the API key
// header, with JSON decoding for the setup handshake.
type transport struct {
	conn *streaming.Conn
	url  string
}

func newTransport(url, apiKey string) *transport {
	headers := http.Header{}
	headers.Set(apiKeyHeader, apiKey)

	return &transport{
		url: url,
		conn: streaming.NewConn(&streaming.ConnConfig{
			URL:              url,
			Headers:          headers,
			DialTimeout:      dialTimeout,
			MaxMessageSize:   MaxMessageSize,
			MaxRetries:       dialRetries,
			RetryBackoffBase: retryBackoffBase,
			RetryBackoffMax:  retryBackoffMax,
			Logger:           connLogger{},
		}),
	}
}

func (t *transport) dial(ctx context.Context) error {
	logger.Debug("Gemini: connecting", "url", logger.RedactSensitiveData(t.url))
	return t.conn.ConnectWithRetry(ctx)
}

func (t *transport) send(msg any) error {
	return t.conn.Send(msg)
}

// receiveJSON blocks for the next message and decodes it into v.
func (t *transport) receiveJSON(ctx context.Context, v any) error {
	data, err := t.conn.Receive(ctx)
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return nil
}

func (t *transport) readLoop(handle func([]byte)) error {
	return t.conn.ReadLoop(handle)
}

func (t *transport) heartbeat(ctx context.Context, interval time.Duration) {
	t.conn.StartHeartbeat(ctx, interval)
}

func (t *transport) close() error {
	return t.conn.Close()
}

// connLogger routes streaming.Conn logs through the runtime logger.
type connLogger struct{}

func (connLogger) with(kv []interface{}) []any {
	return append([]any{"component", "gemini.conn"}, kv...)
}

func (l connLogger) Debug(msg string, kv ...interface{}) { logger.Debug(msg, l.with(kv)...) }
func (l connLogger) Info(msg string, kv ...interface{})  { logger.Info(msg, l.with(kv)...) }
func (l connLogger) Warn(msg string, kv ...interface{})  { logger.Warn(msg, l.with(kv)...) }
func (l connLogger) Error(msg string, kv ...interface{}) { logger.Error(msg, l.with(kv)...) }
