package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	pkgerrors "github.com/redilah/CulinaryAI/pkg/errors"
)

// wsUpgrader is the test WebSocket upgrader.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// echoServer returns a test server that echoes WebSocket messages back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

// silentServer accepts the upgrade and then only drains reads.
func silentServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

// wsURL converts an HTTP test server URL to a WebSocket URL.
func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConn_ConnectAndSendReceive(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	defer c.Close()
	assert.True(t, c.IsConnected())

	require.NoError(t, c.Send(map[string]string{"hello": "world"}))

	data, err := c.Receive(ctx)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "world", got["hello"])
}

func TestConn_SendRaw(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	payload := []byte(`{"realtime_input":{"media_chunks":[]}}`)
	require.NoError(t, c.SendRaw(payload))

	data, err := c.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestConn_Connect_SendsHeadersAndTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	gotHeaders := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders <- r.Header.Clone()
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "dial")
	defer span.End()

	c := NewConn(&ConnConfig{
		URL:     wsURL(srv),
		Headers: http.Header{"X-Goog-Api-Key": []string{"test-key"}},
	})
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	h := <-gotHeaders
	assert.Equal(t, "test-key", h.Get("X-Goog-Api-Key"))
	assert.Contains(t, h.Get("Traceparent"), span.SpanContext().TraceID().String())
}

func TestConn_Connect_HandshakeRejectedCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	err := c.Connect(context.Background())
	require.Error(t, err)

	var ce *pkgerrors.ContextualError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "streaming", ce.Component)
	assert.Equal(t, http.StatusForbidden, ce.StatusCode)
}

func TestConn_ConnectWithRetry_Success(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{
		URL:        wsURL(srv),
		MaxRetries: 3,
	})

	require.NoError(t, c.ConnectWithRetry(context.Background()))
	defer c.Close()
}

func TestConn_ConnectWithRetry_Failure(t *testing.T) {
	c := NewConn(&ConnConfig{
		URL:              "ws://localhost:1", // Nothing listening
		MaxRetries:       2,
		RetryBackoffBase: 10 * time.Millisecond,
		RetryBackoffMax:  50 * time.Millisecond,
	})

	err := c.ConnectWithRetry(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect after 2 attempts")
}

func TestConn_ConnectWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewConn(&ConnConfig{
		URL:        "ws://localhost:1",
		MaxRetries: 5,
	})

	err := c.ConnectWithRetry(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConn_ConnectWhenClosed(t *testing.T) {
	c := NewConn(&ConnConfig{URL: "ws://localhost:1"})
	require.NoError(t, c.Close())

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnClosed)
	assert.ErrorIs(t, c.ConnectWithRetry(context.Background()), ErrConnClosed)
}

func TestConn_Close_Idempotent(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
	assert.False(t, c.IsConnected())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
}

func TestConn_Close_WithoutConnect(t *testing.T) {
	c := NewConn(&ConnConfig{URL: "ws://localhost:1"})
	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
}

func TestConn_SendOnClosed(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())

	err := c.Send(map[string]string{"test": "value"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.SendRaw([]byte("test")), ErrNotConnected)
}

func TestConn_ReceiveBeforeConnect(t *testing.T) {
	c := NewConn(&ConnConfig{URL: "ws://localhost:1"})
	_, err := c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.ReadLoop(func([]byte) {}), ErrNotConnected)
}

func TestConn_ReceiveContextCancel(t *testing.T) {
	srv := silentServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConn_ReadLoop_DeliversInOrderUntilClose(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))

	var mu sync.Mutex
	var got []string
	three := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- c.ReadLoop(func(data []byte) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, string(data))
			if len(got) == 3 {
				close(three)
			}
		})
	}()

	for _, m := range []string{"a", "b", "c"} {
		require.NoError(t, c.SendRaw([]byte(m)))
	}

	select {
	case <-three:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for messages")
	}

	require.NoError(t, c.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLoop did not return after Close")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestConn_ReadLoop_PeerNormalClosure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	assert.NoError(t, c.ReadLoop(func([]byte) {}))
}

func TestConn_ReadLoop_AbnormalClosureIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "boom")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	assert.Error(t, c.ReadLoop(func([]byte) {}))
}

func TestConn_Heartbeat(t *testing.T) {
	pings := make(chan struct{}, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetPingHandler(func(string) error {
			select {
			case pings <- struct{}{}:
			default:
			}
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartHeartbeat(ctx, 20*time.Millisecond)

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestConn_SendMarshalError(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	err := c.Send(make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to marshal")
}

func TestConnConfig_Defaults(t *testing.T) {
	cfg := ConnConfig{}
	cfg.defaults()

	assert.Equal(t, DefaultDialTimeout, cfg.DialTimeout)
	assert.Equal(t, DefaultWriteWait, cfg.WriteWait)
	assert.Equal(t, int64(DefaultMaxMessageSize), cfg.MaxMessageSize)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultRetryBackoffBase, cfg.RetryBackoffBase)
	assert.Equal(t, DefaultRetryBackoffMax, cfg.RetryBackoffMax)
	assert.Equal(t, DefaultCloseGracePeriod, cfg.CloseGracePeriod)
	assert.NotNil(t, cfg.Logger)
}

func TestCalculateBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	maxDelay := time.Second

	for i := 0; i < 50; i++ {
		d := calculateBackoff(base, maxDelay)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}

	assert.LessOrEqual(t, calculateBackoff(5*time.Second, maxDelay), maxDelay)
}

func TestConn_WithLogger(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	log := &testLogger{}
	c := NewConn(&ConnConfig{
		URL:    wsURL(srv),
		Logger: log,
	})

	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	log.mu.Lock()
	defer log.mu.Unlock()
	assert.Contains(t, log.messages, "INFO: WebSocket connected")
}

type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, _ ...interface{}) { l.add("DEBUG: " + msg) }
func (l *testLogger) Info(msg string, _ ...interface{})  { l.add("INFO: " + msg) }
func (l *testLogger) Warn(msg string, _ ...interface{})  { l.add("WARN: " + msg) }
func (l *testLogger) Error(msg string, _ ...interface{}) { l.add("ERROR: " + msg) }

func (l *testLogger) add(m string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, m)
}
