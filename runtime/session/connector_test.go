package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redilah/CulinaryAI/runtime/providers/gemini"
)

func TestGeminiConnector_Connect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var setup map[string]interface{}
		if conn.ReadJSON(&setup) != nil {
			return
		}
		_ = conn.WriteJSON(map[string]interface{}{"setupComplete": map[string]interface{}{}})
		_ = conn.WriteJSON(map[string]interface{}{
			"serverContent": map[string]interface{}{"outputTranscription": map[string]interface{}{"text": "Halo"}},
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewGeminiConnector("ws"+strings.TrimPrefix(srv.URL, "http"), "key")
	remote, err := c.Connect(context.Background(), gemini.LiveConfig{InputSampleRate: 16000})
	require.NoError(t, err)
	defer remote.Close()

	select {
	case ev := <-remote.Events():
		assert.Equal(t, gemini.EventOutputTranscription, ev.Kind)
		assert.Equal(t, "Halo", ev.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	assert.NoError(t, remote.SendAudio([]byte{0, 0}))
}

func TestGeminiConnector_DialFailureReturnsNilRemote(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	remote, err := NewGeminiConnector("ws://localhost:1", "key").Connect(ctx, gemini.LiveConfig{})
	require.Error(t, err)
	assert.True(t, remote == nil, "remote must be an untyped nil")
}
