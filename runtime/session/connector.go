package session

import (
	"context"

	"github.com/redilah/CulinaryAI/runtime/providers/gemini"
)

// Remote is an open live connection.
type Remote interface {
	SendAudio(pcm []byte) error
	SendImage(jpeg []byte) error
	// Events is closed after a final gemini.EventClosed.
	Events() <-chan gemini.Event
	Close() error
}

// Connector opens live connections.
type Connector interface {
	Connect(ctx context.Context, cfg gemini.LiveConfig) (Remote, error)
}

// GeminiConnector dials the Gemini Live endpoint.
type GeminiConnector struct {
	Client *gemini.Client
}

// NewGeminiConnector returns a connector for url (DefaultLiveURL when empty).
func NewGeminiConnector(url, apiKey string) *GeminiConnector {
	return &GeminiConnector{Client: gemini.NewClient(url, apiKey)}
}

// Connect implements Connector.
func (c *GeminiConnector) Connect(ctx context.Context, cfg gemini.LiveConfig) (Remote, error) {
	s, err := c.Client.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}
