//go:build !portaudio

package portaudio

import (
	"context"
	"errors"

	"github.com/redilah/CulinaryAI/runtime/audio"
)

// ErrUnavailable is returned when the binary was built without the
// "portaudio" tag.
var ErrUnavailable = errors.New("built without portaudio support (use -tags portaudio)")

// Backend is a placeholder that cannot open devices.
type Backend struct{}

// New always fails without the portaudio build tag.
func New() (*Backend, error) {
	return nil, ErrUnavailable
}

// Close is a no-op.
func (b *Backend) Close() error { return nil }

// OpenInput implements audio.Backend.
func (b *Backend) OpenInput(context.Context, int) (audio.InputContext, error) {
	return nil, ErrUnavailable
}

// OpenOutput implements audio.Backend.
func (b *Backend) OpenOutput(context.Context, int) (audio.OutputContext, error) {
	return nil, ErrUnavailable
}
