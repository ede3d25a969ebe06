//go:build !portaudio

package portaudio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/redilah/CulinaryAI/runtime/audio"
)

var _ audio.Backend = (*Backend)(nil)

func TestNew_UnavailableWithoutTag(t *testing.T) {
	b, err := New()
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrUnavailable)

	var stub Backend
	_, err = stub.OpenInput(context.Background(), 16000)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = stub.OpenOutput(context.Background(), 24000)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, stub.Close())
}
