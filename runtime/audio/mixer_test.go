package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestMixer_RendersAtScheduledOffset(t *testing.T) {
	m := NewMixer(1000) // 1 sample per ms

	ended := 0
	_, err := m.Schedule(Buffer{Samples: constant(4, 0.5), SampleRate: 1000}, 2*time.Millisecond, func() { ended++ })
	require.NoError(t, err)

	out := make([]float32, 4)
	m.Render(out)
	assert.Equal(t, []float32{0, 0, 0.5, 0.5}, out)
	assert.Equal(t, 0, ended)

	m.Render(out)
	assert.Equal(t, []float32{0.5, 0.5, 0, 0}, out)
	assert.Equal(t, 1, ended)
	assert.Equal(t, 8*time.Millisecond, m.CurrentTime())
	assert.Equal(t, 0, m.Pending())
}

func TestMixer_SumsAndClamps(t *testing.T) {
	m := NewMixer(1000)
	_, err := m.Schedule(Buffer{Samples: constant(2, 0.75), SampleRate: 1000}, 0, nil)
	require.NoError(t, err)
	_, err = m.Schedule(Buffer{Samples: constant(2, 0.75), SampleRate: 1000}, 0, nil)
	require.NoError(t, err)

	out := make([]float32, 2)
	m.Render(out)
	assert.Equal(t, []float32{1, 1}, out)
}

func TestMixer_PastStartPlaysNow(t *testing.T) {
	m := NewMixer(1000)
	m.Render(make([]float32, 10))

	_, err := m.Schedule(Buffer{Samples: constant(1, 0.25), SampleRate: 1000}, 0, nil)
	require.NoError(t, err)
	out := make([]float32, 1)
	m.Render(out)
	assert.Equal(t, []float32{0.25}, out)
}

func TestMixer_StopFiresOnEndedOnce(t *testing.T) {
	m := NewMixer(1000)
	ended := 0
	v, err := m.Schedule(Buffer{Samples: constant(100, 0.1), SampleRate: 1000}, 0, func() { ended++ })
	require.NoError(t, err)

	v.Stop()
	v.Stop()
	assert.Equal(t, 1, ended)
	assert.Equal(t, 0, m.Pending())

	out := make([]float32, 5)
	m.Render(out)
	assert.Equal(t, constant(5, 0), out)
}

func TestMixer_SuspendHoldsClock(t *testing.T) {
	m := NewMixer(1000)
	m.Suspend()
	assert.Equal(t, StateSuspended, m.State())

	m.Render(make([]float32, 10))
	assert.Equal(t, time.Duration(0), m.CurrentTime())

	require.NoError(t, m.Resume(context.Background()))
	m.Render(make([]float32, 10))
	assert.Equal(t, 10*time.Millisecond, m.CurrentTime())
}

func TestMixer_CloseAndRateMismatch(t *testing.T) {
	m := NewMixer(24000)
	_, err := m.Schedule(Buffer{Samples: constant(1, 0), SampleRate: 16000}, 0, nil)
	assert.ErrorContains(t, err, "does not match")

	require.NoError(t, m.Close())
	_, err = m.Schedule(Buffer{Samples: constant(1, 0), SampleRate: 24000}, 0, nil)
	assert.ErrorIs(t, err, ErrContextClosed)
	assert.ErrorIs(t, m.Resume(context.Background()), ErrContextClosed)
}
