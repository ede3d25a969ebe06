package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEmptyAudioData indicates no audio data provided
	ErrEmptyAudioData = errors.New("empty audio data")
	// ErrInvalidChunkSize indicates chunk size is not aligned
	ErrInvalidChunkSize = errors.New("invalid chunk size: must be multiple of sample size")
)

// BytesPerSample is the size of one mono PCM16 sample.
const BytesPerSample = 2

const pcm16Scale = 32768.0

// Float32ToPCM16 converts float samples in [-1, 1] to little-endian 16-bit
// PCM. Samples are scaled by 32768 and clamped to the int16 range.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := float64(s) * pcm16Scale
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(int16(v))) //nolint:gosec // clamped above
	}
	return out
}

// PCM16ToFloat32 converts little-endian 16-bit PCM to float samples by
// dividing each sample by 32768.
func PCM16ToFloat32(pcm []byte) ([]float32, error) {
	if len(pcm)%BytesPerSample != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidChunkSize, len(pcm))
	}
	out := make([]float32, len(pcm)/BytesPerSample)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))) / pcm16Scale //nolint:gosec // Safe PCM16 conversion
	}
	return out, nil
}

// DecodeBase64PCM decodes base64-encoded audio data back to raw PCM
func DecodeBase64PCM(data string) ([]byte, error) {
	if data == "" {
		return nil, ErrEmptyAudioData
	}
	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, ErrEmptyAudioData
	}
	return pcm, nil
}

// SamplesDuration returns the playing time of n mono samples at rate.
func SamplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}

// Buffer is a block of mono float samples ready to be scheduled.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the buffer's playing time.
func (b Buffer) Duration() time.Duration {
	return SamplesDuration(len(b.Samples), b.SampleRate)
}
