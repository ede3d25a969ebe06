package audio

import (
	"encoding/binary"
	"testing"
)

func rampPCM16(n int) []byte {
	input := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(input[i*2:], uint16(i*100))
	}
	return input
}

func TestResamplePCM16_SameRate(t *testing.T) {
	input := rampPCM16(50)

	output, err := ResamplePCM16(input, 24000, 24000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(output) != len(input) {
		t.Errorf("expected output length %d, got %d", len(input), len(output))
	}
	output[0] = 0xff
	if input[0] == 0xff {
		t.Error("same-rate resample must return a copy")
	}
}

func TestResamplePCM16_Downsample(t *testing.T) {
	// 100 samples at 24kHz -> ~67 samples at 16kHz
	numInputSamples := 100
	output, err := ResamplePCM16(rampPCM16(numInputSamples), SampleRate24kHz, SampleRate16kHz)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedSamples := int(float64(numInputSamples) * 16000 / 24000)
	if actual := len(output) / 2; actual != expectedSamples {
		t.Errorf("expected %d output samples, got %d", expectedSamples, actual)
	}
}

func TestResamplePCM16_Upsample(t *testing.T) {
	// 100 samples at 16kHz -> 150 samples at 24kHz
	output, err := ResamplePCM16(rampPCM16(100), SampleRate16kHz, SampleRate24kHz)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if actual := len(output) / 2; actual != 150 {
		t.Errorf("expected 150 output samples, got %d", actual)
	}
	// Interpolated value between sample 0 (0) and sample 1 (100).
	if got := int16(binary.LittleEndian.Uint16(output[2:])); got != 66 {
		t.Errorf("expected interpolated sample 66, got %d", got)
	}
}

func TestResamplePCM16_InvalidInput(t *testing.T) {
	if _, err := ResamplePCM16(make([]byte, 101), 24000, 16000); err == nil {
		t.Error("expected error for odd byte count")
	}
}

func TestResamplePCM16_InvalidRates(t *testing.T) {
	input := make([]byte, 100)

	if _, err := ResamplePCM16(input, 0, 16000); err == nil {
		t.Error("expected error for zero from rate")
	}
	if _, err := ResamplePCM16(input, 16000, 0); err == nil {
		t.Error("expected error for zero to rate")
	}
}

func TestResampleFloat32_48kTo16k(t *testing.T) {
	input := make([]float32, 4800) // 100ms at 48kHz
	for i := range input {
		input[i] = float32(i) / float32(len(input))
	}

	output, err := ResampleFloat32(input, 48000, SampleRate16kHz)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output) != 1600 {
		t.Fatalf("expected 1600 samples, got %d", len(output))
	}
	if output[1] != input[3] {
		t.Errorf("expected output[1] == input[3], got %v vs %v", output[1], input[3])
	}
}

func TestResampleFloat32_EdgeCases(t *testing.T) {
	if _, err := ResampleFloat32([]float32{1}, -1, 16000); err == nil {
		t.Error("expected error for negative rate")
	}

	out, err := ResampleFloat32(nil, 48000, 16000)
	if err != nil || len(out) != 0 {
		t.Errorf("expected empty output, got %v, %v", out, err)
	}

	same, err := ResampleFloat32([]float32{0.5, -0.5}, 16000, 16000)
	if err != nil || len(same) != 2 || same[1] != -0.5 {
		t.Errorf("unexpected same-rate result %v, %v", same, err)
	}
}
