package gemini

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/redilah/CulinaryAI/runtime/logger"
)

// Live API defaults.
const (
	DefaultModel = "gemini-2.5-flash-native-audio-preview-12-2025"
	DefaultVoice = "Zephyr"

	// DefaultInputSampleRate is the rate the Live API expects for realtime audio.
	DefaultInputSampleRate = 16000
	// DefaultOutputSampleRate is the rate of model audio when the mime type omits it.
	DefaultOutputSampleRate = 24000

	MimeTypeJPEG = "image/jpeg"

	responseModalityAudio = "AUDIO"
)

// LiveConfig configures one Live session.
type LiveConfig struct {
	Model             string // Model name (prefixed with "models/" automatically)
	Voice             string // Prebuilt voice name
	SystemInstruction string
	InputSampleRate   int // Rate of PCM passed to SendAudio
}

// buildSetupMessage constructs the initial setup message. The session always
// requests audio responses with both transcription streams.
func buildSetupMessage(cfg *LiveConfig) map[string]interface{} {
	setupContent := map[string]interface{}{
		"model":            getModelPath(cfg.Model),
		"generationConfig": buildGenerationConfig(cfg.Voice),
	}

	addTranscriptionConfig(setupContent)
	addSystemInstruction(setupContent, cfg.SystemInstruction)

	return map[string]interface{}{
		"setup": setupContent,
	}
}

// getModelPath ensures model is in correct format: models/{model}
func getModelPath(model string) string {
	if model == "" {
		model = DefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		return "models/" + model
	}
	return model
}

func buildGenerationConfig(voice string) map[string]interface{} {
	if voice == "" {
		voice = DefaultVoice
	}
	return map[string]interface{}{
		"responseModalities": []string{responseModalityAudio},
		"speechConfig": map[string]interface{}{
			"voiceConfig": map[string]interface{}{
				"prebuiltVoiceConfig": map[string]interface{}{
					"voiceName": voice,
				},
			},
		},
	}
}

func addTranscriptionConfig(setupContent map[string]interface{}) {
	setupContent["outputAudioTranscription"] = map[string]interface{}{}
	setupContent["inputAudioTranscription"] = map[string]interface{}{}
}

func addSystemInstruction(setupContent map[string]interface{}, instruction string) {
	if instruction != "" {
		setupContent["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{
				{"text": instruction},
			},
		}
	}
}

// audioMimeType returns the realtime input mime type for PCM at rate.
func audioMimeType(rate int) string {
	if rate <= 0 {
		rate = DefaultInputSampleRate
	}
	return "audio/pcm;rate=" + strconv.Itoa(rate)
}

// sampleRateFromMime parses "audio/pcm;rate=24000". Missing or invalid rates
// fall back to DefaultOutputSampleRate.
func sampleRateFromMime(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(key, "rate") {
			continue
		}
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
		return DefaultOutputSampleRate
	}
	return DefaultOutputSampleRate
}

// logSetupMessage logs the setup message at debug level
func logSetupMessage(setupMsg map[string]interface{}) {
	if setupJSON, err := json.MarshalIndent(setupMsg, "", "  "); err == nil {
		logger.Debug("Gemini setup message", "setup", string(setupJSON))
	}
}
