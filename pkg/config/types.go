package config

import (
	"time"
)

// Default values.
const (
	DefaultLiveURL          = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	DefaultModel            = "gemini-2.5-flash-native-audio-preview-12-2025"
	DefaultVoice            = "Zephyr"
	DefaultInputSampleRate  = 16000
	DefaultOutputSampleRate = 24000
	DefaultFrameSize        = 4096
	DefaultFrameInterval    = 2 * time.Second
	DefaultFrameWidth       = 640
	DefaultFrameHeight      = 480
	DefaultFrameQuality     = 60
	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisPrefix      = "culinaryai"
	DefaultMetricsAddr      = ""
	DefaultServiceName      = "culinary-live"
)

// Profile backends.
const (
	ProfileBackendMemory = "memory"
	ProfileBackendRedis  = "redis"
	ProfileBackendFile   = "file"
)

// Config is the full application configuration.
type Config struct {
	Live    LiveConfig        `yaml:"live"`
	Audio   AudioConfig       `yaml:"audio"`
	Vision  VisionConfig      `yaml:"vision"`
	Recipe  RecipeConfig      `yaml:"recipe"`
	Profile ProfileConfig     `yaml:"profile"`
	Metrics MetricsConfig     `yaml:"metrics"`
	Tracing TracingConfig     `yaml:"tracing"`
	Logging LoggingConfigSpec `yaml:"logging"`

	// ConfigFile is the path the config was loaded from, if any.
	ConfigFile string `yaml:"-"`
}

// LiveConfig selects the Live API endpoint and voice.
type LiveConfig struct {
	URL    string `yaml:"url,omitempty" jsonschema:"pattern=^wss?://,description=Live API WebSocket endpoint"`
	APIKey string `yaml:"apiKey,omitempty" jsonschema:"description=Gemini API key"`
	Model  string `yaml:"model,omitempty" jsonschema:"minLength=1"`
	Voice  string `yaml:"voice,omitempty" jsonschema:"minLength=1"`
	// FramesPerSecond caps SendFrame calls. Zero keeps the session default.
	FramesPerSecond float64 `yaml:"framesPerSecond,omitempty" jsonschema:"minimum=0"`
}

// AudioConfig configures capture and playback.
type AudioConfig struct {
	InputSampleRate  int `yaml:"inputSampleRate,omitempty" jsonschema:"minimum=8000,maximum=48000"`
	OutputSampleRate int `yaml:"outputSampleRate,omitempty" jsonschema:"minimum=8000,maximum=48000"`
	// FrameSize is the number of samples per microphone block.
	FrameSize int `yaml:"frameSize,omitempty" jsonschema:"minimum=256,maximum=16384"`
}

// VisionConfig configures the camera and frame pump.
type VisionConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval,omitempty"`
	Width    int           `yaml:"width,omitempty" jsonschema:"minimum=16"`
	Height   int           `yaml:"height,omitempty" jsonschema:"minimum=16"`
	Quality  int           `yaml:"quality,omitempty" jsonschema:"minimum=1,maximum=100"`
	Camera   CameraConfig  `yaml:"camera,omitempty"`
}

// CameraConfig selects the ffmpeg capture device.
type CameraConfig struct {
	FFmpegPath  string `yaml:"ffmpegPath,omitempty"`
	InputFormat string `yaml:"inputFormat,omitempty"`
	Device      string `yaml:"device,omitempty"`
}

// RecipeConfig describes the dish being cooked.
type RecipeConfig struct {
	Title       string             `yaml:"title"`
	Ingredients []IngredientConfig `yaml:"ingredients,omitempty"`
	Steps       []string           `yaml:"steps,omitempty"`
}

// IngredientConfig is one recipe ingredient.
type IngredientConfig struct {
	Name     string `yaml:"name" jsonschema:"required,minLength=1"`
	Quantity string `yaml:"quantity,omitempty"`
}

// ProfileConfig selects where the remembered user name lives.
type ProfileConfig struct {
	Backend string      `yaml:"backend,omitempty" jsonschema:"enum=memory,enum=redis,enum=file"`
	Redis   RedisConfig `yaml:"redis,omitempty"`
	File    FileConfig  `yaml:"file,omitempty"`
}

// RedisConfig configures the Redis profile backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty" jsonschema:"minimum=0"`
	Prefix   string        `yaml:"prefix,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

// FileConfig configures the YAML file profile backend.
type FileConfig struct {
	// Path defaults to the user config directory.
	Path string `yaml:"path,omitempty"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	// Addr is the listen address. Empty disables the exporter.
	Addr string `yaml:"addr,omitempty"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	// Endpoint is the OTLP/HTTP traces URL. Empty disables tracing.
	Endpoint    string `yaml:"endpoint,omitempty"`
	ServiceName string `yaml:"serviceName,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Live: LiveConfig{
			URL:   DefaultLiveURL,
			Model: DefaultModel,
			Voice: DefaultVoice,
		},
		Audio: AudioConfig{
			InputSampleRate:  DefaultInputSampleRate,
			OutputSampleRate: DefaultOutputSampleRate,
			FrameSize:        DefaultFrameSize,
		},
		Vision: VisionConfig{
			Interval: DefaultFrameInterval,
			Width:    DefaultFrameWidth,
			Height:   DefaultFrameHeight,
			Quality:  DefaultFrameQuality,
		},
		Profile: ProfileConfig{
			Backend: ProfileBackendFile,
			Redis: RedisConfig{
				Addr:   DefaultRedisAddr,
				Prefix: DefaultRedisPrefix,
			},
		},
		Metrics: MetricsConfig{Addr: DefaultMetricsAddr},
		Tracing: TracingConfig{ServiceName: DefaultServiceName},
		Logging: DefaultLoggingConfig(),
	}
}

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	if c.Live.APIKey == "" {
		return &ValidationError{Field: "live.apiKey", Message: "API key is required"}
	}
	if c.Recipe.Title == "" {
		return &ValidationError{Field: "recipe.title", Message: "recipe title is required"}
	}
	if c.Audio.InputSampleRate <= 0 || c.Audio.OutputSampleRate <= 0 {
		return &ValidationError{Field: "audio", Message: "sample rates must be positive"}
	}
	if c.Vision.Interval <= 0 {
		return &ValidationError{Field: "vision.interval", Message: "must be positive", Value: c.Vision.Interval.String()}
	}
	switch c.Profile.Backend {
	case ProfileBackendMemory, ProfileBackendRedis, ProfileBackendFile:
	default:
		return &ValidationError{
			Field:   "profile.backend",
			Message: "must be one of: memory, redis, file",
			Value:   c.Profile.Backend,
		}
	}
	return c.Logging.Validate()
}
