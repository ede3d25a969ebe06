package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/redilah/CulinaryAI/pkg/config"
	"github.com/redilah/CulinaryAI/runtime/session"
)

// Viper keys. Each is also readable from CULINARY_<KEY>.
const (
	keyConfig         = "config"
	keyAPIKey         = "api_key"
	keyModel          = "model"
	keyVoice          = "voice"
	keyRecipe         = "recipe"
	keyStep           = "step"
	keyVision         = "vision"
	keyCameraDevice   = "camera_device"
	keyMetricsAddr    = "metrics_addr"
	keyTracingURL     = "tracing_endpoint"
	keyProfileBackend = "profile_backend"
	keyRedisAddr      = "redis_addr"
	keyProfileFile    = "profile_file"
)

// loadSettings reads the config file named by keyConfig (defaults when
// unset) and layers flag and environment overrides from v on top.
func loadSettings(v *viper.Viper) (*config.Config, error) {
	cfg := config.Default()
	if path := v.GetString(keyConfig); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := v.GetString(keyRecipe); path != "" {
		recipe, err := config.LoadRecipe(path)
		if err != nil {
			return nil, err
		}
		cfg.Recipe = *recipe
	}

	overrideString(v, keyAPIKey, &cfg.Live.APIKey)
	overrideString(v, keyModel, &cfg.Live.Model)
	overrideString(v, keyVoice, &cfg.Live.Voice)
	overrideString(v, keyCameraDevice, &cfg.Vision.Camera.Device)
	overrideString(v, keyMetricsAddr, &cfg.Metrics.Addr)
	overrideString(v, keyTracingURL, &cfg.Tracing.Endpoint)
	overrideString(v, keyProfileBackend, &cfg.Profile.Backend)
	overrideString(v, keyRedisAddr, &cfg.Profile.Redis.Addr)
	overrideString(v, keyProfileFile, &cfg.Profile.File.Path)
	if v.IsSet(keyVision) {
		cfg.Vision.Enabled = v.GetBool(keyVision)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		if val := v.GetString(key); val != "" {
			*dst = val
		}
	}
}

// resolveStep maps the --step value to a step index and its text. A number
// is a 1-based index into steps; anything else is used verbatim and is not
// part of the step list (index -1).
func resolveStep(steps []string, value string) (int, string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if len(steps) == 0 {
			return -1, "", nil
		}
		return 0, steps[0], nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return -1, value, nil
	}
	if n < 1 || n > len(steps) {
		return 0, "", fmt.Errorf("step %d out of range: recipe has %d steps", n, len(steps))
	}
	return n - 1, steps[n-1], nil
}

// sessionConfig maps the application config onto an assistant config.
func sessionConfig(cfg *config.Config, rememberedName string) session.Config {
	recipe := session.Recipe{Title: cfg.Recipe.Title}
	for _, ing := range cfg.Recipe.Ingredients {
		recipe.Ingredients = append(recipe.Ingredients, session.Ingredient{
			Name:     ing.Name,
			Quantity: ing.Quantity,
		})
	}

	sc := session.Config{
		Recipe:           recipe,
		RememberedName:   rememberedName,
		Model:            cfg.Live.Model,
		Voice:            cfg.Live.Voice,
		InputSampleRate:  cfg.Audio.InputSampleRate,
		OutputSampleRate: cfg.Audio.OutputSampleRate,
		MicBlockSize:     cfg.Audio.FrameSize,
	}
	if fps := cfg.Live.FramesPerSecond; fps > 0 {
		sc.FrameRateLimit = rate.Limit(fps)
	}
	return sc
}
