package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/redilah/CulinaryAI/cmd/culinary-live/ui"
	"github.com/redilah/CulinaryAI/pkg/config"
	"github.com/redilah/CulinaryAI/runtime/audio/portaudio"
	"github.com/redilah/CulinaryAI/runtime/events"
	"github.com/redilah/CulinaryAI/runtime/logger"
	"github.com/redilah/CulinaryAI/runtime/media"
	"github.com/redilah/CulinaryAI/runtime/metrics/prometheus"
	"github.com/redilah/CulinaryAI/runtime/session"
	"github.com/redilah/CulinaryAI/runtime/statestore"
	"github.com/redilah/CulinaryAI/runtime/streaming"
	"github.com/redilah/CulinaryAI/runtime/telemetry"
	"github.com/redilah/CulinaryAI/runtime/version"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a live cooking session",
	Long: `Start Nary for a recipe. Press enter to go live, v to toggle the camera,
n/p to move between recipe steps and q to quit.`,
	RunE: runLive,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.StringP("config", "c", "", "Config file (YAML)")
	flags.String("api-key", "", "Gemini API key (default $CULINARY_API_KEY or $GEMINI_API_KEY)")
	flags.String("model", "", "Live model name")
	flags.String("voice", "", "Prebuilt voice name")
	flags.StringP("recipe", "r", "", "Recipe file (YAML), replaces the config recipe")
	flags.StringP("step", "s", "", "Current step: 1-based index into the recipe steps, or free text")
	flags.Bool("vision", false, "Start with the camera on")
	flags.String("camera-device", "", "ffmpeg input device for the camera")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.String("tracing-endpoint", "", "OTLP/HTTP traces endpoint")
	flags.String("profile-backend", "", "Where to remember your name: memory, redis or file")
	flags.String("redis-addr", "", "Redis address for the redis profile backend")
	flags.String("profile-file", "", "Profile file for the file backend")

	_ = viper.BindPFlag(keyConfig, flags.Lookup("config"))
	_ = viper.BindPFlag(keyAPIKey, flags.Lookup("api-key"))
	_ = viper.BindPFlag(keyModel, flags.Lookup("model"))
	_ = viper.BindPFlag(keyVoice, flags.Lookup("voice"))
	_ = viper.BindPFlag(keyRecipe, flags.Lookup("recipe"))
	_ = viper.BindPFlag(keyStep, flags.Lookup("step"))
	_ = viper.BindPFlag(keyVision, flags.Lookup("vision"))
	_ = viper.BindPFlag(keyCameraDevice, flags.Lookup("camera-device"))
	_ = viper.BindPFlag(keyMetricsAddr, flags.Lookup("metrics-addr"))
	_ = viper.BindPFlag(keyTracingURL, flags.Lookup("tracing-endpoint"))
	_ = viper.BindPFlag(keyProfileBackend, flags.Lookup("profile-backend"))
	_ = viper.BindPFlag(keyRedisAddr, flags.Lookup("redis-addr"))
	_ = viper.BindPFlag(keyProfileFile, flags.Lookup("profile-file"))
}

func runLive(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(viper.GetViper())
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.Logging.LoggerSpec()); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	version.LogStartup()

	stepIndex, stepText, err := resolveStep(cfg.Recipe.Steps, viper.GetString(keyStep))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	bus := events.NewEventBus()
	defer bus.Close()

	console := ui.NewConsole(cmd.OutOrStdout())
	console.Attach(bus)
	bus.SubscribeAll(prometheus.NewMetricsListener().Listener())
	telemetry.NewOTelEventListener(telemetry.Tracer(nil)).WithParent(ctx).Attach(bus)

	store, closeStore, err := openProfileStore(ctx, cfg.Profile)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	name, err := statestore.LoadRememberedName(ctx, store)
	if err != nil {
		logger.Warn("Could not load remembered name", "error", err)
	}
	statestore.NewNameListener(store).Attach(bus)

	backend, err := portaudio.New()
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer func() { _ = backend.Close() }()

	assistant, err := session.NewAssistant(sessionConfig(cfg, name), session.Dependencies{
		Audio:      backend,
		Connector:  session.NewGeminiConnector(cfg.Live.URL, cfg.Live.APIKey),
		Transcript: console,
		Events:     bus,
	})
	if err != nil {
		return err
	}
	defer func() { _ = assistant.Stop() }()

	camera := media.NewFFmpegCamera(media.CameraConfig{
		FFmpegPath:  cfg.Vision.Camera.FFmpegPath,
		InputFormat: cfg.Vision.Camera.InputFormat,
		Device:      cfg.Vision.Camera.Device,
	})
	if cfg.Vision.Enabled {
		if err := media.CheckFFmpegAvailable(cfg.Vision.Camera.FFmpegPath); err != nil {
			console.Warn("Kamera tidak tersedia: %v", err)
		}
	}
	pump := streaming.NewFramePump(camera, assistant, streaming.FramePumpConfig{
		Interval: cfg.Vision.Interval,
		Frame: media.FrameConfig{
			Width:               cfg.Vision.Width,
			Height:              cfg.Vision.Height,
			Quality:             cfg.Vision.Quality,
			PreserveAspectRatio: true,
		},
	})
	defer pump.Close()
	pump.SetVision(cfg.Vision.Enabled)

	ctrl := &controller{
		session:  assistant,
		vision:   pump,
		out:      console,
		steps:    cfg.Recipe.Steps,
		step:     stepIndex,
		stepText: stepText,
	}
	ctrl.Attach(bus)

	greet(console, cfg, name, ctrl.currentStep())

	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	if cfg.Metrics.Addr != "" {
		exporter := prometheus.NewExporter(cfg.Metrics.Addr)
		ln, err := net.Listen("tcp", cfg.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		console.Status("Metrics: http://%s/metrics", ln.Addr())
		g.Go(func() error {
			if err := exporter.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			return exporter.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return ctrl.loop(gctx, cmd.InOrStdin())
	})

	err = g.Wait()
	ctrl.shutdown()
	return err
}

func greet(console *ui.Console, cfg *config.Config, name, step string) {
	console.Success("Nary siap memasak %s bersamamu.", cfg.Recipe.Title)
	if name != "" {
		console.Status("Halo lagi, %s!", name)
	}
	if step != "" {
		console.Status("Langkah sekarang: %s", step)
	}
	console.Status(helpText)
}

// setupTracing installs an OTLP tracer provider when an endpoint is set. The
// returned func flushes and shuts it down.
func setupTracing(ctx context.Context, cfg *config.Config) (func(), error) {
	telemetry.SetupPropagation()
	if cfg.Tracing.Endpoint == "" {
		return func() {}, nil
	}
	tp, err := telemetry.NewTracerProvider(ctx, cfg.Tracing.Endpoint, telemetry.Resource{
		ServiceName: cfg.Tracing.ServiceName,
		Model:       cfg.Live.Model,
		Voice:       cfg.Live.Voice,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	otel.SetTracerProvider(tp)
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", "error", err)
		}
	}, nil
}
