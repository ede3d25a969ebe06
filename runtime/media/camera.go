package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/redilah/CulinaryAI/runtime/logger"
)

// FFmpeg error types.
var (
	ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")
	ErrFFmpegTimeout  = errors.New("ffmpeg execution timed out")
	ErrNoFrame        = errors.New("camera produced no frame")
)

// Default camera settings.
const (
	DefaultFFmpegPath         = "ffmpeg"
	DefaultCaptureTimeout     = 5 * time.Second
	DefaultFFmpegCheckTimeout = 5 * time.Second
)

// CameraConfig selects the capture device.
type CameraConfig struct {
	// FFmpegPath is the path to the ffmpeg binary. Default: "ffmpeg".
	FFmpegPath string

	// InputFormat is the ffmpeg demuxer (v4l2, avfoundation, dshow).
	// Default: chosen from the OS.
	InputFormat string

	// Device is the demuxer input, e.g. /dev/video0, "0" or "video=Webcam".
	Device string

	// Timeout bounds one capture. Default: 5s.
	Timeout time.Duration
}

// FFmpegCamera grabs single JPEG stills by running ffmpeg once per frame.
type FFmpegCamera struct {
	config CameraConfig
}

// NewFFmpegCamera creates a camera with defaults applied.
func NewFFmpegCamera(config CameraConfig) *FFmpegCamera {
	if config.FFmpegPath == "" {
		config.FFmpegPath = DefaultFFmpegPath
	}
	if config.InputFormat == "" {
		config.InputFormat = defaultInputFormat(runtime.GOOS)
	}
	if config.Device == "" {
		config.Device = defaultDevice(config.InputFormat)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultCaptureTimeout
	}
	return &FFmpegCamera{config: config}
}

func defaultInputFormat(goos string) string {
	switch goos {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "v4l2"
	}
}

func defaultDevice(format string) string {
	switch format {
	case "avfoundation":
		return "0"
	case "dshow":
		return "video=Integrated Camera"
	default:
		return "/dev/video0"
	}
}

// buildArgs returns ffmpeg arguments that write one MJPEG frame to stdout.
func (c *FFmpegCamera) buildArgs() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", c.config.InputFormat,
		"-i", c.config.Device,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	}
}

// CaptureFrame returns one encoded still from the device.
func (c *FFmpegCamera) CaptureFrame(ctx context.Context) ([]byte, error) {
	captureCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	args := c.buildArgs()
	//nolint:gosec // G204: FFmpegPath is configurable but expected to be ffmpeg binary
	cmd := exec.CommandContext(captureCtx, c.config.FFmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Trace("Running ffmpeg", "args", args)

	if err := cmd.Run(); err != nil {
		if errors.Is(captureCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrFFmpegTimeout
		}
		if execErr, ok := err.(*exec.Error); ok && execErr.Err == exec.ErrNotFound {
			return nil, ErrFFmpegNotFound
		}
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, ErrNoFrame
	}
	return stdout.Bytes(), nil
}

// CheckFFmpegAvailable checks if ffmpeg is available in PATH.
func CheckFFmpegAvailable(ffmpegPath string) error {
	if ffmpegPath == "" {
		ffmpegPath = DefaultFFmpegPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultFFmpegCheckTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffmpegPath, "-version")
	if err := cmd.Run(); err != nil {
		if execErr, ok := err.(*exec.Error); ok && execErr.Err == exec.ErrNotFound {
			return ErrFFmpegNotFound
		}
		return fmt.Errorf("ffmpeg check failed: %w", err)
	}
	return nil
}
