// Package media prepares camera stills for the live session: decoding,
// downscaling to the vision frame size and JPEG re-encoding under a byte cap.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	_ "image/gif" // Register GIF decoder
	_ "image/png" // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// MIMETypeJPEG is the only type frames are sent as.
const MIMETypeJPEG = "image/jpeg"

// Default frame geometry and encoding.
const (
	DefaultFrameWidth  = 640
	DefaultFrameHeight = 480
	DefaultQuality     = 60
	MinQuality         = 10
	QualityDecay       = 0.9
)

// ErrEmptyImage is returned for zero-length input.
var ErrEmptyImage = errors.New("empty image data")

// FrameConfig configures frame preparation.
type FrameConfig struct {
	// Width and Height are the output size in pixels.
	Width  int
	Height int

	// Quality is the JPEG quality (1-100). Default: 60.
	Quality int

	// MaxSizeBytes caps the encoded size (0 = no limit). Quality is reduced
	// until the frame fits or MinQuality is reached.
	MaxSizeBytes int

	// PreserveAspectRatio fits the image inside Width x Height instead of
	// stretching it to exactly that size.
	PreserveAspectRatio bool
}

// DefaultFrameConfig returns the 640x480, quality 60 vision frame settings.
func DefaultFrameConfig() FrameConfig {
	return FrameConfig{
		Width:   DefaultFrameWidth,
		Height:  DefaultFrameHeight,
		Quality: DefaultQuality,
	}
}

// Frame is an encoded still ready to send.
type Frame struct {
	Data         []byte
	Width        int
	Height       int
	Quality      int
	OriginalSize int
	SourceFormat string
}

// PrepareFrame decodes data (JPEG, PNG, GIF or WebP), scales it to the
// configured size and re-encodes it as JPEG.
func PrepareFrame(data []byte, cfg FrameConfig) (*Frame, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	frame, err := EncodeFrame(img, cfg)
	if err != nil {
		return nil, err
	}
	frame.OriginalSize = len(data)
	frame.SourceFormat = format
	return frame, nil
}

// EncodeFrame scales an already decoded image and encodes it as JPEG.
func EncodeFrame(img image.Image, cfg FrameConfig) (*Frame, error) {
	cfg = withDefaults(cfg)
	b := img.Bounds()
	w, h := calculateTargetDimensions(b.Dx(), b.Dy(), cfg.Width, cfg.Height, cfg.PreserveAspectRatio)

	var scaled image.Image = img
	if w != b.Dx() || h != b.Dy() {
		scaled = scale(img, w, h)
	}

	encoded, quality, err := encodeWithinSize(scaled, cfg.Quality, cfg.MaxSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return &Frame{
		Data:         encoded,
		Width:        w,
		Height:       h,
		Quality:      quality,
		SourceFormat: "raw",
	}, nil
}

func withDefaults(cfg FrameConfig) FrameConfig {
	if cfg.Width <= 0 {
		cfg.Width = DefaultFrameWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultFrameHeight
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultQuality
	}
	return cfg
}

// calculateTargetDimensions returns the output size. Without aspect
// preservation the frame is exactly maxWidth x maxHeight.
func calculateTargetDimensions(origWidth, origHeight, maxWidth, maxHeight int, preserveAspect bool) (int, int) {
	if !preserveAspect {
		return maxWidth, maxHeight
	}
	targetWidth, targetHeight := origWidth, origHeight
	if targetWidth > maxWidth {
		targetHeight = int(float64(targetHeight) * float64(maxWidth) / float64(targetWidth))
		targetWidth = maxWidth
	}
	if targetHeight > maxHeight {
		targetWidth = int(float64(targetWidth) * float64(maxHeight) / float64(targetHeight))
		targetHeight = maxHeight
	}
	return max(targetWidth, 1), max(targetHeight, 1)
}

// scale resamples src to width x height with Catmull-Rom.
func scale(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeWithinSize lowers quality by QualityDecay until the encoding fits
// maxSize. At MinQuality the result is returned even if still too large.
func encodeWithinSize(img image.Image, quality, maxSize int) ([]byte, int, error) {
	for {
		encoded, err := encodeJPEG(img, quality)
		if err != nil {
			return nil, quality, err
		}
		if maxSize <= 0 || len(encoded) <= maxSize || quality <= MinQuality {
			return encoded, quality, nil
		}
		quality = max(int(float64(quality)*QualityDecay), MinQuality)
	}
}
