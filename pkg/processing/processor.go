package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Supported output formats
const (
	FormatJPEG = "jpg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// Processor encodes and saves crop results
type Processor struct {
	Quality  int
	Lossless bool
}

// NewProcessor creates a new processor with default quality
func NewProcessor() *Processor {
	return &Processor{Quality: 90}
}

// NormalizeFormat maps a format name or file extension to one of the
// supported formats.
func NormalizeFormat(format string) (string, error) {
	f := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	switch f {
	case "jpg", "jpeg", "":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// FormatFromPath returns the output format implied by a file extension
func FormatFromPath(path string) (string, error) {
	return NormalizeFormat(filepath.Ext(path))
}

// Encode writes img to w in the given format
func (p *Processor) Encode(w io.Writer, img image.Image, format string) error {
	f, err := NormalizeFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case FormatWebP:
		opts := &webp.Options{Lossless: p.Lossless, Quality: float32(p.Quality)}
		if err := webp.Encode(w, img, opts); err != nil {
			return fmt.Errorf("encode webp: %w", err)
		}
	case FormatPNG:
		if err := imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression)); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
	default:
		if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(p.Quality)); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
	}
	return nil
}

// SaveImage saves an image to a file with the specified format
func (p *Processor) SaveImage(img image.Image, path, format string) error {
	if format == "" {
		var err error
		if format, err = FormatFromPath(path); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := p.Encode(f, img, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeBase64 encodes img and returns it base64 encoded, for JSON transports
func (p *Processor) EncodeBase64(img image.Image, format string) (string, error) {
	var buf bytes.Buffer
	if err := p.Encode(&buf, img, format); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodeForModel downsizes img so its longest side is at most maxDim and
// encodes it for sending to vision models
func (p *Processor) EncodeForModel(img image.Image, format string, maxDim int, quality int) ([]byte, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	enc := &Processor{Quality: quality}
	if err := enc.Encode(&buf, img, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PrepareImageForModel is EncodeForModel with base64 output, for JSON
// payloads
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	data, err := p.EncodeForModel(img, format, maxDim, quality)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
