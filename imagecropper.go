// Package imagecropper crops images the way an interactive session would,
// without a user: rotate and flip the image, pick an aspect and a clip shape,
// optionally let a subject locator place the region, then compose the result.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		imagecropper "github.com/menta2k/image-cropper"
//		"github.com/menta2k/image-cropper/pkg/cropper"
//		"github.com/menta2k/image-cropper/pkg/processing"
//	)
//
//	func main() {
//		ic, err := imagecropper.New(imagecropper.Options{
//			Style:  cropper.DefaultStyle(),
//			Rotate: 90,
//			Aspect: "square",
//			Shape:  "oval",
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		res, err := ic.CropFile(context.Background(), "photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		if err := processing.NewProcessor().SaveImage(res.Image, "photo_square.png", ""); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The interactive pieces live in the sub packages:
//
//  1. Geometry (pkg/geom): rectangles, sizes and affine matrices
//  2. Sources (pkg/imgsrc): decoding only the visible part of an image
//  3. Cropper (pkg/cropper): session state, gestures, preview and compose
//  4. Suggest (pkg/suggest): saliency and vision model subject locators
package imagecropper

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/imgsrc"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/shape"
	"github.com/menta2k/image-cropper/pkg/suggest"
)

// Version of the image cropper library
const Version = "1.0.0"

// defaultSuggestMaxDim bounds the thumbnail handed to a suggester.
const defaultSuggestMaxDim = 512

// ErrCancelled is returned when a crop ends without a result.
var ErrCancelled = errors.New("crop cancelled")

// Options describes the edits of a non interactive crop. They are applied in
// this order: rotation, flips, aspect, suggestion, region, shape.
type Options struct {
	Style cropper.Style
	// Rotate is the clockwise rotation in degrees, a multiple of 90.
	Rotate         int
	FlipHorizontal bool
	FlipVertical   bool
	// Aspect is a preset name or "W:H". It is applied and locked.
	Aspect string
	// Shape names the clip shape; empty keeps the first style shape.
	Shape string
	// Region is the crop region in pixels of the rotated image.
	Region *geom.Rect
	// Suggester, when set, places the region on the main subject.
	Suggester     suggest.Suggester
	SuggestMaxDim int
	MinImageSize  int
	Logger        *slog.Logger
}

// Result is a composed crop.
type Result struct {
	Image image.Image
	// Params is the session the image was composed from.
	Params     cropper.Params
	Suggestion *suggest.Suggestion
	Elapsed    time.Duration
}

// ImageCropper runs non interactive crops.
type ImageCropper struct {
	opts   Options
	aspect *cropper.AspectRatio
	shape  shape.Shape
	logger *slog.Logger
}

// New checks opts and creates an ImageCropper.
func New(opts Options) (*ImageCropper, error) {
	if opts.Rotate%90 != 0 {
		return nil, fmt.Errorf("rotation must be a multiple of 90 degrees, got %d", opts.Rotate)
	}
	ic := &ImageCropper{opts: opts, logger: opts.Logger}
	if ic.logger == nil {
		ic.logger = slog.Default()
	}
	if opts.Aspect != "" {
		a, err := cropper.ParseAspectRatio(opts.Aspect)
		if err != nil {
			return nil, err
		}
		ic.aspect = &a
	}
	if opts.Shape != "" {
		s, err := shape.ByName(opts.Shape)
		if err != nil {
			return nil, err
		}
		ic.shape = s
	}
	if ic.opts.SuggestMaxDim <= 0 {
		ic.opts.SuggestMaxDim = defaultSuggestMaxDim
	}
	return ic, nil
}

// Apply performs the configured edits on a session. It returns the
// suggestion used, if any.
func (ic *ImageCropper) Apply(ctx context.Context, st *cropper.State) (*suggest.Suggestion, error) {
	for i := 0; i < ((ic.opts.Rotate%360)+360)%360/90; i++ {
		st.RotRight()
	}
	if ic.opts.FlipHorizontal {
		st.FlipHorizontal()
	}
	if ic.opts.FlipVertical {
		st.FlipVertical()
	}
	if ic.aspect != nil {
		st.SetAspect(*ic.aspect)
		st.SetAspectLock(true)
	}

	var sg *suggest.Suggestion
	if ic.opts.Suggester != nil {
		thumb, err := imgsrc.Thumbnail(ctx, st.Src(), ic.opts.SuggestMaxDim)
		if err != nil {
			return nil, fmt.Errorf("failed to decode thumbnail: %w", err)
		}
		if sg, err = ic.opts.Suggester.Suggest(ctx, thumb); err != nil {
			return nil, fmt.Errorf("subject detection failed: %w", err)
		}
		if !sg.None() {
			st.ApplySuggestion(sg.Box)
		}
		ic.logger.Debug("subject suggested", "label", sg.Label, "confidence", sg.Confidence, "box", sg.Box)
	}

	if ic.opts.Region != nil {
		// region space keeps the rotation pivot fixed, so the rotated image
		// does not start at the origin
		st.SetRegion(ic.opts.Region.Translate(st.ImageRect().TopLeft()))
	}
	if ic.shape != nil {
		st.SetShape(ic.shape)
	}
	return sg, nil
}

// Crop runs a session on src, applies the edits and composes the result.
func (ic *ImageCropper) Crop(ctx context.Context, src imgsrc.ImageSrc) (*Result, error) {
	var (
		out      Result
		applyErr error
	)
	c := cropper.New(
		cropper.WithStyle(ic.opts.Style),
		cropper.WithLogger(ic.logger),
		cropper.WithSessionHook(func(st *cropper.State) {
			out.Suggestion, applyErr = ic.Apply(ctx, st)
			out.Params = st.Snapshot()
			st.Done(applyErr == nil)
		}),
		cropper.WithResultHook(func(_ cropper.Result, elapsed time.Duration) {
			out.Elapsed = elapsed
		}),
	)

	res := c.Crop(ctx, func(context.Context) (imgsrc.ImageSrc, error) {
		if src != nil && ic.opts.MinImageSize > 0 {
			if err := imgsrc.Validate(src, ic.opts.MinImageSize); err != nil {
				return nil, err
			}
		}
		return src, nil
	})
	if applyErr != nil {
		return nil, applyErr
	}
	switch res.Status {
	case cropper.Failed:
		return nil, res.Err
	case cropper.Cancelled:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrCancelled
	}
	out.Image = res.Image
	return &out, nil
}

// CropFile opens an image file, streaming BMP and seekable zstd BMP files,
// and crops it.
func (ic *ImageCropper) CropFile(ctx context.Context, path string) (*Result, error) {
	src, err := imgsrc.OpenPath(path)
	if err != nil {
		return nil, err
	}
	return ic.Crop(ctx, src)
}

// DebugOverlay renders the whole transformed image with the suggested box
// and the crop region outlined.
func DebugOverlay(ctx context.Context, res *Result) (*image.NRGBA, error) {
	p := res.Params
	size := p.Src.Size()
	m := p.Transform.Matrix(size)
	bounds := m.MapRect(size.Rect().ToRect())

	full, err := cropper.Compose(ctx, cropper.Params{Src: p.Src, Transform: p.Transform, Region: bounds}, nil)
	if err != nil {
		return nil, err
	}

	origin := bounds.TopLeft().Mul(-1)
	var suggested image.Rectangle
	if res.Suggestion != nil && !res.Suggestion.None() {
		img := size.Rect().ToRect()
		abs := geom.RectFromCorners(img.Abs(res.Suggestion.Box.TopLeft()), img.Abs(res.Suggestion.Box.BottomRight()))
		suggested = m.MapRect(abs).Translate(origin).RoundOut().Image()
	}
	region := p.Region.Translate(origin).RoundOut().Image()
	return processing.CreateDebugOverlay(full, suggested, region), nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
