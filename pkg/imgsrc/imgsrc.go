// Package imgsrc abstracts where a crop image comes from and how much of it
// has to be decoded to render a given view.
//
// A source only ever decodes the pixel subset that is visible and, when the
// view is smaller than the source, a power of two subsampled version of it.
package imgsrc

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// ErrNothingVisible is returned when a view does not intersect the image.
var ErrNothingVisible = errors.New("no part of the image is visible")

// DecodeParams selects the part of a source to decode.
type DecodeParams struct {
	// SampleSize is the subsampling factor, a power of two. 1 decodes at
	// full resolution, 2 at half and so on.
	SampleSize int `json:"sample_size" yaml:"sample_size"`
	// Subset is the region of the source to decode, in source pixels.
	Subset geom.IntRect `json:"subset" yaml:"subset"`
}

// DecodeResult holds a decoded subset. Params may differ from the requested
// ones when a source cannot honour them, for example when it always decodes
// the full image. Image bounds start at the origin.
type DecodeResult struct {
	Params DecodeParams
	Image  image.Image
}

// ImageSrc is an image origin: camera capture, gallery file, in-memory
// bitmap or a streamed file.
type ImageSrc interface {
	// Size returns the intrinsic size of the image, orientation applied.
	Size() geom.IntSize
	// Open decodes the requested subset.
	Open(ctx context.Context, params DecodeParams) (*DecodeResult, error)
}

// ParamsFor computes the decode parameters needed to render the image of
// size img through m (image space to view space) into a view of size view.
// It returns false when no part of the image lands in the view.
func ParamsFor(view, img geom.IntSize, m geom.Matrix) (DecodeParams, bool) {
	inv, ok := m.Invert()
	if !ok || view.IsEmpty() || img.IsEmpty() {
		return DecodeParams{}, false
	}
	imgRect := img.Rect()
	subset := inv.MapRect(view.Rect().ToRect()).Intersect(imgRect.ToRect())
	if subset.IsEmpty() {
		return DecodeParams{}, false
	}

	dst := m.MapRect(subset)
	sample := SampleSizeFor(math.Sqrt(subset.Area() / dst.Area()))
	aligned := subset.Align(sample).RoundOut().Intersect(imgRect)
	if aligned.IsEmpty() {
		return DecodeParams{}, false
	}
	return DecodeParams{SampleSize: sample, Subset: aligned}, true
}

// SampleSizeFor returns the largest power of two not exceeding ratio, at
// least 1. Ratios within rounding error of a power of two count as reaching it.
func SampleSizeFor(ratio float64) int {
	sample := 1
	for next := float64(sample * 2); next <= ratio || geom.Eq(next, ratio); next = float64(sample * 2) {
		sample *= 2
	}
	return sample
}

// Validate checks that a source meets the minimum dimensions.
func Validate(src ImageSrc, minSize int) error {
	size := src.Size()
	if size.Width < minSize || size.Height < minSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)", size.Width, size.Height, minSize)
	}
	return nil
}

// Full returns the parameters decoding the whole of src at full resolution.
func Full(src ImageSrc) DecodeParams {
	return DecodeParams{SampleSize: 1, Subset: src.Size().Rect()}
}

// Thumbnail decodes the whole of src subsampled so that its longest side is
// at most about 2*maxDim. It is meant for analysis, not display.
func Thumbnail(ctx context.Context, src ImageSrc, maxDim int) (image.Image, error) {
	size := src.Size()
	params := Full(src)
	if long := max(size.Width, size.Height); maxDim > 0 && long > maxDim {
		params.SampleSize = SampleSizeFor(float64(long) / float64(maxDim))
	}
	res, err := src.Open(ctx, params)
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}
