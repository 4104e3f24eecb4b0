package imgsrc

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// Bitmap is an already decoded, in-memory image.
type Bitmap struct {
	img image.Image
}

// NewBitmap wraps img as a source.
func NewBitmap(img image.Image) *Bitmap {
	return &Bitmap{img: img}
}

// Size returns the bounds size of the wrapped image.
func (b *Bitmap) Size() geom.IntSize {
	r := b.img.Bounds()
	return geom.IntSize{Width: r.Dx(), Height: r.Dy()}
}

// Image returns the wrapped image.
func (b *Bitmap) Image() image.Image {
	return b.img
}

// Open returns the requested subset, subsampled with a box filter.
func (b *Bitmap) Open(ctx context.Context, params DecodeParams) (*DecodeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	subset := params.Subset.Intersect(b.Size().Rect())
	if subset.IsEmpty() {
		return nil, fmt.Errorf("subset %v outside %v: %w", params.Subset, b.Size(), ErrNothingVisible)
	}
	sample := params.SampleSize
	if sample < 1 {
		sample = 1
	}

	origin := b.img.Bounds().Min
	img := imaging.Crop(b.img, subset.Image().Add(origin))
	return &DecodeResult{
		Params: DecodeParams{SampleSize: sample, Subset: subset},
		Image:  downsample(img, sample),
	}, nil
}

// downsample shrinks img by sample on both axes, rounding up.
func downsample(img image.Image, sample int) image.Image {
	if sample <= 1 {
		return img
	}
	r := img.Bounds()
	w := (r.Dx() + sample - 1) / sample
	h := (r.Dy() + sample - 1) / sample
	return imaging.Resize(img, w, h, imaging.Box)
}
