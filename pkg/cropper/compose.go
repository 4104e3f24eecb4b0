package cropper

import (
	"context"
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/imgsrc"
	"github.com/menta2k/image-cropper/pkg/shape"
)

// Compose renders the region of p into a new image. The result has the size
// of the region, scaled down to fit maxSize when it is not nil. Only the
// visible subset of the source is decoded, at the coarsest sample size that
// still covers the output resolution. Pixels outside the shape are
// transparent.
func Compose(ctx context.Context, p Params, maxSize *geom.Size) (*image.RGBA, error) {
	if p.Src == nil {
		return nil, errors.New("compose: no image source")
	}
	if p.Region.IsEmpty() {
		return nil, fmt.Errorf("compose: empty region %v", p.Region)
	}

	finalSize := p.Region.Size().CoerceAtMost(maxSize).RoundUp()
	view := NewViewMat()
	view.SnapFit(p.Region, finalSize.Rect().ToRect())
	imgSize := p.Src.Size()
	total := p.Transform.Matrix(imgSize).Then(view.Matrix())

	sh := p.Shape
	if sh == nil {
		sh = shape.Rect
	}
	mask := shape.Mask(sh, finalSize, p.Region.AtOrigin(maxSize))

	params, ok := imgsrc.ParamsFor(finalSize, imgSize, total)
	if !ok {
		return nil, fmt.Errorf("compose: %w", imgsrc.ErrNothingVisible)
	}
	decoded, err := p.Src.Open(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("compose: decode %v: %w", params.Subset, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := image.NewRGBA(finalSize.Rect().Image())
	draw.CatmullRom.Transform(dst, DecodedToView(decoded, total).Aff3(),
		decoded.Image, decoded.Image.Bounds(), draw.Over, &draw.Options{DstMask: mask})
	return dst, nil
}

// DecodedToView maps pixels of a decoded (possibly subsampled) subset to view
// space: back to source pixels, then through total.
func DecodedToView(d *imgsrc.DecodeResult, total geom.Matrix) geom.Matrix {
	b := d.Image.Bounds()
	sub := d.Params.Subset
	sx := float64(sub.Width()) / float64(b.Dx())
	sy := float64(sub.Height()) / float64(b.Dy())
	tl := sub.TopLeft()
	return geom.Translate(-float64(b.Min.X), -float64(b.Min.Y)).
		Then(geom.Scale(sx, sy)).
		Then(geom.Translate(tl.X, tl.Y)).
		Then(total)
}
