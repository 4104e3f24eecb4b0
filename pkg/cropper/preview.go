package cropper

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/menta2k/image-cropper/pkg/geom"
	"github.com/menta2k/image-cropper/pkg/imgsrc"
	"github.com/menta2k/image-cropper/pkg/processing"
)

// previewBackground fills the view where there is no image.
var previewBackground = image.NewUniform(color.NRGBA{0x20, 0x20, 0x20, 0xff})

// RenderPreview draws the session as the user sees it: the transformed image
// through view, the outside of the region dimmed, the region border and its
// handles. Only the visible part of the source is decoded, subsampled to the
// view resolution.
func RenderPreview(ctx context.Context, p Params, view geom.Matrix, viewSize geom.IntSize, style Style) (*image.NRGBA, error) {
	dst := image.NewNRGBA(viewSize.Rect().Image())
	draw.Draw(dst, dst.Bounds(), previewBackground, image.Point{}, draw.Src)

	total := p.Transform.Matrix(p.Src.Size()).Then(view)
	if params, ok := imgsrc.ParamsFor(viewSize, p.Src.Size(), total); ok {
		decoded, err := p.Src.Open(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("preview: %w", err)
		}
		draw.ApproxBiLinear.Transform(dst, DecodedToView(decoded, total).Aff3(),
			decoded.Image, decoded.Image.Bounds(), draw.Over, nil)
	}

	style = style.withDefaults()
	screen := view.MapRect(p.Region)
	box := image.Rect(
		int(math.Round(screen.Left)), int(math.Round(screen.Top)),
		int(math.Round(screen.Right)), int(math.Round(screen.Bottom)),
	)
	processing.DimOutside(dst, box, 0x99)
	processing.DrawRect(dst, box, processing.RegionColor, 2)

	size := int(math.Max(6, style.TouchRadius/2))
	for _, h := range style.Handles {
		pt := view.Map(p.Region.Abs(h)).Round()
		processing.DrawHandle(dst, image.Pt(int(pt.X), int(pt.Y)), size, processing.HandleColor)
	}
	return dst, nil
}
