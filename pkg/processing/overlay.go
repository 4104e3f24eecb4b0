package processing

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Overlay colors
var (
	RegionColor  = color.NRGBA{255, 255, 255, 255}
	HandleColor  = color.NRGBA{255, 204, 0, 255}
	SuggestColor = color.NRGBA{0, 255, 0, 255}
)

// CreateDebugOverlay returns a copy of img with the suggested subject box and
// the crop region outlined. Both are in pixel coordinates of img; an empty
// rectangle is skipped.
func CreateDebugOverlay(img image.Image, suggested, region image.Rectangle) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()
	stroke := int(math.Max(2, 0.004*float64(min(w, h)))) // ~0.4% of min side

	if !suggested.Empty() {
		DrawRect(nrgba, suggested, SuggestColor, stroke)
	}
	if !region.Empty() {
		DrawRect(nrgba, region, HandleColor, stroke)
	}

	// image center marker
	ix, iy := w/2, h/2
	drawHLine(nrgba, iy, ix-6, ix+6, RegionColor)
	drawVLine(nrgba, ix, iy-6, iy+6, RegionColor)
	return nrgba
}

// DrawRect outlines r with lines of the given stroke, drawn inwards
func DrawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	r = r.Canon()
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

// DrawHandle fills a square of the given size centred on p
func DrawHandle(img *image.NRGBA, p image.Point, size int, c color.NRGBA) {
	half := size / 2
	for y := p.Y - half; y < p.Y-half+size; y++ {
		drawHLine(img, y, p.X-half, p.X-half+size, c)
	}
}

// DimOutside darkens every pixel outside r by blending it toward black with
// the given alpha
func DimOutside(img *image.NRGBA, r image.Rectangle, alpha uint8) {
	b := img.Bounds()
	keep := uint32(255 - alpha)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if !(image.Point{x, y}).In(r) {
				img.Pix[i+0] = uint8(uint32(img.Pix[i+0]) * keep / 255)
				img.Pix[i+1] = uint8(uint32(img.Pix[i+1]) * keep / 255)
				img.Pix[i+2] = uint8(uint32(img.Pix[i+2]) * keep / 255)
			}
			i += 4
		}
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0 = max(x0, b.Min.X)
	x1 = min(x1, b.Max.X)
	if x0 >= x1 {
		return
	}
	i := img.PixOffset(x0, y)
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0 = max(y0, b.Min.Y)
	y1 = min(y1, b.Max.Y)
	if y0 >= y1 {
		return
	}
	i := img.PixOffset(x, y0)
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
