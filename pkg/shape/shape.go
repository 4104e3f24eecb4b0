// Package shape defines the clip shapes applied to a composed crop and
// rasterizes them into alpha masks.
package shape

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/vector"

	"github.com/menta2k/image-cropper/pkg/geom"
)

// Pather receives path commands in pixel coordinates.
// *vector.Rasterizer satisfies it.
type Pather interface {
	MoveTo(x, y float32)
	LineTo(x, y float32)
	CubeTo(bx, by, cx, cy, dx, dy float32)
	ClosePath()
}

// Shape is a closed outline that can be traced into any rectangle.
type Shape interface {
	Name() string
	Trace(p Pather, r geom.Rect)
}

type rectShape struct{}

func (rectShape) Name() string { return "rect" }

func (rectShape) Trace(p Pather, r geom.Rect) {
	p.MoveTo(float32(r.Left), float32(r.Top))
	p.LineTo(float32(r.Right), float32(r.Top))
	p.LineTo(float32(r.Right), float32(r.Bottom))
	p.LineTo(float32(r.Left), float32(r.Bottom))
	p.ClosePath()
}

// kappa is the control point distance for a quarter circle cubic.
const kappa = 0.5522847498

type ovalShape struct{}

func (ovalShape) Name() string { return "oval" }

func (ovalShape) Trace(p Pather, r geom.Rect) {
	c := r.Center()
	rx, ry := r.Width()/2, r.Height()/2
	kx, ky := rx*kappa, ry*kappa
	f := func(v float64) float32 { return float32(v) }

	p.MoveTo(f(c.X+rx), f(c.Y))
	p.CubeTo(f(c.X+rx), f(c.Y+ky), f(c.X+kx), f(c.Y+ry), f(c.X), f(c.Y+ry))
	p.CubeTo(f(c.X-kx), f(c.Y+ry), f(c.X-rx), f(c.Y+ky), f(c.X-rx), f(c.Y))
	p.CubeTo(f(c.X-rx), f(c.Y-ky), f(c.X-kx), f(c.Y-ry), f(c.X), f(c.Y-ry))
	p.CubeTo(f(c.X+kx), f(c.Y-ry), f(c.X+rx), f(c.Y-ky), f(c.X+rx), f(c.Y))
	p.ClosePath()
}

// Polygon is a closed outline through points given relative to the target
// rectangle, (0,0) being its top-left and (1,1) its bottom-right corner.
type Polygon struct {
	ID     string
	Points []geom.Offset
}

func (s Polygon) Name() string { return s.ID }

func (s Polygon) Trace(p Pather, r geom.Rect) {
	if len(s.Points) < 3 {
		return
	}
	for i, rel := range s.Points {
		pt := r.Abs(rel)
		if i == 0 {
			p.MoveTo(float32(pt.X), float32(pt.Y))
			continue
		}
		p.LineTo(float32(pt.X), float32(pt.Y))
	}
	p.ClosePath()
}

// Presets.
var (
	Rect     Shape = rectShape{}
	Oval     Shape = ovalShape{}
	Triangle Shape = Polygon{ID: "triangle", Points: []geom.Offset{{X: 0.5, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}}
	Star     Shape = Polygon{ID: "star", Points: starPoints(5, 0.5, 0.2)}
)

// starPoints returns the relative vertices of a star with n tips, alternating
// between the outer and inner radius, first tip pointing up.
func starPoints(n int, outer, inner float64) []geom.Offset {
	pts := make([]geom.Offset, 0, n*2)
	for i := 0; i < n*2; i++ {
		rad := outer
		if i%2 == 1 {
			rad = inner
		}
		a := -math.Pi/2 + float64(i)*math.Pi/float64(n)
		pts = append(pts, geom.Offset{X: 0.5 + rad*math.Cos(a), Y: 0.5 + rad*math.Sin(a)})
	}
	return pts
}

// Presets returns the built-in shapes in menu order.
func Presets() []Shape {
	return []Shape{Rect, Oval, Triangle, Star}
}

// ByName looks a preset up by name.
func ByName(name string) (Shape, error) {
	for _, s := range Presets() {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown shape %q", name)
}

// Mask rasterizes s traced into r on a canvas of the given size. Covered
// pixels are opaque, everything else is transparent.
func Mask(s Shape, size geom.IntSize, r geom.Rect) *image.Alpha {
	dst := image.NewAlpha(image.Rect(0, 0, size.Width, size.Height))
	if size.IsEmpty() || r.IsEmpty() {
		return dst
	}
	z := vector.NewRasterizer(size.Width, size.Height)
	s.Trace(z, r)
	z.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})
	return dst
}
