// Package geom provides the float rectangle and affine matrix algebra used by
// the crop engine.
//
// Rectangles are edge based (Left, Top, Right, Bottom) with y growing
// downwards, matching image coordinates. All operations are value operations:
// they return a new rectangle and never mutate the receiver.
package geom

import (
	"image"
	"math"
)

const epsilon = 1e-3

// Eq reports whether a and b are equal within a small tolerance.
func Eq(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

// Eq0 reports whether v is zero within a small tolerance.
func Eq0(v float64) bool {
	return Eq(v, 0)
}

// Offset is a point or a displacement.
type Offset struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns o+p.
func (o Offset) Add(p Offset) Offset { return Offset{o.X + p.X, o.Y + p.Y} }

// Sub returns o-p.
func (o Offset) Sub(p Offset) Offset { return Offset{o.X - p.X, o.Y - p.Y} }

// Mul scales both components by f.
func (o Offset) Mul(f float64) Offset { return Offset{o.X * f, o.Y * f} }

// Round rounds both components to the nearest integer.
func (o Offset) Round() Offset { return Offset{math.Round(o.X), math.Round(o.Y)} }

// DistanceSquared returns the squared length of o.
func (o Offset) DistanceSquared() float64 { return o.X*o.X + o.Y*o.Y }

// Size is a float width/height pair.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Mul scales both dimensions by f.
func (s Size) Mul(f float64) Size { return Size{s.Width * f, s.Height * f} }

// IsEmpty reports whether either dimension is not positive.
func (s Size) IsEmpty() bool { return s.Width <= 0 || s.Height <= 0 }

// Aspect returns width/height.
func (s Size) Aspect() float64 { return s.Width / s.Height }

// CoerceAtMost scales s down uniformly so that it fits inside max. A nil max
// or a size that already fits is returned unchanged; s is never upscaled.
func (s Size) CoerceAtMost(max *Size) Size {
	if max == nil {
		return s
	}
	f := math.Min(max.Width/s.Width, max.Height/s.Height)
	if f >= 1 {
		return s
	}
	return Size{s.Width * f, s.Height * f}
}

// RoundUp rounds both dimensions up to integers.
func (s Size) RoundUp() IntSize {
	return IntSize{int(math.Ceil(s.Width)), int(math.Ceil(s.Height))}
}

// KeepAspect returns a size with the same area as s and the aspect of old.
func (s Size) KeepAspect(old Size) Size {
	a := s.Width * s.Height
	return Size{
		Width:  math.Sqrt(a * old.Width / old.Height),
		Height: math.Sqrt(a * old.Height / old.Width),
	}
}

// IntSize is an integer width/height pair, used for pixel dimensions.
type IntSize struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// ToSize converts s to float dimensions.
func (s IntSize) ToSize() Size { return Size{float64(s.Width), float64(s.Height)} }

// Rect returns the integer rectangle at the origin with size s.
func (s IntSize) Rect() IntRect { return IntRect{0, 0, s.Width, s.Height} }

// IsEmpty reports whether either dimension is not positive.
func (s IntSize) IsEmpty() bool { return s.Width <= 0 || s.Height <= 0 }

// Rect is an axis aligned float rectangle.
type Rect struct {
	Left   float64 `json:"left" yaml:"left"`
	Top    float64 `json:"top" yaml:"top"`
	Right  float64 `json:"right" yaml:"right"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
}

// RectOf builds a rectangle from its top-left corner and size.
func RectOf(topLeft Offset, size Size) Rect {
	return Rect{topLeft.X, topLeft.Y, topLeft.X + size.Width, topLeft.Y + size.Height}
}

// RectFromCorners builds a rectangle from two corners.
func RectFromCorners(tl, br Offset) Rect {
	return Rect{tl.X, tl.Y, br.X, br.Y}
}

// Width returns the horizontal extent of r.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the vertical extent of r.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Size returns the width and height of r.
func (r Rect) Size() Size { return Size{r.Width(), r.Height()} }

// TopLeft is the origin corner.
func (r Rect) TopLeft() Offset { return Offset{r.Left, r.Top} }

// BottomRight is the corner opposite TopLeft.
func (r Rect) BottomRight() Offset { return Offset{r.Right, r.Bottom} }

// Area returns width times height.
func (r Rect) Area() float64 { return r.Width() * r.Height() }

// Center returns the midpoint of r.
func (r Rect) Center() Offset { return Offset{(r.Left + r.Right) / 2, (r.Top + r.Bottom) / 2} }

// IsEmpty reports whether r has no area. Inverted rectangles are empty.
func (r Rect) IsEmpty() bool { return r.Left >= r.Right || r.Top >= r.Bottom }

// Translate moves r by d.
func (r Rect) Translate(d Offset) Rect {
	return Rect{r.Left + d.X, r.Top + d.Y, r.Right + d.X, r.Bottom + d.Y}
}

// Contains reports whether p lies inside r. The right and bottom edges are
// exclusive.
func (r Rect) Contains(p Offset) bool {
	return p.X >= r.Left && p.X < r.Right && p.Y >= r.Top && p.Y < r.Bottom
}

// Intersect returns the overlap of r and o. The result may be empty.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		Left:   math.Max(r.Left, o.Left),
		Top:    math.Max(r.Top, o.Top),
		Right:  math.Min(r.Right, o.Right),
		Bottom: math.Min(r.Bottom, o.Bottom),
	}
}

// AtOrigin returns a rectangle at (0,0) with the size of r, scaled down to
// fit max when max is not nil.
func (r Rect) AtOrigin(max *Size) Rect {
	return RectOf(Offset{}, r.Size().CoerceAtMost(max))
}

// Lerp interpolates both corners of r toward target by p in [0,1].
func (r Rect) Lerp(target Rect, p float64) Rect {
	tl0, br0 := r.TopLeft(), r.BottomRight()
	dtl := target.TopLeft().Sub(tl0)
	dbr := target.BottomRight().Sub(br0)
	return RectFromCorners(tl0.Add(dtl.Mul(p)), br0.Add(dbr.Mul(p)))
}

// CenterIn moves r so that its centre matches the centre of outer.
func (r Rect) CenterIn(outer Rect) Rect {
	oc, c := outer.Center(), r.Center()
	return r.Translate(oc.Sub(c))
}

// FitIn scales r uniformly, keeping its top-left corner, so that it has the
// largest size fitting inside outer.
func (r Rect) FitIn(outer Rect) Rect {
	f := math.Min(outer.Width()/r.Width(), outer.Height()/r.Height())
	return r.Scale(f, f)
}

// Scale scales the size of r keeping its top-left corner.
func (r Rect) Scale(sx, sy float64) Rect {
	return r.SetSizeTL(r.Width()*sx, r.Height()*sy)
}

// SetSizeTL resizes r keeping its top-left corner.
func (r Rect) SetSizeTL(w, h float64) Rect {
	return RectOf(r.TopLeft(), Size{w, h})
}

// SetSizeBR resizes r keeping its bottom-right corner.
func (r Rect) SetSizeBR(w, h float64) Rect {
	return Rect{r.Right - w, r.Bottom - h, r.Right, r.Bottom}
}

// SetSizeCenter resizes r keeping its centre.
func (r Rect) SetSizeCenter(w, h float64) Rect {
	c := r.Center()
	return RectOf(Offset{c.X - w/2, c.Y - h/2}, Size{w, h})
}

// ConstrainResize clamps every edge of r into bounds.
func (r Rect) ConstrainResize(bounds Rect) Rect {
	return Rect{
		Left:   math.Max(r.Left, bounds.Left),
		Top:    math.Max(r.Top, bounds.Top),
		Right:  math.Min(r.Right, bounds.Right),
		Bottom: math.Min(r.Bottom, bounds.Bottom),
	}
}

// ConstrainOffset moves r, keeping its size, so that it lies inside bounds.
// When r is larger than bounds the top-left edges win.
func (r Rect) ConstrainOffset(bounds Rect) Rect {
	x, y := r.Left, r.Top
	if r.Right > bounds.Right {
		x += bounds.Right - r.Right
	}
	if r.Bottom > bounds.Bottom {
		y += bounds.Bottom - r.Bottom
	}
	if x < bounds.Left {
		x = bounds.Left
	}
	if y < bounds.Top {
		y = bounds.Top
	}
	return RectOf(Offset{x, y}, r.Size())
}

// Resize moves the edges selected by the relative handle by delta. A handle
// coordinate of 0 moves the left/top edge, 1 moves the right/bottom edge and
// any other value leaves that axis alone. A moved edge never gets closer than
// minSize to the opposite edge.
func (r Rect) Resize(handle, delta Offset, minSize float64) Rect {
	l, t, rr, b := r.Left, r.Top, r.Right, r.Bottom

	switch handle.Y {
	case 1:
		b = math.Max(b+delta.Y, t+minSize)
	case 0:
		t = math.Min(t+delta.Y, b-minSize)
	}
	switch handle.X {
	case 1:
		rr = math.Max(rr+delta.X, l+minSize)
	case 0:
		l = math.Min(l+delta.X, rr-minSize)
	}
	return Rect{l, t, rr, b}
}

// RoundOut returns the smallest integer rectangle containing r.
func (r Rect) RoundOut() IntRect {
	return IntRect{
		Left:   int(math.Floor(r.Left)),
		Top:    int(math.Floor(r.Top)),
		Right:  int(math.Ceil(r.Right)),
		Bottom: int(math.Ceil(r.Bottom)),
	}
}

// Abs converts a relative point (0..1 on each axis) to an absolute point in r.
func (r Rect) Abs(rel Offset) Offset {
	return Offset{r.Left + rel.X*r.Width(), r.Top + rel.Y*r.Height()}
}

// SetAspect returns the largest rectangle with the given width/height aspect
// that fits in r, centred in r.
func (r Rect) SetAspect(aspect float64) Rect {
	dim := math.Max(r.Width(), r.Height())
	return RectOf(Offset{}, Size{dim * aspect, dim}).
		FitIn(r).
		CenterIn(r)
}

// KeepAspect resizes r to its own area with the aspect of old, keeping fixed
// the edges that did not move relative to old.
func (r Rect) KeepAspect(old Rect) Rect {
	return r.SetSize(old, r.Size().KeepAspect(old.Size()))
}

// SetSize resizes r to size. On each axis the edge that stayed closest to
// the matching edge of old is kept as the anchor.
func (r Rect) SetSize(old Rect, size Size) Rect {
	l, t, rr, b := r.Left, r.Top, r.Right, r.Bottom
	if math.Abs(old.Left-l) < math.Abs(old.Right-rr) {
		rr = l + size.Width
	} else {
		l = rr - size.Width
	}
	if math.Abs(old.Top-t) < math.Abs(old.Bottom-b) {
		b = t + size.Height
	} else {
		t = b - size.Height
	}
	return Rect{l, t, rr, b}
}

// ScaleToFit shrinks r uniformly, anchored as in SetSize, so that it does not
// cross bounds. Rectangles that already fit are returned unchanged.
func (r Rect) ScaleToFit(bounds, old Rect) Rect {
	w, h := r.Width(), r.Height()
	f := math.Min(
		math.Min((bounds.Right-r.Left)/w, (bounds.Bottom-r.Top)/h),
		math.Min((r.Right-bounds.Left)/w, (r.Bottom-bounds.Top)/h),
	)
	if f >= 1 {
		return r
	}
	return r.SetSize(old, r.Size().Mul(f))
}

// Align expands r outwards so that every edge is a multiple of n.
func (r Rect) Align(n int) Rect {
	a := float64(n)
	return Rect{
		Left:   math.Floor(r.Left/a) * a,
		Top:    math.Floor(r.Top/a) * a,
		Right:  math.Ceil(r.Right/a) * a,
		Bottom: math.Ceil(r.Bottom/a) * a,
	}
}

// SwapAxes mirrors r over the main diagonal.
func (r Rect) SwapAxes() Rect {
	return Rect{r.Top, r.Left, r.Bottom, r.Right}
}

// IntRect is an axis aligned integer rectangle.
type IntRect struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Right  int `json:"right" yaml:"right"`
	Bottom int `json:"bottom" yaml:"bottom"`
}

// IntRectFrom converts an image.Rectangle.
func IntRectFrom(r image.Rectangle) IntRect {
	return IntRect{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y}
}

// Width returns the pixel columns covered by r.
func (r IntRect) Width() int { return r.Right - r.Left }

// Height returns the pixel rows covered by r.
func (r IntRect) Height() int { return r.Bottom - r.Top }

// Size returns the dimensions of r.
func (r IntRect) Size() IntSize { return IntSize{r.Width(), r.Height()} }

// IsEmpty reports whether r covers no pixels.
func (r IntRect) IsEmpty() bool { return r.Left >= r.Right || r.Top >= r.Bottom }

// TopLeft returns the origin corner as a float point.
func (r IntRect) TopLeft() Offset { return Offset{float64(r.Left), float64(r.Top)} }

// ToRect converts r to float coordinates.
func (r IntRect) ToRect() Rect {
	return Rect{float64(r.Left), float64(r.Top), float64(r.Right), float64(r.Bottom)}
}

// Image converts r to an image.Rectangle.
func (r IntRect) Image() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// Intersect returns the overlap of r and o.
func (r IntRect) Intersect(o IntRect) IntRect {
	return IntRectFrom(r.Image().Intersect(o.Image()))
}

// ContainsInclusive reports whether o lies completely inside r, edges included.
func (r IntRect) ContainsInclusive(o IntRect) bool {
	return o.Left >= r.Left && o.Top >= r.Top && o.Right <= r.Right && o.Bottom <= r.Bottom
}

// ConstrainOffset moves r, keeping its size, so that it lies inside bounds.
func (r IntRect) ConstrainOffset(bounds IntRect) IntRect {
	x, y := r.Left, r.Top
	if r.Right > bounds.Right {
		x += bounds.Right - r.Right
	}
	if r.Bottom > bounds.Bottom {
		y += bounds.Bottom - r.Bottom
	}
	if x < bounds.Left {
		x = bounds.Left
	}
	if y < bounds.Top {
		y = bounds.Top
	}
	return IntRect{x, y, x + r.Width(), y + r.Height()}
}
